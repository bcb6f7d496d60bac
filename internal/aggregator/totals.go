package aggregator

import (
	"ammindex/internal/domain"
)

// Counts pairs and events; swaps only count once priced
func (a *Aggregator) BuildTotals(w IntWriter, timestamp int64, pairs []*domain.Pair, events []*domain.Event) {
	b := bucketOf(timestamp)

	w.DeletePrefix(0, domain.BucketPrefix(domain.NSGlobalDay, b.day-1))

	for _, it := range ordered(pairs, events) {
		if it.pair != nil {
			w.SumInt64(it.ord, domain.Key(domain.NSGlobal, fieldPairCount), 1)
			continue
		}

		ev := it.event
		for _, key := range []string{
			domain.Key(domain.NSToken, ev.Token0, fieldTransactionCount),
			domain.Key(domain.NSToken, ev.Token1, fieldTransactionCount),
			domain.Key(domain.NSPair, ev.PairAddress, fieldTransactionCount),
			domain.BucketKey(domain.NSGlobalDay, b.day, fieldTransactionCount),
			domain.Key(domain.NSGlobal, fieldTransactionCount),
		} {
			w.SumInt64(ev.Ordinal, key, 1)
		}

		switch p := ev.Payload.(type) {
		case *domain.Swap:
			if p.AmountUSD == "" {
				a.log.Debugf("Swap %s on pair %s is unpriced, not counted", p.ID, ev.PairAddress)
				continue
			}
			w.SumInt64(ev.Ordinal, domain.Key(domain.NSPair, ev.PairAddress, fieldSwapCount), 1)
		case *domain.Mint:
			w.SumInt64(ev.Ordinal, domain.Key(domain.NSPair, ev.PairAddress, fieldMintCount), 1)
		case *domain.Burn:
			w.SumInt64(ev.Ordinal, domain.Key(domain.NSPair, ev.PairAddress, fieldBurnCount), 1)
		}
	}
}
