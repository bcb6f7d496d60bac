package aggregator

import (
	"ammindex/internal/domain"

	"github.com/shopspring/decimal"
)

// Sums USD/BNB and token volumes of priced swaps plus liquidity moved by priced mints and burns
func (a *Aggregator) BuildVolumes(w FloatWriter, timestamp int64, events []*domain.Event) {
	b := bucketOf(timestamp)

	w.DeletePrefix(0, domain.BucketPrefix(domain.NSPairDay, b.day-1))
	w.DeletePrefix(0, domain.BucketPrefix(domain.NSTokenDay, b.day-1))
	w.DeletePrefix(0, domain.BucketPrefix(domain.NSPairHour, b.hour-1))
	w.DeletePrefix(0, domain.BucketPrefix(domain.NSGlobalDay, b.day-1))

	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case *domain.Swap:
			a.swapVolumes(w, b, ev, p)
		case *domain.Mint:
			a.liquidity(w, ev, p.AmountUSD, p.To, p.Liquidity, false)
		case *domain.Burn:
			a.liquidity(w, ev, p.AmountUSD, p.To, p.Liquidity, true)
		}
	}
}

func (a *Aggregator) swapVolumes(w FloatWriter, b bucket, ev *domain.Event, s *domain.Swap) {
	usd, ok := priced(s.AmountUSD)
	if !ok {
		return
	}
	ord, pair := ev.Ordinal, ev.PairAddress

	sumMany(w, ord, usd,
		domain.Key(domain.NSPair, pair, fieldUSD),
		domain.BucketKey(domain.NSPairDay, b.day, pair, fieldUSD),
		domain.BucketKey(domain.NSPairHour, b.hour, pair, fieldUSD),
		domain.BucketKey(domain.NSTokenDay, b.day, ev.Token0, fieldUSD),
		domain.BucketKey(domain.NSTokenDay, b.day, ev.Token1, fieldUSD),
		domain.Key(domain.NSGlobal, fieldUSD),
		domain.BucketKey(domain.NSGlobalDay, b.day, fieldUSD),
	)

	if bnb, ok := domain.ParseDecimal(s.AmountBNB); ok {
		sumMany(w, ord, bnb,
			domain.Key(domain.NSGlobal, fieldBNB),
			domain.BucketKey(domain.NSGlobalDay, b.day, fieldBNB),
		)
	}

	sumMany(w, ord, sum(s.Amount0In, s.Amount0Out),
		domain.Key(domain.NSPair, pair, fieldToken0),
		domain.BucketKey(domain.NSPairDay, b.day, pair, fieldToken0),
		domain.BucketKey(domain.NSPairHour, b.hour, pair, fieldToken0),
	)
	sumMany(w, ord, sum(s.Amount1In, s.Amount1Out),
		domain.Key(domain.NSPair, pair, fieldToken1),
		domain.BucketKey(domain.NSPairDay, b.day, pair, fieldToken1),
		domain.BucketKey(domain.NSPairHour, b.hour, pair, fieldToken1),
	)

	w.SumBigFloat(ord, domain.Key(domain.NSToken, ev.Token0, fieldTrade), orZero(s.TradeVolume0))
	w.SumBigFloat(ord, domain.Key(domain.NSToken, ev.Token1, fieldTrade), orZero(s.TradeVolume1))
	w.SumBigFloat(ord, domain.Key(domain.NSToken, ev.Token0, fieldTradeUSD), orZero(s.TradeVolumeUSD0))
	w.SumBigFloat(ord, domain.Key(domain.NSToken, ev.Token1, fieldTradeUSD), orZero(s.TradeVolumeUSD1))
}

func (a *Aggregator) liquidity(w FloatWriter, ev *domain.Event, amountUSD, to, liquidity string, burn bool) {
	usd, ok := priced(amountUSD)
	if !ok {
		a.log.Debugf("Skip liquidity of %s on pair %s: amount unpriced", ev.Payload.EventID(), ev.PairAddress)
		return
	}
	lp := orZero(liquidity)
	if burn {
		usd, lp = usd.Neg(), lp.Neg()
	}

	w.SumBigFloat(ev.Ordinal, domain.Key(domain.NSGlobal, fieldLiquidityUSD), usd)
	sumMany(w, ev.Ordinal, lp,
		domain.Key(domain.NSToken, to, fieldLiquidity),
		domain.Key(domain.NSPair, ev.PairAddress, fieldTotalSupply),
	)
}

func sumMany(w FloatWriter, ord uint64, delta decimal.Decimal, keys ...string) {
	for _, key := range keys {
		w.SumBigFloat(ord, key, delta)
	}
}

// Known and non-zero
func priced(s string) (decimal.Decimal, bool) {
	d, ok := domain.ParseDecimal(s)
	if !ok || d.IsZero() {
		return decimal.Zero, false
	}
	return d, true
}

func sum(a, b string) decimal.Decimal {
	return orZero(a).Add(orZero(b))
}

func orZero(s string) decimal.Decimal {
	d, _ := domain.ParseDecimal(s)
	return d
}
