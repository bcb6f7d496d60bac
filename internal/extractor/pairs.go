package extractor

import (
	"ammindex/internal/domain"
	"fmt"
)

// PairCreated logs of transactions sent to the factory
func (e *Extractor) Pairs(block *domain.Block) ([]*domain.Pair, error) {
	pairs := make([]*domain.Pair, 0)

	for _, trx := range block.Transactions {
		if trx.To != e.factory {
			continue
		}

		for _, call := range liveCalls(trx) {
			for _, l := range call.Logs {
				if len(l.Topics) == 0 || l.Topics[0] != PairCreatedTopic || l.Address != e.factory {
					continue
				}

				ev, err := DecodeLog(l)
				if err != nil {
					return nil, fmt.Errorf("block %d tx %s: %w", block.Number, trx.Hash.Hex(), err)
				}
				created := ev.(*PairCreatedLog)

				pairs = append(pairs, &domain.Pair{
					Address:       domain.Hex(created.Pair),
					Token0Address: domain.Hex(created.Token0),
					Token1Address: domain.Hex(created.Token1),
					CreationTxID:  trx.Hash.Hex(),
					BlockNum:      block.Number,
					Ordinal:       l.Ordinal,
				})
			}
		}
	}

	byOrdinal(pairs, func(p *domain.Pair) uint64 { return p.Ordinal })
	return pairs, nil
}
