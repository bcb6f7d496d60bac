package extractor

import (
	"ammindex/internal/domain"
	"fmt"
)

// One Reserve per Sync log emitted by a known pair
func (e *Extractor) Reserves(block *domain.Block, lk Lookup) ([]*domain.Reserve, error) {
	reserves := make([]*domain.Reserve, 0)

	for _, trx := range block.Transactions {
		for _, call := range liveCalls(trx) {
			for _, l := range call.Logs {
				if len(l.Topics) == 0 || l.Topics[0] != SyncTopic {
					continue
				}

				pair, ok := lk.PairAt(l.Ordinal, domain.Hex(l.Address))
				if !ok {
					continue
				}

				ev, err := DecodeLog(l)
				if err != nil {
					return nil, fmt.Errorf("block %d tx %s: %w", block.Number, trx.Hash.Hex(), err)
				}
				sync := ev.(*SyncLog)

				token0, ok0 := lk.TokenAt(l.Ordinal, pair.Token0Address)
				token1, ok1 := lk.TokenAt(l.Ordinal, pair.Token1Address)
				if !ok0 || !ok1 {
					e.log.Warnf("Skip sync of pair %s at ordinal %d: token metadata unknown (token0=%t, token1=%t)",
						pair.Address, l.Ordinal, ok0, ok1)
					continue
				}

				r, err := NewReserve(pair, sync, token0.Decimals, token1.Decimals)
				if err != nil {
					e.log.Warnf("Skip sync of pair %s at ordinal %d: %v", pair.Address, l.Ordinal, err)
					continue
				}
				reserves = append(reserves, r)
			}
		}
	}

	byOrdinal(reserves, func(r *domain.Reserve) uint64 { return r.Ordinal })
	return reserves, nil
}

// token0_price = reserve1/reserve0 and token1_price = reserve0/reserve1, "0" on a zero divisor
func NewReserve(pair *domain.Pair, sync *SyncLog, decimals0, decimals1 uint32) (*domain.Reserve, error) {
	var sc scaler
	reserve0 := sc.amount(sync.Reserve0, decimals0)
	reserve1 := sc.amount(sync.Reserve1, decimals1)
	if sc.err != nil {
		return nil, sc.err
	}

	return &domain.Reserve{
		PairAddress: pair.Address,
		Reserve0:    reserve0.String(),
		Reserve1:    reserve1.String(),
		Ordinal:     sync.Ordinal,
		Token0Price: domain.SafeDiv(reserve1, reserve0).String(),
		Token1Price: domain.SafeDiv(reserve0, reserve1).String(),
	}, nil
}
