package extractor

import (
	"ammindex/internal/domain"
	"fmt"
	"math/big"
	"strings"
)

// Liquidity tokens always carry 18 decimals
const liquidityDecimals = 18

// First LP mint locks this many wei; such a transfer is not a protocol fee
var minimumLiquidityLock = big.NewInt(10000)

// A call on a pair whose log run matches no mint/burn/swap pattern. Fatal for the block
type CorrelationError struct {
	BlockNum uint64
	TxHash   string
	Pair     string
	Shape    []string
	Reason   string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("correlation failed at block %d tx %s pair %s [%s]: %s",
		e.BlockNum, e.TxHash, e.Pair, strings.Join(e.Shape, ","), e.Reason)
}

// Per-block event id counters, one per kind
type eventCounters struct {
	swaps, mints, burns int
}

// Correlates the log run of each live call on a known pair into Swap/Mint/Burn events.
// Price-derived amounts are left empty for the oracle to fill in.
func (e *Extractor) Events(block *domain.Block, lk Lookup) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	var counters eventCounters

	for _, trx := range block.Transactions {
		txID := trx.Hash.Hex()

		for _, call := range liveCalls(trx) {
			if len(call.Logs) == 0 {
				continue
			}

			pairAddr := domain.Hex(call.Address)
			pair, ok := lk.PairAt(call.Logs[0].Ordinal, pairAddr)
			if !ok {
				continue
			}

			decoded := make([]LogEvent, 0, len(call.Logs))
			for _, l := range call.Logs {
				ev, err := DecodeLog(l)
				if err != nil {
					return nil, &CorrelationError{
						BlockNum: block.Number, TxHash: txID, Pair: pairAddr, Reason: err.Error(),
					}
				}
				decoded = append(decoded, ev)
			}

			c := &correlator{
				block:    block,
				trx:      trx,
				pair:     pair,
				logs:     decoded,
				counters: &counters,
			}
			ev, err := c.correlate()
			if err != nil {
				return nil, err
			}
			if ev == nil {
				continue
			}

			token0, ok0 := lk.TokenAt(ev.Ordinal, pair.Token0Address)
			token1, ok1 := lk.TokenAt(ev.Ordinal, pair.Token1Address)
			if !ok0 || !ok1 {
				e.log.Warnf("Skip %s %s on pair %s: token metadata unknown (token0=%t, token1=%t)",
					ev.Payload.Kind(), ev.Payload.EventID(), pair.Address, ok0, ok1)
				continue
			}

			if err = c.fill(ev, token0.Decimals, token1.Decimals); err != nil {
				e.log.Warnf("Skip %s %s on pair %s: %v", ev.Payload.Kind(), ev.Payload.EventID(), pair.Address, err)
				continue
			}
			events = append(events, ev)
		}
	}

	byOrdinal(events, func(ev *domain.Event) uint64 { return ev.Ordinal })
	return events, nil
}

type correlator struct {
	block    *domain.Block
	trx      *domain.TransactionTrace
	pair     *domain.Pair
	logs     []LogEvent
	counters *eventCounters

	// raw pieces kept until decimals are known
	mint   *MintLog
	burn   *BurnLog
	swap   *SwapLog
	feeTr  *TransferLog
	mainTr *TransferLog
}

func (c *correlator) fail(reason string) error {
	shape := make([]string, len(c.logs))
	for i, l := range c.logs {
		shape[i] = l.name()
	}
	return &CorrelationError{
		BlockNum: c.block.Number,
		TxHash:   c.trx.Hash.Hex(),
		Pair:     c.pair.Address,
		Shape:    shape,
		Reason:   reason,
	}
}

// Returns nil, nil for runs that carry no event (lone Transfer/Approval/Sync)
func (c *correlator) correlate() (*domain.Event, error) {
	switch len(c.logs) {
	case 4: // [Transfer(fee), Transfer, Sync, Mint|Burn]
		fee, ok := c.logs[0].(*TransferLog)
		if !ok {
			return nil, c.fail("expected fee Transfer at position 0")
		}
		c.feeTr = fee
		return c.liquidityEvent(1, 3)

	case 3: // [Transfer, Sync, Mint|Burn]
		return c.liquidityEvent(0, 2)

	case 2: // [Sync, Swap]
		if _, ok := c.logs[0].(*SyncLog); !ok {
			return nil, c.fail("expected Sync before Swap")
		}
		swap, ok := c.logs[1].(*SwapLog)
		if !ok {
			return nil, c.fail("expected Swap at position 1")
		}
		c.swap = swap
		id := domain.MakeEventID(c.trx.Hash.Hex(), c.counters.swaps)
		c.counters.swaps++
		return c.baseEvent(swap.Ordinal, &domain.Swap{ID: id}), nil

	case 1:
		switch c.logs[0].(type) {
		case *TransferLog, *ApprovalLog, *SyncLog:
			return nil, nil
		}
		return nil, c.fail("unexpected single log")
	}

	return nil, c.fail(fmt.Sprintf("unhandled pattern with %d logs", len(c.logs)))
}

func (c *correlator) liquidityEvent(trIdx, evIdx int) (*domain.Event, error) {
	tr, ok := c.logs[trIdx].(*TransferLog)
	if !ok {
		return nil, c.fail(fmt.Sprintf("expected Transfer at position %d", trIdx))
	}
	if _, ok = c.logs[evIdx-1].(*SyncLog); !ok {
		return nil, c.fail(fmt.Sprintf("expected Sync at position %d", evIdx-1))
	}
	c.mainTr = tr

	switch ev := c.logs[evIdx].(type) {
	case *MintLog:
		c.mint = ev
		id := domain.MakeEventID(c.trx.Hash.Hex(), c.counters.mints)
		c.counters.mints++
		return c.baseEvent(ev.Ordinal, &domain.Mint{ID: id}), nil
	case *BurnLog:
		c.burn = ev
		id := domain.MakeEventID(c.trx.Hash.Hex(), c.counters.burns)
		c.counters.burns++
		return c.baseEvent(ev.Ordinal, &domain.Burn{ID: id}), nil
	}

	return nil, c.fail(fmt.Sprintf("expected Mint or Burn at position %d", evIdx))
}

func (c *correlator) baseEvent(ord uint64, p domain.Payload) *domain.Event {
	return &domain.Event{
		PairAddress:   c.pair.Address,
		Token0:        c.pair.Token0Address,
		Token1:        c.pair.Token1Address,
		TransactionID: c.trx.Hash.Hex(),
		Timestamp:     uint64(c.block.Timestamp),
		Ordinal:       ord,
		Payload:       p,
	}
}

// Converts raw amounts once token decimals are known
func (c *correlator) fill(ev *domain.Event, decimals0, decimals1 uint32) error {
	var sc scaler

	switch p := ev.Payload.(type) {
	case *domain.Swap:
		fillSwap(&sc, p, c.swap, c.pair, c.trx, decimals0, decimals1)

	case *domain.Mint:
		p.Sender = domain.Hex(c.mint.Sender)
		p.To = domain.Hex(c.mainTr.To)
		p.Amount0 = sc.amount(c.mint.Amount0, decimals0).String()
		p.Amount1 = sc.amount(c.mint.Amount1, decimals1).String()
		p.Liquidity = sc.amount(c.mainTr.Value, liquidityDecimals).String()
		if c.feeTr != nil && c.feeTr.Value.Cmp(minimumLiquidityLock) != 0 {
			p.FeeTo = domain.Hex(c.feeTr.To)
			p.FeeLiquidity = sc.amount(c.feeTr.Value, liquidityDecimals).String()
		}

	case *domain.Burn:
		p.Sender = domain.Hex(c.mainTr.From)
		p.To = domain.Hex(c.mainTr.To)
		p.Amount0 = sc.amount(c.burn.Amount0, decimals0).String()
		p.Amount1 = sc.amount(c.burn.Amount1, decimals1).String()
		p.Liquidity = sc.amount(c.mainTr.Value, liquidityDecimals).String()
		if c.feeTr != nil {
			p.FeeTo = domain.Hex(c.feeTr.To)
			p.FeeLiquidity = sc.amount(c.feeTr.Value, liquidityDecimals).String()
		}
	}

	return sc.err
}

func fillSwap(sc *scaler, p *domain.Swap, s *SwapLog, pair *domain.Pair, trx *domain.TransactionTrace, decimals0, decimals1 uint32) {
	amount0In := sc.amount(s.Amount0In, decimals0)
	amount1In := sc.amount(s.Amount1In, decimals1)
	amount0Out := sc.amount(s.Amount0Out, decimals0)
	amount1Out := sc.amount(s.Amount1Out, decimals1)

	p.Sender = domain.Hex(s.Sender)
	p.To = domain.Hex(s.To)
	p.From = domain.Hex(trx.From)
	p.Amount0In = amount0In.String()
	p.Amount1In = amount1In.String()
	p.Amount0Out = amount0Out.String()
	p.Amount1Out = amount1Out.String()
	p.TradeVolume0 = amount1In.Add(amount0Out).String()
	p.TradeVolume1 = amount0In.Add(amount1Out).String()
	p.VolumeToken0 = amount0In.Add(amount0Out).String()
	p.VolumeToken1 = amount1In.Add(amount1Out).String()
	p.LogAddress = pair.Address
}
