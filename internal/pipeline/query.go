package pipeline

import (
	"ammindex/internal/domain"
	"ammindex/internal/store"
	"encoding/json"
	"errors"
)

// Read side for the API. Raw GetLast only: typed reads would record sticky errors on the stores.

var ErrNotFound = errors.New("pipeline: not found")

type TokenSummary struct {
	Token             domain.Token `json:"token"`
	PriceBNB          string       `json:"price_bnb,omitempty"`
	PriceUSD          string       `json:"price_usd,omitempty"`
	TotalTransactions string       `json:"total_transactions,omitempty"`
	TradeVolume       string       `json:"trade_volume,omitempty"`
	TradeVolumeUSD    string       `json:"trade_volume_usd,omitempty"`
	TotalLiquidity    string       `json:"total_liquidity,omitempty"`
	DailyVolumeUSD    string       `json:"daily_volume_usd,omitempty"`
}

type PairSummary struct {
	Pair              domain.Pair `json:"pair"`
	Reserve0          string      `json:"reserve0,omitempty"`
	Reserve1          string      `json:"reserve1,omitempty"`
	Token0Price       string      `json:"token0_price,omitempty"`
	Token1Price       string      `json:"token1_price,omitempty"`
	ReserveBNB        string      `json:"reserve_bnb,omitempty"`
	VolumeUSD         string      `json:"volume_usd,omitempty"`
	VolumeToken0      string      `json:"volume_token0,omitempty"`
	VolumeToken1      string      `json:"volume_token1,omitempty"`
	TotalSupply       string      `json:"total_supply,omitempty"`
	TotalTransactions string      `json:"total_transactions,omitempty"`
	SwapCount         string      `json:"swap_count,omitempty"`
	MintCount         string      `json:"mint_count,omitempty"`
	BurnCount         string      `json:"burn_count,omitempty"`
	DailyVolumeUSD    string      `json:"daily_volume_usd,omitempty"`
}

type Overview struct {
	LastBlock         uint64 `json:"last_block"`
	HasBlock          bool   `json:"has_block"`
	BNBPriceUSD       string `json:"bnb_price_usd,omitempty"`
	TotalPairs        string `json:"total_pairs,omitempty"`
	TotalTransactions string `json:"total_transactions,omitempty"`
	TotalVolumeUSD    string `json:"total_volume_usd,omitempty"`
	TotalVolumeBNB    string `json:"total_volume_bnb,omitempty"`
	TotalLiquidityUSD string `json:"total_liquidity_usd,omitempty"`
	DailyTransactions string `json:"daily_transactions,omitempty"`
	DailyVolumeUSD    string `json:"daily_volume_usd,omitempty"`
}

func (p *Processor) TokenSummary(address string) (*TokenSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.stores
	out := &TokenSummary{}
	if err := last(s.Tokens, domain.TokenKey(address), &out.Token); err != nil {
		return nil, err
	}

	out.PriceBNB = text(s.Prices, domain.DPriceKey(address, domain.UnitBNB))
	out.PriceUSD = text(s.Prices, domain.DPriceKey(address, domain.UnitUSD))
	out.TotalTransactions = text(s.Totals, domain.Key(domain.NSToken, address, "transaction_count"))
	out.TradeVolume = text(s.Volumes, domain.Key(domain.NSToken, address, "trade"))
	out.TradeVolumeUSD = text(s.Volumes, domain.Key(domain.NSToken, address, "trade_usd"))
	out.TotalLiquidity = text(s.Volumes, domain.Key(domain.NSToken, address, "liquidity"))
	if p.hasLast {
		out.DailyVolumeUSD = text(s.Volumes, domain.BucketKey(domain.NSTokenDay, domain.DayID(p.lastTime), address, "usd"))
	}

	return out, nil
}

func (p *Processor) PairSummary(address string) (*PairSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.stores
	out := &PairSummary{}
	if err := last(s.Pairs, domain.PairKey(address), &out.Pair); err != nil {
		return nil, err
	}
	t0, t1 := out.Pair.Token0Address, out.Pair.Token1Address

	out.Reserve0 = text(s.Reserves, domain.ReserveKey(address, t0))
	out.Reserve1 = text(s.Reserves, domain.ReserveKey(address, t1))
	out.Token0Price = text(s.Reserves, domain.PriceKey(t0, t1))
	out.Token1Price = text(s.Reserves, domain.PriceKey(t1, t0))
	out.ReserveBNB = text(s.Prices, domain.DReservesKey(address))

	pairField := func(field string) string { return domain.Key(domain.NSPair, address, field) }
	out.VolumeUSD = text(s.Volumes, pairField("usd"))
	out.VolumeToken0 = text(s.Volumes, pairField("token0"))
	out.VolumeToken1 = text(s.Volumes, pairField("token1"))
	out.TotalSupply = text(s.Volumes, pairField("total_supply"))
	out.TotalTransactions = text(s.Totals, pairField("transaction_count"))
	out.SwapCount = text(s.Totals, pairField("swap_count"))
	out.MintCount = text(s.Totals, pairField("mint_count"))
	out.BurnCount = text(s.Totals, pairField("burn_count"))
	if p.hasLast {
		out.DailyVolumeUSD = text(s.Volumes, domain.BucketKey(domain.NSPairDay, domain.DayID(p.lastTime), address, "usd"))
	}

	return out, nil
}

func (p *Processor) Overview() *Overview {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.stores
	global := func(field string) string { return domain.Key(domain.NSGlobal, field) }

	out := &Overview{
		LastBlock:         p.lastBlock,
		HasBlock:          p.hasLast,
		BNBPriceUSD:       text(s.Prices, domain.DPriceKey(domain.UnitUSD, domain.UnitBNB)),
		TotalPairs:        text(s.Totals, global("pair_count")),
		TotalTransactions: text(s.Totals, global("transaction_count")),
		TotalVolumeUSD:    text(s.Volumes, global("usd")),
		TotalVolumeBNB:    text(s.Volumes, global("bnb")),
		TotalLiquidityUSD: text(s.Volumes, global("liquidity_usd")),
	}
	if p.hasLast {
		day := domain.DayID(p.lastTime)
		out.DailyTransactions = text(s.Totals, domain.BucketKey(domain.NSGlobalDay, day, "transaction_count"))
		out.DailyVolumeUSD = text(s.Volumes, domain.BucketKey(domain.NSGlobalDay, day, "usd"))
	}

	return out
}

func text(b *store.Builder, key string) string {
	raw, ok := b.GetLast(key)
	if !ok {
		return ""
	}
	return string(raw)
}

func last(b *store.Builder, key string, v any) error {
	raw, ok := b.GetLast(key)
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &store.CorruptValueError{Store: b.Name(), Key: key, Value: raw, Err: err}
	}
	return nil
}
