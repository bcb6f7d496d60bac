package oracle

import (
	"ammindex/internal/chaintest"
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"ammindex/internal/store"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	cfg      config.ChainConfig
	lookup   *chaintest.Lookup
	reserves *store.Builder
	prices   *store.Builder
	oracle   *Oracle

	wbnb, busd, usdt string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cfg:      config.DefaultChain(),
		lookup:   chaintest.NewLookup(),
		reserves: store.NewBuilder("reserves", store.MergeLastKey),
		prices:   store.NewBuilder("prices", store.MergeLastKey),
	}
	f.wbnb = f.cfg.NativeWrapper
	f.busd = f.cfg.Whitelist[1]
	f.usdt = f.cfg.Whitelist[2]

	o, err := New(chaintest.Logger(), &f.cfg, Sources{Pairs: f.lookup, Reserves: f.reserves, Prices: f.prices})
	require.NoError(t, err)
	f.oracle = o

	return f
}

func (f *fixture) pair(addr, token0, token1 string) {
	f.lookup.AddPair(&domain.Pair{Address: addr, Token0Address: token0, Token1Address: token1})
}

func (f *fixture) set(ord uint64, key, value string) {
	f.reserves.SetDecimal(ord, key, decimal.RequireFromString(value))
}

func token(n int64) string { return domain.Hex(chaintest.Addr(n)) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(chaintest.Logger(), nil, Sources{})
	require.Error(t, err)

	cfg := config.DefaultChain()
	_, err = New(chaintest.Logger(), &cfg, Sources{})
	require.Error(t, err)

	f := newFixture(t)
	cfg.LiquidityThreshold = "lots"
	_, err = New(chaintest.Logger(), &cfg, Sources{Pairs: f.lookup, Reserves: f.reserves, Prices: f.prices})
	require.Error(t, err)
}

func TestBnbPerToken_Identity(t *testing.T) {
	f := newFixture(t)

	p, ok := f.oracle.BnbPerToken(0, f.wbnb)
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(1)))
}

func TestBnbPerToken_Direct(t *testing.T) {
	f := newFixture(t)
	tk := token(0x100)

	f.set(10, domain.PriceKey(tk, f.wbnb), "0.5")

	_, ok := f.oracle.BnbPerToken(9, tk)
	assert.False(t, ok, "no forward leakage")

	p, ok := f.oracle.BnbPerToken(10, tk)
	require.True(t, ok)
	requireDecimal(t, "0.5", p)
}

func TestBnbPerToken_Bridge(t *testing.T) {
	f := newFixture(t)
	tk := token(0x100)
	viaBUSD := token(0x501)

	f.pair(viaBUSD, tk, f.busd)
	f.set(1, domain.PriceKey(f.busd, f.wbnb), "0.002")
	f.set(2, domain.ReserveKey(viaBUSD, f.busd), "10000")
	f.set(2, domain.PriceKey(tk, f.busd), "3")

	p, ok := f.oracle.BnbPerToken(2, tk)
	require.True(t, ok)
	requireDecimal(t, "0.006", p)
}

func TestBnbPerToken_LiquidityGate(t *testing.T) {
	f := newFixture(t)
	tk := token(0x100)
	viaBUSD, viaUSDT := token(0x501), token(0x502)

	f.pair(viaBUSD, tk, f.busd)
	f.pair(viaUSDT, f.usdt, tk)

	f.set(1, domain.PriceKey(f.busd, f.wbnb), "0.002")
	f.set(1, domain.PriceKey(f.usdt, f.wbnb), "0.002")
	f.set(2, domain.ReserveKey(viaBUSD, f.busd), "2500") // 5 BNB, not above the threshold
	f.set(2, domain.PriceKey(tk, f.busd), "3")
	f.set(3, domain.ReserveKey(viaUSDT, f.usdt), "5000") // 10 BNB
	f.set(3, domain.PriceKey(tk, f.usdt), "2")

	p, ok := f.oracle.BnbPerToken(3, tk)
	require.True(t, ok)
	requireDecimal(t, "0.004", p)

	// USDT bridge not written yet
	_, ok = f.oracle.BnbPerToken(2, tk)
	assert.False(t, ok)
}

func TestBnbPerToken_FirstAcceptedBridgeWins(t *testing.T) {
	f := newFixture(t)
	tk := token(0x100)
	viaBUSD, viaUSDT := token(0x501), token(0x502)

	f.pair(viaBUSD, tk, f.busd)
	f.pair(viaUSDT, tk, f.usdt)

	f.set(1, domain.PriceKey(f.busd, f.wbnb), "0.002")
	f.set(1, domain.PriceKey(f.usdt, f.wbnb), "0.002")
	f.set(2, domain.ReserveKey(viaBUSD, f.busd), "100000")
	f.set(2, domain.PriceKey(tk, f.busd), "3")
	f.set(2, domain.ReserveKey(viaUSDT, f.usdt), "900000")
	f.set(2, domain.PriceKey(tk, f.usdt), "2")

	p, ok := f.oracle.BnbPerToken(2, tk)
	require.True(t, ok)
	requireDecimal(t, "0.006", p)
}

func TestBnbPerToken_Unknown(t *testing.T) {
	f := newFixture(t)
	tk := token(0x100)

	f.set(1, domain.PriceKey(tk, f.wbnb), "0")

	_, ok := f.oracle.BnbPerToken(1, tk)
	assert.False(t, ok)
}

func TestUSDPerBnb(t *testing.T) {
	f := newFixture(t)
	f.pair(f.cfg.BUSDPair, f.busd, f.wbnb)
	f.pair(f.cfg.USDTPair, f.usdt, f.wbnb)

	_, ok := f.oracle.USDPerBnb(0)
	assert.False(t, ok)

	f.set(1, domain.PriceKey(f.wbnb, f.busd), "300")
	f.set(1, domain.ReserveKey(f.cfg.BUSDPair, f.wbnb), "100")

	p, ok := f.oracle.USDPerBnb(1)
	require.True(t, ok)
	requireDecimal(t, "300", p)

	f.set(2, domain.PriceKey(f.wbnb, f.usdt), "310")
	f.set(2, domain.ReserveKey(f.cfg.USDTPair, f.wbnb), "300")

	p, ok = f.oracle.USDPerBnb(2)
	require.True(t, ok)
	requireDecimal(t, "307.5", p)
}

func TestAverage(t *testing.T) {
	_, ok := Average(nil, nil)
	assert.False(t, ok)

	two, four := decimal.NewFromInt(2), decimal.NewFromInt(4)
	v, ok := Average(&two, nil, &four)
	require.True(t, ok)
	requireDecimal(t, "3", v)

	v, ok = Average(nil, &four)
	require.True(t, ok)
	requireDecimal(t, "4", v)
}

func TestBuildPrices(t *testing.T) {
	f := newFixture(t)
	tk := token(0x100)
	pairTW := token(0x501)

	f.pair(f.cfg.BUSDPair, f.busd, f.wbnb)
	f.pair(pairTW, tk, f.wbnb)

	f.prices.Set(0, "pair_day:1:old", []byte("1"))
	f.prices.Set(0, "pair_hour:47:old", []byte("1"))
	f.prices.Set(0, "token_day:1:old", []byte("1"))
	f.prices.Set(0, "pair_day:2:keep", []byte("1"))
	f.prices.Flush()

	f.set(2, domain.PriceKey(f.wbnb, f.busd), "300")
	f.set(2, domain.ReserveKey(f.cfg.BUSDPair, f.wbnb), "100")
	f.set(3, domain.PriceKey(tk, f.wbnb), "0.5")

	reserves := []*domain.Reserve{
		{PairAddress: f.cfg.BUSDPair, Reserve0: "30000", Reserve1: "100", Ordinal: 2},
		{PairAddress: pairTW, Reserve0: "10", Reserve1: "5", Ordinal: 3},
		{PairAddress: token(0x999), Reserve0: "1", Reserve1: "1", Ordinal: 4},
	}

	f.oracle.BuildPrices(f.prices, 172800, reserves)
	require.NoError(t, f.prices.Err())

	assert.False(t, f.prices.Has("pair_day:1:old"))
	assert.False(t, f.prices.Has("pair_hour:47:old"))
	assert.False(t, f.prices.Has("token_day:1:old"))
	assert.True(t, f.prices.Has("pair_day:2:keep"))

	get := func(key string) decimal.Decimal {
		t.Helper()
		v, ok := f.prices.GetDecimalLast(key)
		require.Truef(t, ok, "missing %s", key)
		return v
	}

	requireDecimal(t, "300", get("dprice:usd:bnb"))
	requireDecimal(t, "0.5", get(domain.DPriceKey(tk, "bnb")))
	requireDecimal(t, "150", get(domain.DPriceKey(tk, "usd")))
	requireDecimal(t, "150", get("token_day:2:dprice:"+tk+":usd"))
	requireDecimal(t, "5", get(domain.DReserveKey(pairTW, tk, "bnb")))
	requireDecimal(t, "1500", get(domain.DReserveKey(pairTW, tk, "usd")))
	requireDecimal(t, "1500", get("pair_day:2:dreserve:"+tk+":usd"))
	requireDecimal(t, "1500", get("pair_hour:48:dreserve:"+tk+":usd"))
	requireDecimal(t, "1", get(domain.DPriceKey(f.wbnb, "bnb")))
	requireDecimal(t, "10", get(domain.DReservesKey(pairTW)))

	// the BUSD side has no BNB price of its own
	assert.False(t, f.prices.Has(domain.DPriceKey(f.busd, "bnb")))
	requireDecimal(t, "100", get(domain.DReservesKey(f.cfg.BUSDPair)))
}

func TestEnrich(t *testing.T) {
	f := newFixture(t)
	tk, w := token(0x100), token(0x200)

	f.prices.SetDecimal(1, domain.DPriceKey(tk, "bnb"), decimal.RequireFromString("0.5"))
	f.prices.SetDecimal(1, domain.DPriceKey(w, "bnb"), decimal.RequireFromString("1"))
	f.prices.SetDecimal(1, domain.DPriceKey(tk, "usd"), decimal.RequireFromString("150"))
	f.prices.SetDecimal(1, domain.DPriceKey(w, "usd"), decimal.RequireFromString("300"))
	f.prices.SetDecimal(1, "dprice:usd:bnb", decimal.RequireFromString("300"))

	swap := &domain.Swap{Amount0In: "10", Amount1In: "0", Amount0Out: "0", Amount1Out: "5"}
	mint := &domain.Mint{Amount0: "2", Amount1: "1"}
	burn := &domain.Burn{Amount0: "2", Amount1: "1"}
	early := &domain.Swap{Amount0In: "10", Amount1In: "0", Amount0Out: "0", Amount1Out: "5"}
	unknown := &domain.Mint{Amount0: "2", Amount1: "1"}

	events := []*domain.Event{
		{Token0: tk, Token1: w, Ordinal: 0, Payload: early},
		{Token0: tk, Token1: w, Ordinal: 5, Payload: swap},
		{Token0: tk, Token1: w, Ordinal: 6, Payload: mint},
		{Token0: tk, Token1: w, Ordinal: 7, Payload: burn},
		{Token0: token(0x300), Token1: token(0x301), Ordinal: 8, Payload: unknown},
	}

	f.oracle.Enrich(events)

	requireDecimal(t, "5", decimal.RequireFromString(swap.AmountBNB))
	requireDecimal(t, "1500", decimal.RequireFromString(swap.AmountUSD))
	assert.Equal(t, swap.AmountUSD, swap.VolumeUSD)
	assert.Equal(t, swap.AmountUSD, swap.TradeVolumeUSD0)
	assert.Equal(t, swap.AmountUSD, swap.TradeVolumeUSD1)

	requireDecimal(t, "600", decimal.RequireFromString(mint.AmountUSD))
	requireDecimal(t, "600", decimal.RequireFromString(burn.AmountUSD))

	assert.Empty(t, early.AmountUSD, "prices written after the event are not visible")
	assert.Empty(t, early.AmountBNB)
	assert.Empty(t, unknown.AmountUSD)
}
