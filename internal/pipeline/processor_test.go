package pipeline

import (
	"ammindex/internal/chaintest"
	"ammindex/internal/config"
	"ammindex/internal/diff"
	"ammindex/internal/domain"
	"ammindex/internal/extractor"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayTwo = 172800

var (
	factory  = common.HexToAddress(config.DefaultFactory)
	wbnb     = common.HexToAddress(config.DefaultNativeWrapper)
	busd     = common.HexToAddress(config.DefaultWhitelist[1])
	busdPair = common.HexToAddress(config.DefaultBUSDPair)
	user     = chaintest.Addr(0xa11ce)
	router   = chaintest.Addr(0x2007e2)
)

func newFakeMetadata() *chaintest.Metadata {
	return chaintest.NewMetadata(
		&domain.Token{Address: domain.Hex(wbnb), Name: "Wrapped BNB", Symbol: "WBNB", Decimals: 18},
		&domain.Token{Address: domain.Hex(busd), Name: "BUSD Token", Symbol: "BUSD", Decimals: 18},
	)
}

func newTestProcessor(t *testing.T, meta MetadataSource) *Processor {
	t.Helper()

	chain := config.DefaultChain()
	p, err := New(chaintest.Logger(), &chain, &config.IngestConfig{StartBlock: 1}, meta)
	require.NoError(t, err)
	return p
}

// WBNB/BUSD pair created and seeded with 10 WBNB / 2500 BUSD
func creationBlock() *domain.Block {
	bb := chaintest.NewBlock(1, dayTwo)
	bb.Tx(user, factory).PairCreated(wbnb, busd, busdPair, 1)
	bb.Tx(user, router).
		Call(router, busdPair).
		Transfer(common.Address{}, common.Address{}, big.NewInt(10000)).
		Transfer(common.Address{}, user, chaintest.Amount(150, 18)).
		Sync(chaintest.Amount(10, 18), chaintest.Amount(2500, 18)).
		Mint(router, chaintest.Amount(10, 18), chaintest.Amount(2500, 18))
	// contract without metadata
	bb.Tx(user, common.Address{}).Create(user, chaintest.Addr(0xc0de), 400)
	return bb.Build()
}

// 1 WBNB in, 250 BUSD out at an unchanged 250 BUSD/WBNB
func swapBlock(number uint64) *domain.Block {
	bb := chaintest.NewBlock(number, dayTwo+3600)
	bb.Tx(user, router).
		Call(router, busdPair).
		Sync(chaintest.Amount(11, 18), chaintest.Amount(2750, 18)).
		Swap(router, user, chaintest.Amount(1, 18), big.NewInt(0), big.NewInt(0), chaintest.Amount(250, 18))
	return bb.Build()
}

func requireDecimal(t *testing.T, want, got string) {
	t.Helper()
	d, err := decimal.NewFromString(got)
	require.NoErrorf(t, err, "value %q", got)
	require.Truef(t, decimal.RequireFromString(want).Equal(d), "want %s, got %s", want, got)
}

func findChanges(changes *domain.DatabaseChanges, table string, op domain.ChangeOperation) []*domain.TableChange {
	out := make([]*domain.TableChange, 0)
	for _, tc := range changes.TableChanges {
		if tc.Table == table && tc.Operation == op {
			out = append(out, tc)
		}
	}
	return out
}

func fieldValue(tc *domain.TableChange, name string) (string, bool) {
	for _, f := range tc.Fields {
		if f.Name == name {
			return f.NewValue, true
		}
	}
	return "", false
}

func TestNew_Validation(t *testing.T) {
	chain := config.DefaultChain()
	ingest := &config.IngestConfig{}

	_, err := New(chaintest.Logger(), nil, ingest, newFakeMetadata())
	require.Error(t, err)
	_, err = New(chaintest.Logger(), &chain, nil, newFakeMetadata())
	require.Error(t, err)
	_, err = New(chaintest.Logger(), &chain, ingest, nil)
	require.Error(t, err)
}

func TestProcessBlock_CreationAndMint(t *testing.T) {
	meta := newFakeMetadata()
	p := newTestProcessor(t, meta)

	out, err := p.ProcessBlock(context.Background(), creationBlock())
	require.NoError(t, err)

	require.Len(t, out.Pairs, 1)
	require.Len(t, out.Reserves, 1)
	require.Len(t, out.Events, 1)

	mint := out.Events[0].Payload.(*domain.Mint)
	requireDecimal(t, "5000", mint.AmountUSD)
	requireDecimal(t, "150", mint.Liquidity)

	// metadata is requested once for the uncached candidates
	require.Len(t, meta.PrefetchCalls(), 1)
	assert.ElementsMatch(t, []string{domain.Hex(chaintest.Addr(0xc0de)), domain.Hex(wbnb), domain.Hex(busd)}, meta.PrefetchCalls()[0])

	pairRows := findChanges(out.Changes, diff.TablePair, domain.ChangeCreate)
	require.Len(t, pairRows, 1)
	name, _ := fieldValue(pairRows[0], "name")
	assert.Equal(t, "WBNB-BUSD", name)
	assert.Len(t, findChanges(out.Changes, diff.TableToken, domain.ChangeCreate), 2)
	assert.Len(t, findChanges(out.Changes, diff.TableMint, domain.ChangeCreate), 1)

	assert.Equal(t, uint64(1), out.Changes.BlockNum)
	assert.NotEmpty(t, out.Deltas[StorePrices])
	for _, d := range out.Deltas[StorePrices] {
		assert.NotEqual(t, domain.DeltaDelete, d.Operation)
	}

	last, ok := p.LastBlock()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), last)

	ov := p.Overview()
	requireDecimal(t, "250", ov.BNBPriceUSD)
	assert.Equal(t, "1", ov.TotalPairs)
	assert.Equal(t, "1", ov.TotalTransactions)
	assert.Equal(t, "1", ov.DailyTransactions)
	requireDecimal(t, "5000", ov.TotalLiquidityUSD)

	tok, err := p.TokenSummary(domain.Hex(busd))
	require.NoError(t, err)
	assert.Equal(t, "BUSD", tok.Token.Symbol)
	requireDecimal(t, "0.004", tok.PriceBNB)
	requireDecimal(t, "1", tok.PriceUSD)

	_, err = p.TokenSummary(domain.Hex(chaintest.Addr(0xc0de)))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProcessBlock_SwapVolumes(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())

	_, err := p.ProcessBlock(context.Background(), creationBlock())
	require.NoError(t, err)
	out, err := p.ProcessBlock(context.Background(), swapBlock(2))
	require.NoError(t, err)

	require.Len(t, out.Events, 1)
	swap := out.Events[0].Payload.(*domain.Swap)
	requireDecimal(t, "1", swap.AmountBNB)
	requireDecimal(t, "250", swap.AmountUSD)
	assert.Len(t, findChanges(out.Changes, diff.TableSwap, domain.ChangeCreate), 1)

	ps, err := p.PairSummary(domain.Hex(busdPair))
	require.NoError(t, err)
	requireDecimal(t, "11", ps.Reserve0)
	requireDecimal(t, "2750", ps.Reserve1)
	requireDecimal(t, "250", ps.Token0Price)
	requireDecimal(t, "250", ps.VolumeUSD)
	requireDecimal(t, "1", ps.VolumeToken0)
	requireDecimal(t, "250", ps.VolumeToken1)
	requireDecimal(t, "250", ps.DailyVolumeUSD)
	requireDecimal(t, "150", ps.TotalSupply)
	assert.Equal(t, "1", ps.SwapCount)
	assert.Equal(t, "1", ps.MintCount)
	assert.Equal(t, "2", ps.TotalTransactions)

	ov := p.Overview()
	requireDecimal(t, "250", ov.TotalVolumeUSD)
	requireDecimal(t, "1", ov.TotalVolumeBNB)
	assert.Equal(t, "2", ov.TotalTransactions)
}

func TestProcessBlock_Order(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())

	_, err := p.ProcessBlock(context.Background(), swapBlock(0))
	require.ErrorIs(t, err, ErrBlockOutOfOrder)

	_, err = p.ProcessBlock(context.Background(), creationBlock())
	require.NoError(t, err)

	_, err = p.ProcessBlock(context.Background(), creationBlock())
	require.ErrorIs(t, err, ErrBlockOutOfOrder)

	_, err = p.ProcessBlock(context.Background(), swapBlock(3))
	require.ErrorIs(t, err, ErrBlockOutOfOrder)

	p.allowGaps = true
	_, err = p.ProcessBlock(context.Background(), swapBlock(3))
	require.NoError(t, err)
}

func TestProcessBlock_RollbackOnCorrelationError(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())

	_, err := p.ProcessBlock(context.Background(), creationBlock())
	require.NoError(t, err)
	before := p.Overview()

	otherPair := chaintest.Addr(0x5002)
	bb := chaintest.NewBlock(2, dayTwo+60)
	bb.Tx(user, factory).PairCreated(busd, chaintest.Addr(0x1001), otherPair, 2)
	bb.Tx(user, router).
		Call(router, busdPair).
		Sync(chaintest.Amount(1, 18), chaintest.Amount(1, 18)).
		Sync(chaintest.Amount(1, 18), chaintest.Amount(1, 18)).
		Sync(chaintest.Amount(1, 18), chaintest.Amount(1, 18)).
		Sync(chaintest.Amount(1, 18), chaintest.Amount(1, 18)).
		Sync(chaintest.Amount(1, 18), chaintest.Amount(1, 18))

	_, err = p.ProcessBlock(context.Background(), bb.Build())
	var corr *extractor.CorrelationError
	require.ErrorAs(t, err, &corr)

	_, err = p.PairSummary(domain.Hex(otherPair))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before, p.Overview())

	ps, err := p.PairSummary(domain.Hex(busdPair))
	require.NoError(t, err)
	requireDecimal(t, "10", ps.Reserve0)

	// the failed block can be replaced
	_, err = p.ProcessBlock(context.Background(), swapBlock(2))
	require.NoError(t, err)
}

func TestProcessBlock_Deterministic(t *testing.T) {
	run := func() []*domain.DatabaseChanges {
		p := newTestProcessor(t, newFakeMetadata())
		out := make([]*domain.DatabaseChanges, 0, 2)
		for _, b := range []*domain.Block{creationBlock(), swapBlock(2)} {
			o, err := p.ProcessBlock(context.Background(), b)
			require.NoError(t, err)
			out = append(out, o.Changes)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestSnapshotRestore(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())
	_, err := p.ProcessBlock(context.Background(), creationBlock())
	require.NoError(t, err)

	data, err := p.Snapshot()
	require.NoError(t, err)

	restored := newTestProcessor(t, newFakeMetadata())
	last, err := restored.Restore(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), last)

	_, err = restored.ProcessBlock(context.Background(), swapBlock(2))
	require.NoError(t, err)
	_, err = p.ProcessBlock(context.Background(), swapBlock(2))
	require.NoError(t, err)

	a, err := p.PairSummary(domain.Hex(busdPair))
	require.NoError(t, err)
	b, err := restored.PairSummary(domain.Hex(busdPair))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProcessBlock_CanceledMetadata(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bb := chaintest.NewBlock(1, dayTwo)
	bb.Tx(user, common.Address{}).Create(user, chaintest.Addr(0xc0de), 400)

	_, err := p.ProcessBlock(ctx, bb.Build())
	require.ErrorIs(t, err, context.Canceled)

	_, ok := p.LastBlock()
	assert.False(t, ok)
}

// ========== Nested calls ==========

func TestProcessBlock_NestedPairCall(t *testing.T) {
	cake := chaintest.Addr(0xca4e)
	cakePair := chaintest.Addr(0x5b)
	meta := chaintest.NewMetadata(
		&domain.Token{Address: domain.Hex(wbnb), Name: "Wrapped BNB", Symbol: "WBNB", Decimals: 18},
		&domain.Token{Address: domain.Hex(busd), Name: "BUSD Token", Symbol: "BUSD", Decimals: 18},
		&domain.Token{Address: domain.Hex(cake), Name: "PancakeSwap Token", Symbol: "Cake", Decimals: 18},
	)
	p := newTestProcessor(t, meta)

	bb := chaintest.NewBlock(1, dayTwo)
	bb.Tx(user, factory).
		PairCreated(wbnb, busd, busdPair, 1).
		PairCreated(cake, wbnb, cakePair, 2)
	bb.Tx(user, router).
		Call(router, busdPair).
		Sync(chaintest.Amount(10, 18), chaintest.Amount(2500, 18)).
		Call(router, cakePair).
		Sync(chaintest.Amount(1000, 18), chaintest.Amount(100, 18))
	_, err := p.ProcessBlock(context.Background(), bb.Build())
	require.NoError(t, err)

	// the busdPair call is listed first but cakePair logged first
	bb = chaintest.NewBlock(2, dayTwo+7200)
	bb.Tx(user, router).
		Call(router, cakePair).
		Sync(chaintest.Amount(1010, 18), chaintest.Amount(99, 18)).
		Swap(router, busdPair, chaintest.Amount(10, 18), big.NewInt(0), big.NewInt(0), chaintest.Amount(1, 18)).
		Call(router, busdPair).
		Sync(chaintest.Amount(11, 18), chaintest.Amount(2750, 18)).
		Swap(router, user, chaintest.Amount(1, 18), big.NewInt(0), big.NewInt(0), chaintest.Amount(250, 18)).
		Hoist(1)
	blk := bb.Build()
	require.Equal(t, busdPair, blk.Transactions[0].Calls[1].Address)

	out, err := p.ProcessBlock(context.Background(), blk)
	require.NoError(t, err)

	require.Len(t, out.Reserves, 2)
	assert.Equal(t, uint64(1), out.Reserves[0].Ordinal)
	assert.Equal(t, uint64(3), out.Reserves[1].Ordinal)
	require.Len(t, out.Events, 2)
	assert.Equal(t, uint64(2), out.Events[0].Ordinal)
	assert.Equal(t, uint64(4), out.Events[1].Ordinal)

	last, ok := p.LastBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(2), last)

	ps, err := p.PairSummary(domain.Hex(cakePair))
	require.NoError(t, err)
	requireDecimal(t, "1010", ps.Reserve0)
	requireDecimal(t, "99", ps.Reserve1)
	assert.Equal(t, "1", ps.SwapCount)

	_, err = p.ProcessBlock(context.Background(), swapBlock(3))
	require.NoError(t, err)
}

// ========== Reserve buckets ==========

func findDelta(deltas domain.StoreDeltas, key string, op domain.DeltaOperation) (*domain.StoreDelta, bool) {
	for _, d := range deltas {
		if d.Key == key && d.Operation == op {
			return d, true
		}
	}
	return nil, false
}

func TestProcessBlock_ReserveBuckets(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())
	day, hour := domain.DayID(dayTwo), domain.HourID(dayTwo)

	out, err := p.ProcessBlock(context.Background(), creationBlock())
	require.NoError(t, err)

	deltas := out.Deltas[StoreReserves]
	d, ok := findDelta(deltas, domain.BucketKey(domain.NSPairDay, day, domain.Hex(wbnb), "reserve0"), domain.DeltaCreate)
	require.True(t, ok)
	requireDecimal(t, "10", string(d.NewValue))
	d, ok = findDelta(deltas, domain.BucketKey(domain.NSPairHour, hour, domain.Hex(busd), "reserve1"), domain.DeltaCreate)
	require.True(t, ok)
	requireDecimal(t, "2500", string(d.NewValue))

	// next day: yesterday's buckets are expired before today's are written
	bb := chaintest.NewBlock(2, dayTwo+86400)
	bb.Tx(user, router).
		Call(router, busdPair).
		Sync(chaintest.Amount(11, 18), chaintest.Amount(2750, 18)).
		Swap(router, user, chaintest.Amount(1, 18), big.NewInt(0), big.NewInt(0), chaintest.Amount(250, 18))
	out, err = p.ProcessBlock(context.Background(), bb.Build())
	require.NoError(t, err)

	deltas = out.Deltas[StoreReserves]
	_, ok = findDelta(deltas, domain.BucketKey(domain.NSPairDay, day, domain.Hex(wbnb), "reserve0"), domain.DeltaDelete)
	assert.True(t, ok)
	_, ok = findDelta(deltas, domain.BucketKey(domain.NSPairHour, hour, domain.Hex(busd), "reserve1"), domain.DeltaDelete)
	assert.False(t, ok, "only the hour right before the block is expired")
	d, ok = findDelta(deltas, domain.BucketKey(domain.NSPairDay, day+1, domain.Hex(wbnb), "reserve0"), domain.DeltaCreate)
	require.True(t, ok)
	requireDecimal(t, "11", string(d.NewValue))
}

// ========== Restore ==========

func TestSnapshotRestore_KeepsBlockTime(t *testing.T) {
	p := newTestProcessor(t, newFakeMetadata())
	for _, b := range []*domain.Block{creationBlock(), swapBlock(2)} {
		_, err := p.ProcessBlock(context.Background(), b)
		require.NoError(t, err)
	}

	data, err := p.Snapshot()
	require.NoError(t, err)

	restored := newTestProcessor(t, newFakeMetadata())
	_, err = restored.Restore(data)
	require.NoError(t, err)

	ps, err := restored.PairSummary(domain.Hex(busdPair))
	require.NoError(t, err)
	requireDecimal(t, "250", ps.DailyVolumeUSD)

	ov := restored.Overview()
	assert.Equal(t, p.Overview(), ov)
	assert.Equal(t, "2", ov.DailyTransactions)
}
