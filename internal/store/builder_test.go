package store

import (
	"ammindex/internal/domain"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writes at 1, 5, 10 must never leak forward
func TestBuilder_GetAtNoForwardLeakage(t *testing.T) {
	t.Parallel()

	b := NewBuilder("reserves", MergeLastKey)
	b.Set(1, "k", []byte("a"))
	b.Set(5, "k", []byte("b"))
	b.Set(10, "k", []byte("c"))
	require.NoError(t, b.Err())

	cases := []struct {
		ord   uint64
		want  string
		found bool
	}{
		{ord: 0, found: false},
		{ord: 1, want: "a", found: true},
		{ord: 3, want: "a", found: true},
		{ord: 5, want: "b", found: true},
		{ord: 7, want: "b", found: true},
		{ord: 12, want: "c", found: true},
	}
	for _, tc := range cases {
		v, ok := b.GetAt(tc.ord, "k")
		assert.Equal(t, tc.found, ok, "ord=%d", tc.ord)
		assert.Equal(t, tc.want, string(v), "ord=%d", tc.ord)
	}

	last, ok := b.GetLast("k")
	require.True(t, ok)
	assert.Equal(t, "c", string(last))
}

func TestBuilder_GetAtStableBetweenWrites(t *testing.T) {
	t.Parallel()

	b := NewBuilder("pairs", MergeLastKey)
	b.Set(2, "k", []byte("x"))
	b.Set(9, "other", []byte("y"))

	for o := uint64(2); o < 20; o++ {
		v, ok := b.GetAt(o, "k")
		require.True(t, ok)
		assert.Equal(t, "x", string(v))
	}
}

func TestBuilder_GetAtBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	b := NewBuilder("pairs", MergeLastKey)
	_, ok := b.GetAt(100, "missing")
	assert.False(t, ok)
	_, ok = b.GetLast("missing")
	assert.False(t, ok)
}

func TestBuilder_GetAtSeesDeletedValue(t *testing.T) {
	t.Parallel()

	b := NewBuilder("pairs", MergeLastKey)
	b.Set(1, "k", []byte("v"))
	b.Del(4, "k")

	v, ok := b.GetAt(3, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	_, ok = b.GetAt(4, "k")
	assert.False(t, ok)
}

func TestBuilder_SetRecordsCreateThenUpdate(t *testing.T) {
	t.Parallel()

	b := NewBuilder("pairs", MergeLastKey)
	b.Set(1, "pair:0x1", []byte("one"))
	b.Set(2, "pair:0x1", []byte("two"))
	b.Set(3, "pair:0x1", []byte("two")) // identical value, no delta

	deltas := b.Deltas()
	require.Len(t, deltas, 2)
	assert.Equal(t, domain.DeltaCreate, deltas[0].Operation)
	assert.Nil(t, deltas[0].OldValue)
	assert.Equal(t, domain.DeltaUpdate, deltas[1].Operation)
	assert.Equal(t, "one", string(deltas[1].OldValue))
	assert.Equal(t, "two", string(deltas[1].NewValue))
	assert.Equal(t, uint64(2), deltas[1].Ordinal)
}

func TestBuilder_SetIfNotExists(t *testing.T) {
	t.Parallel()

	b := NewBuilder("tokens", MergeLastKey)
	b.SetIfNotExists(1, "token:0xa", []byte("first"))
	b.SetIfNotExists(2, "token:0xa", []byte("second"))

	v, _ := b.GetLast("token:0xa")
	assert.Equal(t, "first", string(v))
	assert.Len(t, b.Deltas(), 1)
}

func TestBuilder_SumInt64(t *testing.T) {
	t.Parallel()

	b := NewBuilder("totals", MergeSumInts)
	for i := 0; i < 3; i++ {
		b.SumInt64(7, "pair:P:swap_count", 1)
	}
	require.NoError(t, b.Err())

	v, ok := b.GetIntLast("pair:P:swap_count")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.Len(t, b.Deltas(), 3)
}

func TestBuilder_SumBigFloatKeepsPrecision(t *testing.T) {
	t.Parallel()

	b := NewBuilder("volumes", MergeSumFloats)
	step := decimal.RequireFromString("0.1")
	for i := 0; i < 1000; i++ {
		b.SumBigFloat(uint64(i), "global:usd", step)
	}
	require.NoError(t, b.Err())

	v, ok := b.GetDecimalLast("global:usd")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(100)), "got %s", v)
}

func TestBuilder_DeletePrefix(t *testing.T) {
	t.Parallel()

	b := NewBuilder("volumes", MergeSumFloats)
	one := decimal.NewFromInt(1)
	b.SumBigFloat(1, "pair_day:5:0xb:usd", one)
	b.SumBigFloat(1, "pair_day:5:0xa:usd", one)
	b.SumBigFloat(1, "pair_day:50:0xa:usd", one)
	b.SumBigFloat(1, "pair_day:6:0xa:usd", one)
	b.SumBigFloat(1, "pair:0xa:usd", one)

	b.DeletePrefix(2, "pair_day:5:")
	require.NoError(t, b.Err())

	assert.Equal(t, []string{"pair:0xa:usd", "pair_day:50:0xa:usd", "pair_day:6:0xa:usd"}, b.Keys(""))

	deltas := b.Deltas()
	require.Len(t, deltas, 7)
	assert.Equal(t, domain.DeltaDelete, deltas[5].Operation)
	assert.Equal(t, "pair_day:5:0xa:usd", deltas[5].Key)
	assert.Equal(t, "pair_day:5:0xb:usd", deltas[6].Key)
}

func TestBuilder_OrdinalRegressionIsSticky(t *testing.T) {
	t.Parallel()

	b := NewBuilder("pairs", MergeLastKey)
	b.Set(5, "a", []byte("1"))
	b.Set(4, "b", []byte("2"))
	b.Set(6, "c", []byte("3"))

	require.ErrorIs(t, b.Err(), ErrOrdinalRegression)
	assert.False(t, b.Has("b"))
	assert.False(t, b.Has("c"))
}

func TestBuilder_KeyTypeCannotChange(t *testing.T) {
	t.Parallel()

	b := NewBuilder("totals", MergeSumInts)
	b.SumInt64(1, "k", 1)
	b.Set(2, "k", []byte("x"))

	require.ErrorIs(t, b.Err(), ErrKeyTypeMismatch)
}

func TestBuilder_CorruptValue(t *testing.T) {
	t.Parallel()

	b := NewBuilder("prices", MergeLastKey)
	b.Set(1, "dprice:0xa:bnb", []byte("not-a-number"))

	_, ok := b.GetDecimalAt(1, "dprice:0xa:bnb")
	assert.False(t, ok)

	var corrupt *CorruptValueError
	require.ErrorAs(t, b.Err(), &corrupt)
	assert.Equal(t, "dprice:0xa:bnb", corrupt.Key)
}

func TestBuilder_FlushResetsOrdinalGuard(t *testing.T) {
	t.Parallel()

	b := NewBuilder("volumes", MergeSumFloats)
	b.SumBigFloat(40, "pair_day:1:0xa:usd", decimal.NewFromInt(1))
	b.Flush()

	assert.Empty(t, b.Deltas())
	b.DeletePrefix(0, "pair_day:1:")
	require.NoError(t, b.Err())
	assert.Zero(t, b.Len())
}

func TestBuilder_GetFirstReturnsBlockStartValue(t *testing.T) {
	t.Parallel()

	b := NewBuilder("prices", MergeLastKey)
	b.Set(1, "old", []byte("v1"))
	b.Flush()

	b.Set(3, "old", []byte("v2"))
	b.Set(4, "new", []byte("n"))

	v, ok := b.GetFirst("old")
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	_, ok = b.GetFirst("new")
	assert.False(t, ok)
}

func TestBuilder_Rollback(t *testing.T) {
	t.Parallel()

	b := NewBuilder("totals", MergeSumInts)
	b.SumInt64(1, "global:pair_count", 2)
	b.SumInt64(1, "global_day:3:transaction_count", 1)
	b.Flush()

	b.SumInt64(2, "global:pair_count", 1)
	b.DeletePrefix(3, "global_day:3:")
	b.SumInt64(4, "global_day:4:transaction_count", 1)
	b.Rollback()

	assert.Empty(t, b.Deltas())
	assert.Equal(t, []string{"global:pair_count", "global_day:3:transaction_count"}, b.Keys(""))

	v, _ := b.GetIntLast("global:pair_count")
	assert.Equal(t, int64(2), v)

	// restored keys keep their aggregation type
	b.SumInt64(1, "global_day:3:transaction_count", 1)
	require.NoError(t, b.Err())
}
