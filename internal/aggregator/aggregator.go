package aggregator

import (
	"ammindex/internal/domain"
	"sort"

	"github.com/shopspring/decimal"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Time-bucketed counters and sums.
	Buckets are keyed by day_id = ts/86400 and hour_id = ts/3600; each block first
	expires the previous bucket with a prefix delete, so at most two live buckets
	exist per granularity.
*/

const (
	fieldTransactionCount = "transaction_count"
	fieldSwapCount        = "swap_count"
	fieldMintCount        = "mint_count"
	fieldBurnCount        = "burn_count"
	fieldPairCount        = "pair_count"

	fieldUSD          = "usd"
	fieldBNB          = "bnb"
	fieldToken0       = "token0"
	fieldToken1       = "token1"
	fieldTrade        = "trade"
	fieldTradeUSD     = "trade_usd"
	fieldLiquidity    = "liquidity"
	fieldLiquidityUSD = "liquidity_usd"
	fieldTotalSupply  = "total_supply"
)

type IntWriter interface {
	DeletePrefix(ord uint64, prefix string)
	SumInt64(ord uint64, key string, delta int64)
}

type FloatWriter interface {
	DeletePrefix(ord uint64, prefix string)
	SumBigFloat(ord uint64, key string, delta decimal.Decimal)
}

type Aggregator struct {
	log logger.Logger
}

func New(log logger.Logger) *Aggregator {
	return &Aggregator{log: log}
}

type bucket struct {
	day, hour int64
}

func bucketOf(timestamp int64) bucket {
	return bucket{day: domain.DayID(timestamp), hour: domain.HourID(timestamp)}
}

// Items of one block in ordinal order; pairs before events at equal ordinal
type item struct {
	ord   uint64
	pair  *domain.Pair
	event *domain.Event
}

func ordered(pairs []*domain.Pair, events []*domain.Event) []item {
	out := make([]item, 0, len(pairs)+len(events))
	for _, p := range pairs {
		out = append(out, item{ord: p.Ordinal, pair: p})
	}
	for _, ev := range events {
		out = append(out, item{ord: ev.Ordinal, event: ev})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ord < out[j].ord })
	return out
}
