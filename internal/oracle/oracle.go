package oracle

import (
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Price derivation over point-in-time store reads.
	Every lookup is made as of the ordinal of the item being priced, so a replay
	of the same blocks derives the same prices.
*/

// Point-in-time reads; *store.Builder satisfies it
type Reader interface {
	GetAt(ord uint64, key string) ([]byte, bool)
	GetDecimalAt(ord uint64, key string) (decimal.Decimal, bool)
}

type Writer interface {
	DeletePrefix(ord uint64, prefix string)
	SetDecimal(ord uint64, key string, value decimal.Decimal)
}

type Pairs interface {
	PairAt(ord uint64, address string) (*domain.Pair, bool)
	// address of the pair trading tokenA against tokenB
	PairFor(ord uint64, tokenA, tokenB string) (string, bool)
}

// Stores the oracle reads from
type Sources struct {
	Pairs    Pairs
	Reserves Reader // price:*, reserve:*
	Prices   Reader // dprice:*
}

type Oracle struct {
	log logger.Logger
	src Sources

	wbnb      string
	usdPairs  []string
	whitelist []string
	threshold decimal.Decimal
}

func New(log logger.Logger, cfg *config.ChainConfig, src Sources) (*Oracle, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the price oracle")
	}
	if src.Pairs == nil || src.Reserves == nil || src.Prices == nil {
		return nil, errors.New("pairs, reserves and prices sources are required to the price oracle")
	}

	threshold, err := decimal.NewFromString(cfg.LiquidityThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid liquidity threshold %q: %w", cfg.LiquidityThreshold, err)
	}

	return &Oracle{
		log:       log,
		src:       src,
		wbnb:      cfg.NativeWrapper,
		usdPairs:  []string{cfg.BUSDPair, cfg.USDTPair},
		whitelist: append([]string(nil), cfg.Whitelist...),
		threshold: threshold,
	}, nil
}

func (o *Oracle) isUSDPair(pair string) bool {
	for _, p := range o.usdPairs {
		if p == pair {
			return true
		}
	}
	return false
}

// Non-zero decimal at ord; zero counts as unknown
func positiveAt(r Reader, ord uint64, key string) (decimal.Decimal, bool) {
	v, ok := r.GetDecimalAt(ord, key)
	if !ok || v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}
