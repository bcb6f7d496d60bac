package extractor

import (
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Turns one decoded block into pairs, reserves, correlated events and token candidates.
	Every method is a pure function of the block plus the point-in-time lookups it is given.
*/

// Point-in-time view over the pairs and tokens stores
type Lookup interface {
	PairAt(ord uint64, address string) (*domain.Pair, bool)
	TokenAt(ord uint64, address string) (*domain.Token, bool)
}

type Extractor struct {
	log         logger.Logger
	factory     common.Address
	excluded    map[common.Address]struct{}
	minCodeSize int
}

func New(log logger.Logger, cfg *config.ChainConfig) (*Extractor, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the extractor")
	}
	if !common.IsHexAddress(cfg.Factory) {
		return nil, errors.New("factory address is required to the extractor")
	}

	excluded := make(map[common.Address]struct{}, len(cfg.ExcludedDeployers)+1)
	excluded[common.HexToAddress(cfg.Factory)] = struct{}{}
	for _, a := range cfg.ExcludedDeployers {
		excluded[common.HexToAddress(a)] = struct{}{}
	}

	minCodeSize := cfg.MinTokenCodeSize
	if minCodeSize <= 0 {
		minCodeSize = config.DefaultMinTokenCodeSize
	}

	return &Extractor{
		log:         log,
		factory:     common.HexToAddress(cfg.Factory),
		excluded:    excluded,
		minCodeSize: minCodeSize,
	}, nil
}

// Calls whose logs made it into the receipt
func liveCalls(trx *domain.TransactionTrace) []*domain.Call {
	out := make([]*domain.Call, 0, len(trx.Calls))
	for _, call := range trx.Calls {
		if call == nil || call.StateReverted {
			continue
		}
		out = append(out, call)
	}
	return out
}

// Calls are listed parent-first while a nested call's logs come before the rest of its parent's,
// so every output is put back into log ordinal order before the stores see it.
func byOrdinal[T any](items []T, ord func(T) uint64) {
	sort.SliceStable(items, func(i, j int) bool { return ord(items[i]) < ord(items[j]) })
}

// Scales raw amounts by token decimals; the first refused conversion sticks
type scaler struct {
	err error
}

func (s *scaler) amount(v *big.Int, decimals uint32) decimal.Decimal {
	if s.err != nil {
		return decimal.Zero
	}
	d, err := domain.ConvertTokenToDecimal(v, decimals)
	if err != nil {
		s.err = err
	}
	return d
}
