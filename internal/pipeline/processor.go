package pipeline

import (
	"ammindex/internal/aggregator"
	"ammindex/internal/config"
	"ammindex/internal/diff"
	"ammindex/internal/domain"
	"ammindex/internal/extractor"
	"ammindex/internal/oracle"
	"ammindex/internal/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Runs the deterministic per-block pass:
	pairs -> tokens -> reserves -> prices -> events -> totals -> volumes -> table changes.
	Each stage reads the stages before it as of its own ordinals. A fatal error
	rolls every store back to the start of the block.
*/

var ErrBlockOutOfOrder = errors.New("pipeline: block out of order")

// Token metadata provider; *rpc.Client satisfies it
type MetadataSource interface {
	Prefetch(ctx context.Context, addresses []string) error
	TokenMetadata(ctx context.Context, address string) (*domain.Token, error)
}

type BlockOutput struct {
	BlockNum uint64
	Changes  *domain.DatabaseChanges
	Deltas   map[string]domain.StoreDeltas
	Pairs    []*domain.Pair
	Reserves []*domain.Reserve
	Events   []*domain.Event
}

type Processor struct {
	log  logger.Logger
	meta MetadataSource

	mu        sync.RWMutex
	stores    *Stores
	lookup    *storeLookup
	lastBlock uint64
	lastTime  int64
	hasLast   bool

	startBlock uint64
	allowGaps  bool

	extractor  *extractor.Extractor
	oracle     *oracle.Oracle
	aggregator *aggregator.Aggregator
	emitter    *diff.Emitter
}

func New(log logger.Logger, chain *config.ChainConfig, ingest *config.IngestConfig, meta MetadataSource) (*Processor, error) {
	if chain == nil {
		return nil, errors.New("chain config is required to the processor")
	}
	if ingest == nil {
		return nil, errors.New("ingest config is required to the processor")
	}
	if meta == nil {
		return nil, errors.New("metadata source is required to the processor")
	}

	stores := NewStores()
	lookup := &storeLookup{pairs: stores.Pairs, tokens: stores.Tokens}

	ex, err := extractor.New(log, chain)
	if err != nil {
		return nil, err
	}
	or, err := oracle.New(log, chain, oracle.Sources{Pairs: lookup, Reserves: stores.Reserves, Prices: stores.Prices})
	if err != nil {
		return nil, err
	}
	em, err := diff.New(log, chain.Factory, lookup)
	if err != nil {
		return nil, err
	}

	return &Processor{
		log:        log,
		meta:       meta,
		stores:     stores,
		lookup:     lookup,
		startBlock: ingest.StartBlock,
		allowGaps:  ingest.AllowGaps,
		extractor:  ex,
		oracle:     or,
		aggregator: aggregator.New(log),
		emitter:    em,
	}, nil
}

func (p *Processor) LastBlock() (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lastBlock, p.hasLast
}

// Blocks must follow the last processed one; with allowGaps any higher number is accepted
func (p *Processor) checkOrder(number uint64) error {
	if !p.hasLast {
		if number < p.startBlock {
			return fmt.Errorf("%w: block %d is before start block %d", ErrBlockOutOfOrder, number, p.startBlock)
		}
		return nil
	}

	if number <= p.lastBlock || (!p.allowGaps && number != p.lastBlock+1) {
		return fmt.Errorf("%w: got %d after %d", ErrBlockOutOfOrder, number, p.lastBlock)
	}
	return nil
}

func (p *Processor) ProcessBlock(ctx context.Context, block *domain.Block) (*BlockOutput, error) {
	if block == nil {
		return nil, errors.New("block is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOrder(block.Number); err != nil {
		return nil, err
	}

	out, err := p.process(ctx, block)
	if err != nil {
		p.stores.Rollback()
		p.lookup.err = nil
		return nil, fmt.Errorf("block %d: %w", block.Number, err)
	}

	p.stores.Flush()
	p.lastBlock, p.lastTime, p.hasLast = block.Number, block.Timestamp, true

	return out, nil
}

func (p *Processor) process(ctx context.Context, block *domain.Block) (*BlockOutput, error) {
	s := p.stores

	pairs, err := p.extractor.Pairs(block)
	if err != nil {
		return nil, err
	}
	if err = p.storePairs(pairs); err != nil {
		return nil, err
	}

	if err = p.storeTokens(ctx, p.extractor.TokenCandidates(block, pairs)); err != nil {
		return nil, err
	}

	reserves, err := p.extractor.Reserves(block, p.lookup)
	if err != nil {
		return nil, err
	}
	p.storeReserves(block.Timestamp, reserves)
	if err = p.check(); err != nil {
		return nil, err
	}

	p.oracle.BuildPrices(s.Prices, block.Timestamp, reserves)
	if err = p.check(); err != nil {
		return nil, err
	}

	events, err := p.extractor.Events(block, p.lookup)
	if err != nil {
		return nil, err
	}
	p.oracle.Enrich(events)

	p.aggregator.BuildTotals(s.Totals, block.Timestamp, pairs, events)
	p.aggregator.BuildVolumes(s.Volumes, block.Timestamp, events)
	if err = p.check(); err != nil {
		return nil, err
	}

	changes, err := p.emitter.Emit(&diff.Input{
		BlockNum:  block.Number,
		BlockHash: block.Hash.Hex(),
		Timestamp: block.Timestamp,
		Pairs:     s.Pairs.Deltas(),
		Tokens:    s.Tokens.Deltas(),
		Totals:    s.Totals.Deltas(),
		Volumes:   s.Volumes.Deltas(),
		Reserves:  reserves,
		Events:    events,
	})
	if err != nil {
		return nil, err
	}
	if err = p.check(); err != nil {
		return nil, err
	}

	return &BlockOutput{
		BlockNum: block.Number,
		Changes:  changes,
		Deltas:   s.Deltas(),
		Pairs:    pairs,
		Reserves: reserves,
		Events:   events,
	}, nil
}

// Sticky store and lookup errors
func (p *Processor) check() error {
	if err := p.stores.Err(); err != nil {
		return err
	}
	return p.lookup.err
}

func (p *Processor) storePairs(pairs []*domain.Pair) error {
	for _, pair := range pairs {
		raw, err := json.Marshal(pair)
		if err != nil {
			return fmt.Errorf("encode pair %s: %w", pair.Address, err)
		}
		p.stores.Pairs.Set(pair.Ordinal, domain.PairKey(pair.Address), raw)
		p.stores.Pairs.Set(pair.Ordinal, domain.TokensKey(pair.Token0Address, pair.Token1Address), []byte(pair.Address))
	}
	return p.check()
}

// Metadata is prefetched concurrently, then written in candidate order
func (p *Processor) storeTokens(ctx context.Context, candidates []extractor.TokenCandidate) error {
	pending := make([]extractor.TokenCandidate, 0, len(candidates))
	addrs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if p.stores.Tokens.Has(domain.TokenKey(c.Address)) {
			continue
		}
		pending = append(pending, c)
		addrs = append(addrs, c.Address)
	}
	if len(pending) == 0 {
		return nil
	}

	if err := p.meta.Prefetch(ctx, addrs); err != nil {
		return fmt.Errorf("prefetch token metadata: %w", err)
	}

	for _, c := range pending {
		token, err := p.meta.TokenMetadata(ctx, c.Address)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Debugf("Skip candidate %s: %v", c.Address, err)
			continue
		}

		raw, err := json.Marshal(token)
		if err != nil {
			return fmt.Errorf("encode token %s: %w", c.Address, err)
		}
		p.stores.Tokens.SetIfNotExists(c.Ordinal, domain.TokenKey(c.Address), raw)
	}

	return p.check()
}

// Latest prices and reserves per pair, plus the token reserves of the current day/hour buckets.
// The previous buckets are expired first.
func (p *Processor) storeReserves(timestamp int64, reserves []*domain.Reserve) {
	w := p.stores.Reserves
	day, hour := domain.DayID(timestamp), domain.HourID(timestamp)

	w.DeletePrefix(0, domain.BucketPrefix(domain.NSPairDay, day-1))
	w.DeletePrefix(0, domain.BucketPrefix(domain.NSPairHour, hour-1))

	for _, r := range reserves {
		pair, ok := p.lookup.PairAt(r.Ordinal, r.PairAddress)
		if !ok {
			continue
		}
		t0, t1 := pair.Token0Address, pair.Token1Address

		w.Set(r.Ordinal, domain.PriceKey(t0, t1), []byte(r.Token0Price))
		w.Set(r.Ordinal, domain.PriceKey(t1, t0), []byte(r.Token1Price))
		for _, key := range []string{
			domain.ReserveKey(r.PairAddress, t0),
			domain.BucketKey(domain.NSPairDay, day, t0, "reserve0"),
			domain.BucketKey(domain.NSPairHour, hour, t0, "reserve0"),
		} {
			w.Set(r.Ordinal, key, []byte(r.Reserve0))
		}
		for _, key := range []string{
			domain.ReserveKey(r.PairAddress, t1),
			domain.BucketKey(domain.NSPairDay, day, t1, "reserve1"),
			domain.BucketKey(domain.NSPairHour, hour, t1, "reserve1"),
		} {
			w.Set(r.Ordinal, key, []byte(r.Reserve1))
		}
	}
}

func (p *Processor) Snapshot() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return store.MarshalSnapshot(store.Cursor{Block: p.lastBlock, Timestamp: p.lastTime}, p.stores.All()...)
}

// Replaces the store state; the next block must follow the snapshot's last block
func (p *Processor) Restore(data []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, err := store.UnmarshalSnapshot(data, p.stores.All()...)
	if err != nil {
		return 0, err
	}

	p.lastBlock, p.lastTime, p.hasLast = last.Block, last.Timestamp, true
	return last.Block, nil
}
