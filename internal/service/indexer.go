package service

import (
	"ammindex/internal/config"
	"ammindex/internal/dedupe"
	"ammindex/internal/domain"
	"ammindex/internal/metrics"
	"ammindex/internal/pipeline"
	"ammindex/internal/pubsub"
	"ammindex/internal/stores/redis"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// Batched analytical sink (ClickHouse)
type ChangeWriter interface {
	Enqueue(ctx context.Context, changes *domain.DatabaseChanges) error
	Health(ctx context.Context) error
}

// Transactional relational sink (Postgres)
type ChangeApplier interface {
	Apply(ctx context.Context, changes *domain.DatabaseChanges) error
	Health(ctx context.Context) error
}

type SnapshotStore interface {
	Save(ctx context.Context, block uint64, data []byte) error
	Load(ctx context.Context) (uint64, []byte, error)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// Deps of the indexer. Writer, Applier and Snapshots are optional.
type Deps struct {
	Processor   *pipeline.Processor
	Deduper     dedupe.Deduper
	Broadcaster pubsub.Broadcaster
	Writer      ChangeWriter
	Applier     ChangeApplier
	Snapshots   SnapshotStore
	Metrics     *metrics.Metrics
}

// The only orchestration point: dedupe -> process -> fan-out -> mark seen -> snapshot.
// HandleBlock is called from a single ingest goroutine; reads may come from anywhere.
type Indexer struct {
	log    logger.Logger
	deps   Deps
	prefix string

	snapshotEvery int64 // seconds of block time
	snapMu        sync.Mutex
	snapAt        int64
}

func NewIndexer(log logger.Logger, cfg *config.Config, deps Deps) (*Indexer, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the indexer")
	}
	if deps.Processor == nil {
		return nil, errors.New("processor is required to the indexer")
	}
	if deps.Deduper == nil {
		return nil, errors.New("deduper is required to the indexer")
	}
	if deps.Broadcaster == nil {
		return nil, errors.New("broadcaster is required to the indexer")
	}
	if deps.Metrics == nil {
		return nil, errors.New("metrics are required to the indexer")
	}

	return &Indexer{
		log:           log,
		deps:          deps,
		prefix:        cfg.PubSub.NATS.BroadcastPrefix,
		snapshotEvery: int64(cfg.App.SnapshotInterval / time.Second),
	}, nil
}

func (s *Indexer) HandleBlock(ctx context.Context, block *domain.Block) error {
	if block == nil {
		return errors.New("nil block")
	}

	id := domain.MakeBlockID(block.Number, block.Hash.Hex())

	// the processor rejects replays by order anyway, a deduper outage only costs a failed order check
	seen, err := s.deps.Deduper.Seen(ctx, id)
	if err != nil {
		s.log.Warnf("Dedupe check failed, block=%s, error=%v", id, err)
	}
	if seen {
		s.deps.Metrics.BlocksSkipped.Inc()
		s.log.Debugf("Duplicate block ignored: %s", id)
		return nil
	}

	start := time.Now()

	out, err := s.deps.Processor.ProcessBlock(ctx, block)
	if err != nil {
		if errors.Is(err, pipeline.ErrBlockOutOfOrder) {
			s.deps.Metrics.Failed(metrics.ReasonOrder)
		} else {
			s.deps.Metrics.Failed(metrics.ReasonProcess)
		}
		return err
	}

	// the stores are committed from here on: sink errors are reported, never undone
	sinkErr := s.fanOut(ctx, out.Changes)

	if err = s.deps.Deduper.MarkSeen(ctx, id); err != nil {
		s.log.Errorf("Failed to mark block as seen %s: %v", id, err)
	}

	s.deps.Metrics.ObserveBlock(out.Changes, time.Since(start))
	s.maybeSnapshot(ctx, block)

	s.log.Debugf("Block processed: %s (changes=%d, events=%d)", id, len(out.Changes.TableChanges), len(out.Events))

	return sinkErr
}

func (s *Indexer) fanOut(ctx context.Context, changes *domain.DatabaseChanges) error {
	var errs []error

	if s.deps.Applier != nil {
		if err := s.deps.Applier.Apply(ctx, changes); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}

	if s.deps.Writer != nil {
		if err := s.deps.Writer.Enqueue(ctx, changes); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}

	// subscribers catch up on the next block, a lost broadcast is not a sink failure
	if err := pubsub.PublishChanges(ctx, s.deps.Broadcaster, s.prefix, changes); err != nil {
		s.log.Errorf("Failed to broadcast changes of block %d: %v", changes.BlockNum, err)
	}

	if len(errs) > 0 {
		s.deps.Metrics.Failed(metrics.ReasonSink)
		err := errors.Join(errs...)
		s.log.Errorf("Sink failure, block=%d, error=%v", changes.BlockNum, err)
		return err
	}
	return nil
}

func (s *Indexer) maybeSnapshot(ctx context.Context, block *domain.Block) {
	if s.deps.Snapshots == nil || s.snapshotEvery <= 0 {
		return
	}

	s.snapMu.Lock()
	if s.snapAt == 0 {
		s.snapAt = block.Timestamp
	}
	due := block.Timestamp-s.snapAt >= s.snapshotEvery
	if due {
		s.snapAt = block.Timestamp
	}
	s.snapMu.Unlock()

	if due {
		if err := s.SaveSnapshot(ctx); err != nil {
			s.log.Warnf("Snapshot failed at block %d: %v", block.Number, err)
		}
	}
}

// Saves the committed state; no-op before the first block
func (s *Indexer) SaveSnapshot(ctx context.Context) error {
	if s.deps.Snapshots == nil {
		return nil
	}

	last, ok := s.deps.Processor.LastBlock()
	if !ok {
		return nil
	}

	data, err := s.deps.Processor.Snapshot()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err = s.deps.Snapshots.Save(ctx, last, data); err != nil {
		return err
	}

	s.log.Infof("Snapshot saved, block=%d, size=%d", last, len(data))
	return nil
}

// Warm start from the last snapshot; a missing snapshot is a cold start
func (s *Indexer) Restore(ctx context.Context) error {
	if s.deps.Snapshots == nil {
		return nil
	}

	block, data, err := s.deps.Snapshots.Load(ctx)
	if errors.Is(err, redis.ErrNoSnapshot) {
		s.log.Infof("No snapshot found, starting cold")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	restored, err := s.deps.Processor.Restore(data)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if restored != block {
		s.log.Warnf("Snapshot block mismatch, stored=%d, decoded=%d", block, restored)
	}

	s.log.Infof("Restored from snapshot, last_block=%d", restored)
	return nil
}

func (s *Indexer) TokenSummary(_ context.Context, address string) (*pipeline.TokenSummary, error) {
	return s.deps.Processor.TokenSummary(strings.ToLower(address))
}

func (s *Indexer) PairSummary(_ context.Context, address string) (*pipeline.PairSummary, error) {
	return s.deps.Processor.PairSummary(strings.ToLower(address))
}

func (s *Indexer) Overview(_ context.Context) *pipeline.Overview {
	return s.deps.Processor.Overview()
}

func (s *Indexer) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, 4)

	if hc, ok := s.deps.Deduper.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("Redis connection error: %v", err))
		}
	}

	if s.deps.Writer != nil {
		if err := s.deps.Writer.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("ClickHouse connection error: %v", err))
		}
	}

	if s.deps.Applier != nil {
		if err := s.deps.Applier.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("Postgres connection error: %v", err))
		}
	}

	if err := s.deps.Broadcaster.Health(ctx); err != nil {
		errDependency = append(errDependency, "NATS: connection not ready")
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	s.log.Debugf("All dependency check passed")
	return nil
}
