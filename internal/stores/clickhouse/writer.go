package clickhouse

import (
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v5"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrWriterClosed = errors.New("clickhouse writer closed")

const insertChanges = `
	INSERT INTO table_changes (
		block_num,
		block_hash,
		block_time,
		seq,
		ordinal,
		table_name,
		pk,
		operation,
		field,
		old_value,
		new_value
	)
`

// Batches change rows in the background; flushes on size or on the ticker
type Writer struct {
	log  logger.Logger
	conn driver.Conn
	cfg  config.ClickHouseWriterConfig

	send func(ctx context.Context, rows []ChangeRow) error

	inCh      chan ChangeRow
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, cfg *config.ClickHouseConfig, conn *Conn) (*Writer, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the clickhouse writer")
	}
	if conn == nil {
		return nil, errors.New("clickhouse conn is required to the clickhouse writer")
	}

	w := newWriter(log, cfg.Writer)
	w.conn = conn.Native
	w.send = w.insertBatch
	w.start()

	return w, nil
}

func newWriter(log logger.Logger, cfg config.ClickHouseWriterConfig) *Writer {
	// sane defaults
	if cfg.BatchMaxRows <= 0 {
		cfg.BatchMaxRows = 5000
	}
	if cfg.BatchMaxInterval <= 0 {
		cfg.BatchMaxInterval = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	return &Writer{
		log:      log,
		cfg:      cfg,
		inCh:     make(chan ChangeRow, cfg.BatchMaxRows*4),
		closedCh: make(chan struct{}),
	}
}

func (w *Writer) start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Writer) Enqueue(ctx context.Context, changes *domain.DatabaseChanges) error {
	for _, row := range Rows(changes) {
		select {
		case <-w.closedCh:
			return ErrWriterClosed
		default:
		}

		select {
		case w.inCh <- row:
		case <-w.closedCh:
			return ErrWriterClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Flushes what is buffered and stops the loop
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) Health(ctx context.Context) error {
	if w.conn == nil {
		return errors.New("clickhouse conn is not set")
	}
	return w.conn.Ping(ctx)
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]ChangeRow, 0, w.cfg.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := w.send(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] change rows to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row := <-w.inCh:
			batch = append(batch, row)
			if len(batch) >= w.cfg.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.closedCh:
			for {
				select {
				case row := <-w.inCh:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []ChangeRow) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.cfg.RetryBackoff
	policy.MaxInterval = w.cfg.RetryBackoff * 16

	notify := func(err error, next time.Duration) {
		w.log.Warnf("ClickHouse insert failed, retry in %s: %v", next, err)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.insertOnce(ctx, rows)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(w.cfg.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
	return err
}

func (w *Writer) insertOnce(ctx context.Context, rows []ChangeRow) error {
	batch, err := w.conn.PrepareBatch(ctx, insertChanges)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		if err = batch.Append(
			r.BlockNum,
			r.BlockHash,
			r.BlockTime,
			r.Seq,
			r.Ordinal,
			r.TableName,
			r.PK,
			r.Operation,
			r.Field,
			r.OldValue,
			r.NewValue,
		); err != nil {
			_ = batch.Abort()
			return backoff.Permanent(fmt.Errorf("append row %d: %w", i, err))
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
