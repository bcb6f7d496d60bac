package postgres

import (
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Applies the table changes of one block in one transaction.
	A cursor row records the last applied block, so redelivered blocks are no-ops.
	Every table is keyed by "id"; changes are upserts because bucket tables
	(pair_day_data, ...) never receive a Create.
*/

const cursorTable = "indexer_cursor"

type Sink struct {
	log      logger.Logger
	db       *sql.DB
	cursorID string
	retries  int
	backoff  time.Duration
}

func New(ctx context.Context, log logger.Logger, cfg *config.PostgresConfig, cursorID string) (*Sink, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the postgres sink")
	}
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed ping postgres: %w", err)
	}

	if cursorID == "" {
		cursorID = "default"
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 200 * time.Millisecond
	}

	return &Sink{
		log:      log,
		db:       db,
		cursorID: cursorID,
		retries:  max(cfg.MaxRetries, 0),
		backoff:  retryBackoff,
	}, nil
}

func (s *Sink) Apply(ctx context.Context, changes *domain.DatabaseChanges) error {
	if changes == nil {
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.backoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.applyTx(ctx, changes)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warnf("Postgres apply of block %d failed, retry in %s: %v", changes.BlockNum, next, err)
		}),
	)
	return err
}

func (s *Sink) applyTx(ctx context.Context, changes *domain.DatabaseChanges) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT block_num FROM "+cursorTable+" WHERE id = $1 FOR UPDATE", s.cursorID,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read cursor: %w", err)
	}
	if last.Valid && uint64(last.Int64) >= changes.BlockNum {
		s.log.Debugf("Postgres already at block %d, skip %d", last.Int64, changes.BlockNum)
		return tx.Rollback()
	}

	for _, tc := range changes.TableChanges {
		query, args, ok := upsert(tc)
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%s %s: %w", tc.Table, tc.PK, err)
		}
	}

	if _, err = tx.ExecContext(ctx, cursorUpsert, s.cursorID, int64(changes.BlockNum), changes.BlockHash); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Sink) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Sink) Close() error {
	return s.db.Close()
}
