package clickhouse

import (
	"ammindex/internal/config"
	"context"
	"errors"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createChanges = `
	CREATE TABLE IF NOT EXISTS table_changes (
		block_num  UInt64,
		block_hash String,
		block_time DateTime('UTC'),
		seq        UInt32,
		ordinal    UInt64,
		table_name LowCardinality(String),
		pk         String,
		operation  LowCardinality(String),
		field      LowCardinality(String),
		old_value  String,
		new_value  String
	)
	ENGINE = ReplacingMergeTree
	PARTITION BY toYYYYMM(block_time)
	ORDER BY (block_num, seq)
`

type Conn struct {
	Native driver.Conn
}

func New(ctx context.Context, cfg *config.ClickHouseConfig) (*Conn, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the clickhouse client")
	}
	if cfg.DSN == "" {
		return nil, errors.New("clickhouse dsn is required")
	}

	opts, err := ch.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed parse DSN ch, error=%w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	if opts.Compression == nil {
		opts.Compression = &ch.Compression{Method: ch.CompressionLZ4}
	}

	opts.ClientInfo = ch.ClientInfo{
		Products: []struct{ Name, Version string }{
			{
				Name:    "ammindex",
				Version: "0.1.0",
			},
		},
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed Open ch, error=%w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err = conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed ping ch, error=%w", err)
	}

	return &Conn{Native: conn}, nil
}

// Creates table_changes when missing; replays of a block collapse on (block_num, seq)
func (c *Conn) EnsureSchema(ctx context.Context) error {
	if err := c.Native.Exec(ctx, createChanges); err != nil {
		return fmt.Errorf("failed create table_changes, error=%w", err)
	}
	return nil
}

func (c *Conn) Health(ctx context.Context) error {
	return c.Native.Ping(ctx)
}

func (c *Conn) Close() error {
	return c.Native.Close()
}
