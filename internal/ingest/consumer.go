package ingest

import (
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

const defaultBlockBuffer = 64

type BlockHandler interface {
	HandleBlock(ctx context.Context, block *domain.Block) error
}

// *pubsub/nats.Client satisfies it
type Subscriber interface {
	QueueSubscribe(subject, queue string, ch chan *nats.Msg, maxPending int) (*nats.Subscription, error)
}

// Reads decoded blocks from a NATS queue group and hands them to the handler one at a time,
// in delivery order.
type Consumer struct {
	log     logger.Logger
	cfg     *config.IngestConfig
	sub     Subscriber
	handler BlockHandler
}

func New(log logger.Logger, cfg *config.IngestConfig, sub Subscriber, handler BlockHandler) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the ingest")
	}
	if cfg.Subject == "" {
		return nil, errors.New("ingest subject is required")
	}
	if sub == nil || handler == nil {
		return nil, errors.New("subscriber and handler are required to the ingest")
	}

	return &Consumer{
		log:     log,
		cfg:     cfg,
		sub:     sub,
		handler: handler,
	}, nil
}

// Blocks until ctx is done
func (c *Consumer) Run(ctx context.Context) error {
	size := c.cfg.BlockBuffer
	if size <= 0 {
		size = defaultBlockBuffer
	}
	ch := make(chan *nats.Msg, size)

	sub, err := c.sub.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, ch, c.cfg.MaxPending)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.log.Warnf("Failed to unsubscribe from %s: %v", c.cfg.Subject, err)
		}
	}()

	c.log.Infof("Ingest started, subject=%s, queue=%s", c.cfg.Subject, c.cfg.Queue)

	for {
		select {
		case <-ctx.Done():
			c.log.Infof("Ingest stopped, subject=%s", c.cfg.Subject)
			return nil
		case msg := <-ch:
			c.handle(ctx, msg.Data)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, data []byte) {
	block, err := Decode(data)
	if err != nil {
		c.log.Errorf("Dropping malformed block message: %v", err)
		return
	}

	if err = c.handler.HandleBlock(ctx, block); err != nil {
		c.log.Errorf("Block %d failed: %v", block.Number, err)
	}
}

func Decode(data []byte) (*domain.Block, error) {
	var block domain.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	if block.Hash == (common.Hash{}) {
		return nil, fmt.Errorf("decode block %d: missing hash", block.Number)
	}
	return &block, nil
}
