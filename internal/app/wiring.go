package app

import (
	httpapi "ammindex/internal/api/http"
	"ammindex/internal/api/http/handlers"
	"ammindex/internal/api/http/mw"
	"ammindex/internal/config"
	"ammindex/internal/dedupe"
	rdedupe "ammindex/internal/dedupe/redis"
	"ammindex/internal/ingest"
	"ammindex/internal/metrics"
	"ammindex/internal/pipeline"
	"ammindex/internal/pubsub/nats"
	"ammindex/internal/rpc"
	"ammindex/internal/security"
	"ammindex/internal/service"
	"ammindex/internal/stores/clickhouse"
	"ammindex/internal/stores/postgres"
	"ammindex/internal/stores/redis"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App
	log logger.Logger

	// reverse order on cleanup
	closers []func(ctx context.Context)
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(ctx context.Context) error {
	defer c.cleanupCtx(ctx)

	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}
	return nil
}

func (c *Container) onClose(f func(ctx context.Context)) {
	c.closers = append(c.closers, f)
}

func (c *Container) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.cleanupCtx(ctx)
}

func (c *Container) cleanupCtx(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i](ctx)
	}
	c.closers = nil
	c.log.Info("Successfully cleaned up dependency")
}

// Construct image app; on error everything built so far is closed
func Build(ctx context.Context, cfg *config.Config) (_ *Container, err error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	c := &Container{log: lg}
	defer func() {
		if err != nil {
			c.cleanup()
		}
	}()

	profiler, err := metrics.InitPProf(&cfg.Metrics.Pyroscope, cfg.App.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("pyroscope initialize failed: %w", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
		c.onClose(func(context.Context) {
			if err := profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		})
	}

	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	// Redis: dedupe, snapshots, rate limit. Without it the instance runs single-node
	var (
		rdb       *redis.Client
		deduper   dedupe.Deduper
		snapshots service.SnapshotStore
	)
	if cfg.Stores.Redis.Addr != "" {
		if rdb, err = redis.New(ctx, lg, &cfg.Stores.Redis); err != nil {
			return nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}
		c.onClose(func(context.Context) {
			if err := rdb.Close(); err != nil {
				lg.Errorf("Failed to close redis client: %v", err)
			}
		})

		var bloom *rdedupe.Bloom
		if cfg.Dedupe.Bloom.Enabled {
			if bloom, err = rdedupe.NewBloom(&cfg.Dedupe.Bloom, rdb); err != nil {
				return nil, fmt.Errorf("failed to initialize bloom: %w", err)
			}
			if err = bloom.Ensure(ctx); err != nil {
				lg.Warnf("Bloom filter unavailable, dedupe falls back to keys: %v", err)
				bloom, err = nil, nil
			} else {
				lg.Infof("Successfully initialize Bloom by key=%s, cap=%d, errRate=%f", bloom.Key, bloom.Capacity, bloom.ErrRate)
			}
		}

		if deduper, err = rdedupe.NewRedisDeduper(lg, &cfg.Dedupe, rdb, bloom); err != nil {
			return nil, fmt.Errorf("failed to initialize redis deduper: %w", err)
		}

		if snapshots, err = redis.NewSnapshotStore(lg, rdb, cfg.App.InstanceID); err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		lg.Info("Successfully initialize redis deduper and snapshot store")
	} else {
		mem := dedupe.NewInMemoryDedupe(lg, cfg.Dedupe.TTL, time.Minute)
		c.onClose(func(context.Context) { mem.Close() })
		deduper = mem
		lg.Warn("Redis is not configured: in-memory dedupe, no snapshots, no rate limit")
	}

	// token metadata
	rpcClient, err := rpc.Dial(ctx, lg, &cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client: %w", err)
	}
	c.onClose(func(context.Context) { rpcClient.Close() })
	lg.Infof("Successfully initialize rpc client, endpoint=%s", cfg.RPC.Endpoint)

	processor, err := pipeline.New(lg, &cfg.Chain, &cfg.Ingest, rpcClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	natsCl, err := nats.New(lg, &cfg.PubSub.NATS)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nats client: %w", err)
	}
	c.onClose(func(context.Context) {
		if err := natsCl.Close(); err != nil {
			lg.Errorf("Failed to close nats client: %v", err)
		}
	})

	deps := service.Deps{
		Processor:   processor,
		Deduper:     deduper,
		Broadcaster: natsCl,
		Snapshots:   snapshots,
		Metrics:     m,
	}

	if cfg.Stores.ClickHouse.Enabled {
		ch, err := clickhouse.New(ctx, &cfg.Stores.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
		}
		c.onClose(func(context.Context) {
			if err := ch.Close(); err != nil {
				lg.Errorf("Failed to close clickhouse client: %v", err)
			}
		})
		if err = ch.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		lg.Infof("Successfully initialize clickhouse client, url=%s", strings.Split(cfg.Stores.ClickHouse.DSN, "?")[0])

		chWriter, err := clickhouse.NewWriter(lg, &cfg.Stores.ClickHouse, ch)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize clickhouse writer: %w", err)
		}
		// closed before the connection: drains buffered rows
		c.onClose(func(ctx context.Context) {
			if err := chWriter.Close(ctx); err != nil {
				lg.Errorf("Failed to close clickhouse writer: %v", err)
			}
		})
		deps.Writer = chWriter
	}

	if cfg.Stores.Postgres.Enabled {
		sink, err := postgres.New(ctx, lg, &cfg.Stores.Postgres, cfg.App.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres sink: %w", err)
		}
		c.onClose(func(context.Context) {
			if err := sink.Close(); err != nil {
				lg.Errorf("Failed to close postgres sink: %v", err)
			}
		})
		lg.Info("Successfully initialize postgres sink")
		deps.Applier = sink
	}

	indexer, err := service.NewIndexer(lg, cfg, deps)
	if err != nil {
		return nil, err
	}
	if err = indexer.Restore(ctx); err != nil {
		return nil, err
	}

	consumer, err := ingest.New(lg, &cfg.Ingest, natsCl, indexer)
	if err != nil {
		return nil, err
	}

	// HTTP
	mws := httpapi.Middlewares{
		Logging:  mw.NewLogging(lg),
		Compress: cfg.API.HTTP.CompressLvl,
	}

	var verifier *security.RS256Verifier
	if cfg.Security.JWT.Enabled {
		if verifier, err = security.NewRS256Verifier(&cfg.Security.JWT); err != nil {
			return nil, fmt.Errorf("failed to initialize jwt verifier: %w", err)
		}
		if mws.JWT, err = mw.NewJWTMiddleware(verifier); err != nil {
			return nil, err
		}
		lg.Info("Successfully initialize JWT-Verifier")
	}

	if cfg.RateLimit.Enabled {
		if rdb == nil {
			lg.Warn("Rate limit requires redis, disabled")
		} else {
			mws.RateLimit = mw.NewRateLimit(&cfg.RateLimit, rdb, verifier)
		}
	}

	if cfg.API.HTTP.CORS.Enabled {
		mws.CORS = mw.NewCORS(&cfg.API.HTTP.CORS)
	}

	router := httpapi.BuildRouter(handlers.NewHandler(lg, indexer), metrics.Handler(prometheus.DefaultGatherer), mws)
	httpSrv, err := httpapi.NewServer(lg, &cfg.API.HTTP, router)
	if err != nil {
		return nil, err
	}
	lg.Info("Successfully initialize HTTP server")

	c.app = NewApp(lg, httpSrv, consumer, indexer)

	lg.Info("Successfully initialize Wiring")
	return c, nil
}
