package app

import (
	"context"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Ingest loop; returns when ctx is done
type Runner interface {
	Run(ctx context.Context) error
}

type Snapshotter interface {
	SaveSnapshot(ctx context.Context) error
}

type App struct {
	log       logger.Logger
	httpSrv   HTTPServer
	consumer  Runner
	snapshots Snapshotter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(log logger.Logger, httpSrv HTTPServer, consumer Runner, snapshots Snapshotter) *App {
	return &App{log: log, httpSrv: httpSrv, consumer: consumer, snapshots: snapshots}
}

func (a *App) Start() error {
	a.log.Debug("App started begin...")

	go func() {
		if err := a.httpSrv.Start(); err != nil {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Run(ctx); err != nil {
			a.log.Fatalf("Ingest is failed, error=%v", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

// Stops ingest first so the final snapshot sees a quiet processor
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.snapshots.SaveSnapshot(ctx); err != nil {
		a.log.Errorf("Final snapshot failed: %v", err)
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
