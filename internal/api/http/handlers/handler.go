package handlers

import (
	"ammindex/internal/pipeline"
	"context"

	"gitlab.com/nevasik7/alerting/logger"
)

// Read side of the indexer; *service.Indexer satisfies it
type Service interface {
	CheckDependency(ctx context.Context) error
	TokenSummary(ctx context.Context, address string) (*pipeline.TokenSummary, error)
	PairSummary(ctx context.Context, address string) (*pipeline.PairSummary, error)
	Overview(ctx context.Context) *pipeline.Overview
}

type Handler struct {
	Log logger.Logger
	Svc Service
}

func NewHandler(log logger.Logger, svc Service) *Handler {
	if svc == nil {
		panic("indexer service cannot be nil")
	}

	return &Handler{Log: log, Svc: svc}
}
