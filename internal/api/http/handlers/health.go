package handlers

import (
	"ammindex/pkg/httputil"
	"context"
	"net/http"
	"time"
)

func (a *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	if err := httputil.OK(w, map[string]any{}); err != nil {
		a.Log.Errorf("Healthz handler error: %s", err.Error())
	}
}

// Check health external services/clients
func (a *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.Svc.CheckDependency(ctx); err != nil {
		a.Log.Warnf("Readiness failed: %v", err)
		err = httputil.Fail(w, r, httputil.CodeUnhealthy, "dependencies check failed", map[string]any{
			"error": err.Error(),
		})
		if err != nil {
			a.Log.Errorf("Readiness handler error: %s", err.Error())
		}
		return
	}

	if err := httputil.OK(w, map[string]string{"dependencies": "healthy"}); err != nil {
		a.Log.Errorf("Readiness handler error: %s", err.Error())
	}
}
