package handlers

import (
	"ammindex/internal/pipeline"
	"ammindex/pkg/httputil"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

func (a *Handler) Token(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.address(w, r)
	if !ok {
		return
	}

	summary, err := a.Svc.TokenSummary(r.Context(), addr)
	a.respond(w, r, "token", summary, err)
}

func (a *Handler) Pair(w http.ResponseWriter, r *http.Request) {
	addr, ok := a.address(w, r)
	if !ok {
		return
	}

	summary, err := a.Svc.PairSummary(r.Context(), addr)
	a.respond(w, r, "pair", summary, err)
}

func (a *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if err := httputil.OK(w, a.Svc.Overview(r.Context())); err != nil {
		a.Log.Errorf("Overview handler error: %s", err.Error())
	}
}

// Lowercase 0x address from the {address} path param
func (a *Handler) address(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) || !strings.HasPrefix(strings.ToLower(raw), "0x") {
		if err := httputil.Fail(w, r, httputil.CodeInvalidAddress, "invalid address", map[string]any{"address": raw}); err != nil {
			a.Log.Errorf("Address validation response error: %s", err.Error())
		}
		return "", false
	}
	return strings.ToLower(raw), true
}

func (a *Handler) respond(w http.ResponseWriter, r *http.Request, entity string, body any, err error) {
	var werr error
	switch {
	case err == nil:
		werr = httputil.OK(w, body)
	case errors.Is(err, pipeline.ErrNotFound):
		werr = httputil.Fail(w, r, httputil.CodeNotIndexed, entity+" not indexed", nil)
	default:
		a.Log.Errorf("Read %s failed: %v", entity, err)
		werr = httputil.Fail(w, r, httputil.CodeInternal, "failed to read "+entity, nil)
	}

	if werr != nil {
		a.Log.Errorf("%s handler error: %s", entity, werr.Error())
	}
}
