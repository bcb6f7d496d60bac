package http

import (
	"ammindex/internal/api/http/handlers"
	"ammindex/internal/api/http/mw"
	"ammindex/internal/chaintest"
	"ammindex/internal/domain"
	"ammindex/internal/pipeline"
	"ammindex/internal/security"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knownToken = "0xe9e7cea3dedca5984780bafc599bd69add087d56"

type fakeService struct {
	depErr error
}

func (f *fakeService) CheckDependency(context.Context) error { return f.depErr }

func (f *fakeService) TokenSummary(_ context.Context, address string) (*pipeline.TokenSummary, error) {
	switch address {
	case knownToken:
		return &pipeline.TokenSummary{Token: domain.Token{Address: address, Symbol: "BUSD", Decimals: 18}, PriceUSD: "1"}, nil
	case "0x00000000000000000000000000000000000000ff":
		return nil, errors.New("corrupt")
	}
	return nil, pipeline.ErrNotFound
}

func (f *fakeService) PairSummary(context.Context, string) (*pipeline.PairSummary, error) {
	return nil, pipeline.ErrNotFound
}

func (f *fakeService) Overview(context.Context) *pipeline.Overview {
	return &pipeline.Overview{LastBlock: 7, HasBlock: true, BNBPriceUSD: "250"}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code string `json:"code"`
	} `json:"error"`
}

func get(t *testing.T, h http.Handler, path, auth string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func newRouter(svc *fakeService, jwtMW *mw.JWTMiddleware) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return BuildRouter(handlers.NewHandler(chaintest.Logger(), svc), metrics, Middlewares{
		Logging: mw.NewLogging(chaintest.Logger()),
		JWT:     jwtMW,
	})
}

func TestRouter_Health(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, nil)

	rec, env := get(t, r, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", env.Status)

	rec, _ = get(t, r, "/readiness", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.depErr = errors.New("dependency check failed: NATS: connection not ready")
	rec, env = get(t, r, "/readiness", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "dependencies_unhealthy", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	r.ServeHTTP(mrec, req)
	assert.Equal(t, "# metrics", mrec.Body.String())
}

func TestRouter_Token(t *testing.T) {
	r := newRouter(&fakeService{}, nil)

	rec, env := get(t, r, "/api/tokens/0xE9e7CEA3DedcA5984780Bafc599bD69ADd087D56", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ts pipeline.TokenSummary
	require.NoError(t, json.Unmarshal(env.Data, &ts))
	assert.Equal(t, "BUSD", ts.Token.Symbol)
	assert.Equal(t, "1", ts.PriceUSD)

	rec, env = get(t, r, "/api/tokens/0x0000000000000000000000000000000000000001", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_indexed", env.Error.Code)

	rec, env = get(t, r, "/api/tokens/not-an-address", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_address", env.Error.Code)

	rec, env = get(t, r, "/api/tokens/0x00000000000000000000000000000000000000ff", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", env.Error.Code)
}

func TestRouter_PairAndOverview(t *testing.T) {
	r := newRouter(&fakeService{}, nil)

	rec, _ := get(t, r, "/api/pairs/0x58f876857a02d6762e0101bb5c46a8c1ed44dc16", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := get(t, r, "/api/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ov pipeline.Overview
	require.NoError(t, json.Unmarshal(env.Data, &ov))
	assert.Equal(t, uint64(7), ov.LastBlock)
	assert.Equal(t, "250", ov.BNBPriceUSD)
}

func TestRouter_JWTProtectsAPIOnly(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwtMW, err := mw.NewJWTMiddleware(&security.RS256Verifier{PubKey: &priv.PublicKey, Aud: "ammindex-api"})
	require.NoError(t, err)
	r := newRouter(&fakeService{}, jwtMW)

	rec, _ := get(t, r, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := get(t, r, "/api/overview", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Error.Code)

	signer := &security.RS256Signer{Priv: priv, Aud: "ammindex-api"}
	tok, err := signer.Mint("dev", time.Minute)
	require.NoError(t, err)

	rec, _ = get(t, r, "/api/overview", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}
