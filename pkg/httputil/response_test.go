package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, JSON(rec, http.StatusOK, map[string]string{"a": "<b>"}, map[string]string{"X-Test": "1"}))

	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.JSONEq(t, `{"status":"ok","data":{"a":"<b>"}}`, rec.Body.String())
}

func TestJSON_NoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, JSON(rec, http.StatusNoContent, nil, nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pairs/x", nil)

	require.NoError(t, Error(rec, req, http.StatusNotFound, CodeNotIndexed, "pair not indexed", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"status":"error","error":{"code":"not_indexed","message":"pair not indexed"}}`, rec.Body.String())
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, OK(rec, map[string]uint64{"last_block": 7}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","data":{"last_block":7}}`, rec.Body.String())
}

func TestFail_StatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeBadRequest:     http.StatusBadRequest,
		CodeInvalidAddress: http.StatusBadRequest,
		CodeNotIndexed:     http.StatusNotFound,
		CodeUnauthorized:   http.StatusUnauthorized,
		CodeRateLimited:    http.StatusTooManyRequests,
		CodeUnhealthy:      http.StatusServiceUnavailable,
		CodeInternal:       http.StatusInternalServerError,
		"unheard_of":       http.StatusInternalServerError,
	}

	for code, status := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/tokens/0x1", nil)
		require.NoError(t, Fail(rec, req, code, "failed", map[string]any{"address": "0x1"}))

		assert.Equal(t, status, rec.Code, code)
		assert.JSONEq(t, `{"status":"error","error":{"code":"`+code+`","message":"failed","details":{"address":"0x1"}}}`, rec.Body.String())
	}
}

func TestFail_TraceID(t *testing.T) {
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = Fail(w, r, CodeRateLimited, "rate limit exceeded", nil)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/overview", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"trace_id":"`)
}
