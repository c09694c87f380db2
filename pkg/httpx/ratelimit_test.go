package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	t.Parallel()

	h := Chain(okHandler(), RateLimitByIP(RateLimitConfig{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		Burst:             3,
	}))

	for range 3 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	t.Parallel()

	h := Chain(okHandler(), RateLimitByIP(RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Burst:             1,
	}))

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same IP hits the limit.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different IP has a fresh bucket.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyExtractorPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", IPKeyExtractor(req))

	req.Header.Set("X-Real-IP", "172.16.0.9")
	require.Equal(t, "172.16.0.9", IPKeyExtractor(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 172.16.0.9")
	require.Equal(t, "203.0.113.7", IPKeyExtractor(req))
}

func TestRateLimitByPrincipalFallsBackToIP(t *testing.T) {
	t.Parallel()

	extract := CompositeKeyExtractor(":", PrincipalKeyExtractor, IPKeyExtractor)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", extract(anon))

	authed := anon.WithContext(context.WithValue(anon.Context(), CtxKeyPrincipalID, "01ABC"))
	require.Equal(t, "01ABC:10.0.0.1", extract(authed))
}
