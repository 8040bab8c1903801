package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tabletap/payqr/pkg/cryptox"
	"github.com/tabletap/payqr/pkg/httpx"
)

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	hash, err := cryptox.HashAPIKey("venue-key")
	require.NoError(t, err)

	handler := httpx.APIKeyMiddleware(hash)(okHandler())

	t.Run("accepts the configured key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/confirm", nil)
		req.Header.Set("X-API-Key", "venue-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/confirm", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/confirm", nil)
		req.Header.Set("X-API-Key", "other-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disabled when no hash configured", func(t *testing.T) {
		open := httpx.APIKeyMiddleware("")(okHandler())
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/confirm", nil)
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
