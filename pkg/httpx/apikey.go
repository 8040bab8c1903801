package httpx

import (
	"net/http"

	"github.com/tabletap/payqr/pkg/cryptox"
	"github.com/tabletap/payqr/pkg/slogx"
)

// APIKeyMiddleware guards terminal-facing endpoints with a shared API key
// presented in the X-API-Key header. The expected key is held only as an
// Argon2id hash, so a leaked config dump does not leak the key itself.
// An empty hash disables the check (dev mode).
func APIKeyMiddleware(encodedHash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if encodedHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				WriteError(w, http.StatusUnauthorized, "missing_api_key", "X-API-Key header is required")
				return
			}

			if err := cryptox.VerifyAPIKey(key, encodedHash); err != nil {
				slogx.FromContext(r.Context()).Warn("api key rejected", "err", err)
				WriteError(w, http.StatusUnauthorized, "invalid_api_key", "API key is not valid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
