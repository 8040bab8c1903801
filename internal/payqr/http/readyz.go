package http

import (
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/httpx"
)

type readyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ReadyzHandler reports 503 until the database answers a ping.
func ReadyzHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyResponse{Status: "ok", Database: "ok"}
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "error: " + err.Error()
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, resp)
	}
}
