package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tabletap/payqr/internal/payqr/notify"
	"github.com/tabletap/payqr/pkg/httpx"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// EventsHandler serves GET /v1/orders/events as a server-sent event
// stream of order updates for kitchen and dashboard displays.
type EventsHandler struct {
	Hub *notify.Hub
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "streaming unsupported")
		return
	}

	// Subscribe before the response goes out so an event fired right
	// after the client sees the 200 is not lost.
	events, cancel := h.Hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}
