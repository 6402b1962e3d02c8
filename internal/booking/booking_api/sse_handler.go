package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"terrace-booking/internal/logger"
	"terrace-booking/internal/sse"
)

// SSEHandler streams table status changes as Server-Sent Events.
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.TableEventEmitter
	// Heartbeat keeps idle connections open through proxies.
	Heartbeat time.Duration
}

func NewSSEHandler(emitter *sse.TableEventEmitter, log *logger.Logger) *SSEHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &SSEHandler{Logger: log, EventEmitter: emitter, Heartbeat: 30 * time.Second}
}

// StreamEvents follows the whole terrace, or one table with ?table=<id>.
func (h *SSEHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table")
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	ctx := r.Context()
	eventChan := h.EventEmitter.Subscribe(ctx, tableID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"table\":%q}\n\n", tableID)
	if err := rc.Flush(); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Streaming unsupported: %v", err))
		return
	}
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to table events (filter %q)", tableID))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			_ = rc.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			_ = rc.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Client disconnected from table events")
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
