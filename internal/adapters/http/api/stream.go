package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/ws"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

// StreamHandler upgrades GET /sessions/{sessionID}/events to a websocket that
// carries the session's notifications.
type StreamHandler struct {
	sessions SessionService
	streams  StreamService
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(sessions SessionService, streams StreamService, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		streams:  streams,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:      log,
	}
}

// HandleStream handles GET /sessions/{sessionID}/events.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.sessions.Session(r.Context(), id); err != nil {
		writeFailure(w, Wrap("api.stream", err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		metrics.RecordErrorByEndpoint("events", r.Method, "upgrade_failed")
		return
	}
	metrics.RecordHTTPRequest("events", r.Method, "101")

	client := ws.NewClient(conn, h.log)
	if err := h.streams.Subscribe(id, client); err != nil {
		h.log.Warn(r.Context(), "subscribe failed", logger.String("session_id", id), logger.Error(err))
		client.Close()
		return
	}
	defer h.streams.Unsubscribe(id, client)

	h.log.Debug(r.Context(), "stream opened", logger.String("session_id", id))
	client.Drain()
	h.log.Debug(r.Context(), "stream closed", logger.String("session_id", id))
}
