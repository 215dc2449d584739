package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bac-dam-1991/shopping-list/internal/auth"
	"github.com/bac-dam-1991/shopping-list/internal/http/response"
)

// writeDeadline is pushed forward after every event so that idle streams
// outlive the server's WriteTimeout. Heartbeats keep it moving.
const writeDeadline = 60 * time.Second

// Handler streams the caller's list changes. It must run behind the auth
// middleware.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{manager: manager, logger: logger}
}

// ServeHTTP holds the connection open and writes events until the client
// goes away or the manager drops it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", h.logger)
		return
	}

	subject := auth.SubjectFromContext(r.Context())
	if subject == "" {
		response.Unauthorized(w, h.logger)
		return
	}

	client, err := h.manager.Connect(subject)
	if err != nil {
		response.HandleError(w, err, h.logger)
		return
	}
	defer h.manager.Disconnect(client)

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("SSE streaming unsupported by response writer", "error", err.Error())
		return
	}

	log := h.logger.With("client_id", client.ID, "subject", subject)

	hello := map[string]string{"client_id": client.ID, "message": "SSE connection established"}
	if err := h.write(w, rc, "connected", hello); err != nil {
		log.Warn("SSE handshake failed", "error", err.Error())
		return
	}

	for {
		select {
		case <-r.Context().Done():
			log.Debug("SSE client went away")
			return
		case evt, open := <-client.Events:
			if !open {
				log.Debug("SSE client dropped by manager")
				return
			}
			if err := h.write(w, rc, string(evt.Type), evt); err != nil {
				log.Debug("SSE write failed", "error", err.Error())
				return
			}
		}
	}
}

// write frames one event and flushes it.
func (h *Handler) write(w http.ResponseWriter, rc *http.ResponseController, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("SSE write deadline not set", "error", err.Error())
	}
	return nil
}
