package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dompetku/backend/internal/notifier"
	"github.com/dompetku/backend/internal/services"
)

// EventsHandler serves both delivery channels of the notifier: a server-sent
// event stream (push) and a watermark poll (pull). Events tell the client to
// refetch; they carry no authoritative state.
type EventsHandler struct {
	notifier  notifier.Notifier
	keepAlive time.Duration
	buffer    int
	now       func() time.Time
}

func NewEventsHandler(n notifier.Notifier, keepAlive time.Duration, buffer int) *EventsHandler {
	return &EventsHandler{
		notifier:  n,
		keepAlive: keepAlive,
		buffer:    buffer,
		now:       time.Now,
	}
}

// Stream holds an SSE connection open and forwards the user's events
// @Summary Live update stream
// @Tags Events
// @Produce text/event-stream
// @Param userId query string false "Must match the token subject"
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 200 {string} string "event stream"
// @Failure 401 {object} services.ErrorResponse
// @Router /events [get]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		services.SendErrorResponse(w, "Streaming unsupported", http.StatusInternalServerError, nil)
		return
	}

	// The server's write timeout must not cut a long-lived stream
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && err != http.ErrNotSupported {
		log.Printf("[SSE] Failed to clear write deadline: %v", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch := notifier.NewStreamChannel(h.buffer)
	h.notifier.RegisterPushChannel(userID, ch)
	defer func() {
		h.notifier.UnregisterPushChannel(userID, ch)
		ch.Close()
		log.Printf("[SSE] Stream closed for user %s", userID)
	}()
	log.Printf("[SSE] Stream opened for user %s", userID)

	connected := map[string]any{
		"userId":    userID,
		"timestamp": h.now().UnixMilli(),
	}
	if err := writeEvent(w, "", notifier.EventConnected, connected); err != nil {
		return
	}
	flusher.Flush()

	var keepAlive <-chan time.Time
	if h.keepAlive > 0 {
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch.Done():
			// replaced by a newer connection or dropped after a failed send
			return
		case ev := <-ch.Events():
			if err := writeEvent(w, ev.ID, ev.Type, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Poll returns every pending event newer than the since watermark
// @Summary Poll for updates
// @Tags Events
// @Produce json
// @Param userId query string false "Must match the token subject"
// @Param since query int false "Unix ms watermark; events with a later timestamp are returned"
// @Success 200 {array} notifier.Event
// @Failure 400 {object} services.ErrorResponse
// @Router /polling-updates [get]
func (h *EventsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			services.SendErrorResponse(w, "since must be a non-negative unix millisecond timestamp", http.StatusBadRequest, nil)
			return
		}
		since = v
	}

	events, err := h.notifier.DrainSince(r.Context(), userID, since)
	if err != nil {
		services.WriteServiceError(w, err, false)
		return
	}
	if events == nil {
		events = []notifier.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

func writeEvent(w io.Writer, id string, eventType notifier.EventType, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, body)
	return err
}
