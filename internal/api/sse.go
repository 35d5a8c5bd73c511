package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleSSE streams run events to the client as Server-Sent Events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "streaming not supported")
		return
	}
	if s.bus == nil {
		respondError(w, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "event bus not available")
		return
	}

	ctx := r.Context()
	eventCh := s.bus.Subscribe()
	defer s.bus.Unsubscribe(eventCh)

	s.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr)
	s.sendSSEEvent(w, flusher, "connected", map[string]string{"status": "connected"})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return

		case event, ok := <-eventCh:
			if !ok {
				s.logger.Info("event bus closed, ending SSE stream")
				return
			}
			s.sendSSEEvent(w, flusher, event.EventType(), event)
		}
	}
}

// sendSSEEvent writes one event to the stream.
func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	// SSE format: event: type\ndata: json\n\n
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
