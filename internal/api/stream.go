package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/pipeline"
)

// doneMarker ends every SSE stream after the terminal event.
const doneMarker = "[DONE]"

// streamEvents writes bridge events to the response as server-sent events,
// one `data:` line of JSON per event, finishing with the [DONE] marker. When
// the client disconnects mid-stream the remaining events are drained so the
// producer goroutine never leaks.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, bridge *pipeline.StreamBridge) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		drain(bridge)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientGone := r.Context().Done()
	for evt := range bridge.Events() {
		select {
		case <-clientGone:
			s.logger.Debug("sse client disconnected, draining run events")
			drain(bridge)
			return
		default:
		}
		if err := writeEvent(w, evt); err != nil {
			s.logger.Debug("sse write failed, draining run events", zap.Error(err))
			drain(bridge)
			return
		}
		flusher.Flush()
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", doneMarker); err == nil {
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, evt pipeline.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func drain(bridge *pipeline.StreamBridge) {
	for range bridge.Events() {
	}
}
