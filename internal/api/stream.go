package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/conductor/internal/engine"
)

// handleStream attaches the caller as the observer of an execution and relays
// its events as server-sent events until END or disconnect. The stream may
// be opened before the execution is submitted.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	sub := s.engine.OpenStream(id)
	defer s.engine.CloseStream(id, sub)

	openStreams.Inc()
	defer openStreams.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		events, finished := sub.Drain()
		for _, ev := range events {
			if err := writeEvent(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
		}
		if len(events) > 0 && canFlush {
			flusher.Flush()
		}
		if finished {
			return
		}

		select {
		case <-sub.Ready():
		case <-sub.Done():
			return // Superseded by a newer stream.
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeEvent encodes one hub event in SSE framing.
func writeEvent(w http.ResponseWriter, ev engine.Event) error {
	switch ev.Kind {
	case engine.EventStats:
		b, err := json.Marshal(ev.Stats)
		if err != nil {
			return err
		}
		return writeSSEEvent(w, "stats", string(b))
	case engine.EventQueuePos:
		return writeSSEEvent(w, "queuepos", strconv.Itoa(ev.Position))
	case engine.EventStatus:
		return writeSSEEvent(w, "status", string(ev.Status))
	case engine.EventLog:
		return writeSSEData(w, ev.Text)
	case engine.EventCancelled:
		return writeSSEEvent(w, "cancelled", engine.OutcomeCancelled)
	case engine.EventEnd:
		return writeSSEEvent(w, "end", ev.Outcome)
	case engine.EventKeepAlive:
		_, err := fmt.Fprint(w, ": ping\n\n")
		return err
	}
	return nil
}

// writeSSEData writes a log chunk as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix, per the SSE spec.
// One trailing newline is absorbed by the event terminator.
func writeSSEData(w http.ResponseWriter, chunk string) error {
	chunk = strings.TrimSuffix(chunk, "\n")
	for seg := range strings.SplitSeq(chunk, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", strings.TrimSuffix(seg, "\r")); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
