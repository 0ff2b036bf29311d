package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/agora/internal/engine"
)

const (
	streamMaxDuration = 30 * time.Minute
	streamKeepAlive   = 15 * time.Second
)

// StreamEvent is the payload sent to stream clients.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// streamSession replays a debate's current state and then relays its live
// events. Turns already replayed are skipped when they arrive again.
type streamSession struct {
	events <-chan engine.Event
	cancel func()
	replay []StreamEvent
	last   int
}

func (h *Handler) openStream(id string) (*streamSession, error) {
	// Subscribe before loading so nothing committed in between is missed.
	events, cancel := h.hub.Subscribe(id)

	debate, turns, err := h.engine.GetDebateWithTurns(id)
	if err != nil {
		cancel()
		return nil, err
	}
	names, err := h.engine.SpeakerNames()
	if err != nil {
		cancel()
		return nil, err
	}

	s := &streamSession{events: events, cancel: cancel}
	for _, turn := range turns {
		s.replay = append(s.replay, StreamEvent{Type: string(engine.EventTurnAdded), Data: newTurnResponse(turn, names)})
		s.last = turn.Number
	}
	s.replay = append(s.replay, StreamEvent{Type: string(engine.EventDebateUpdated), Data: debate})
	return s, nil
}

// translate converts an engine event, reporting false for duplicates.
func (s *streamSession) translate(ev engine.Event) (StreamEvent, bool) {
	switch ev.Type {
	case engine.EventTurnAdded:
		if ev.Turn == nil || ev.Turn.Number <= s.last {
			return StreamEvent{}, false
		}
		s.last = ev.Turn.Number
		return StreamEvent{Type: string(ev.Type), Data: newTurnResponse(ev.Turn, nil)}, true
	case engine.EventDebateUpdated:
		return StreamEvent{Type: string(ev.Type), Data: ev.Debate}, true
	default:
		return StreamEvent{Type: string(ev.Type), Data: map[string]string{"debate_id": ev.DebateID}}, true
	}
}

// handleDebateStream streams debate updates using Server-Sent Events.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("New debate stream connection", "debate_id", id, "remote_addr", r.RemoteAddr)

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	session, err := h.openStream(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer session.cancel()

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	for _, ev := range session.replay {
		if err := h.sendSSEEvent(w, flusher, ev); err != nil {
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), streamMaxDuration)
	defer cancel()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stream context done", "debate_id", id)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-session.events:
			if !ok {
				slog.Debug("Stream closed by hub", "debate_id", id)
				return
			}
			out, ok := session.translate(ev)
			if !ok {
				continue
			}
			if err := h.sendSSEEvent(w, flusher, out); err != nil {
				return
			}
		}
	}
}

// sendSSEEvent sends a server-sent event.
func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev StreamEvent) error {
	jsonData, err := json.Marshal(ev.Data)
	if err != nil {
		slog.Error("Failed to marshal SSE data", "error", err)
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		slog.Debug("Failed to write SSE event", "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		slog.Debug("Failed to write SSE data", "error", err)
		return err
	}
	flusher.Flush()
	return nil
}

