package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsMaxMessageSize = 4096
)

// clientMessage is a message sent by a WebSocket client. The only supported
// type is "inject", which appends a user turn to the debate.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleDebateWebSocket relays debate events over a WebSocket and accepts
// user interjections from the client.
func (h *Handler) handleDebateWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.openStream(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer session.cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "debate_id", id, "error", err)
		return
	}
	defer conn.Close()
	slog.Debug("New debate websocket connection", "debate_id", id, "remote_addr", r.RemoteAddr)

	replies := make(chan StreamEvent, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, session, replies)
	}()

	h.readPump(conn, id, replies, done)
	session.cancel()
	<-done
}

// readPump handles messages from the client until the connection fails or
// the writer exits.
func (h *Handler) readPump(conn *websocket.Conn, debateID string, replies chan<- StreamEvent, done <-chan struct{}) {
	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket unexpected close", "debate_id", debateID, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(replies, done, StreamEvent{Type: "error", Data: map[string]string{"message": "invalid message"}})
			continue
		}
		if msg.Type != "inject" {
			h.reply(replies, done, StreamEvent{Type: "error", Data: map[string]string{"message": "unsupported message type: " + msg.Type}})
			continue
		}

		// The resulting turn reaches this client through the hub.
		if _, err := h.engine.Inject(debateID, msg.Content); err != nil {
			h.reply(replies, done, StreamEvent{Type: "error", Data: map[string]string{"message": err.Error()}})
		}
	}
}

func (h *Handler) reply(replies chan<- StreamEvent, done <-chan struct{}, ev StreamEvent) {
	select {
	case replies <- ev:
	case <-done:
	}
}

// writePump is the only writer on conn. Closing conn on exit unblocks the
// reader.
func (h *Handler) writePump(conn *websocket.Conn, session *streamSession, replies <-chan StreamEvent) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(ev StreamEvent) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev)
	}

	for _, ev := range session.replay {
		if err := write(ev); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-session.events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			out, ok := session.translate(ev)
			if !ok {
				continue
			}
			if err := write(out); err != nil {
				return
			}
		case ev := <-replies:
			if err := write(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
