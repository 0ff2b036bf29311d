package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/generation"
)

type sseEvent struct {
	Type string
	Data string
}

func readSSEEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.Type != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func waitForSubscribers(t *testing.T, hub *Hub, debateID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(debateID) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestDebateStreamSSE(t *testing.T) {
	s := setupTestHandler(t)
	a := s.participant(t, "Alice")
	d, err := s.engine.CreateDebate(core.NewDebateConfig{Topic: "Topic", ParticipantIDs: []string{a.ID}})
	require.NoError(t, err)
	_, err = s.engine.Inject(d.ID, "Before connecting")
	require.NoError(t, err)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/debates/"+d.ID+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)

	replayed := readSSEEvent(t, r)
	assert.Equal(t, "turn_added", replayed.Type)
	assert.Contains(t, replayed.Data, "Before connecting")
	assert.Equal(t, "debate_updated", readSSEEvent(t, r).Type)

	waitForSubscribers(t, s.hub, d.ID, 1)
	_, err = s.engine.Advance(context.Background(), d.ID, a.ID)
	require.NoError(t, err)

	live := readSSEEvent(t, r)
	require.Equal(t, "turn_added", live.Type)
	var turn turnBody
	require.NoError(t, json.Unmarshal([]byte(live.Data), &turn))
	assert.Equal(t, "Alice", turn.ParticipantName)
	assert.Equal(t, 2, turn.Number)

	updated := readSSEEvent(t, r)
	require.Equal(t, "debate_updated", updated.Type)
	assert.Contains(t, updated.Data, `"status":"COMPLETE"`)

	require.NoError(t, s.engine.Delete(d.ID))
	assert.Equal(t, "debate_deleted", readSSEEvent(t, r).Type)
	waitForSubscribers(t, s.hub, d.ID, 0)
}

func TestDebateWebSocket(t *testing.T) {
	s := setupTestHandler(t)
	a := s.participant(t, "Alice")
	d, err := s.engine.CreateDebate(core.NewDebateConfig{Topic: "Topic", ParticipantIDs: []string{a.ID}})
	require.NoError(t, err)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/debates/" + d.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "debate_updated", ev.Type)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "inject", Content: "Hello from the floor"}))

	var added struct {
		Type string   `json:"type"`
		Data turnBody `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&added))
	assert.Equal(t, "turn_added", added.Type)
	assert.Equal(t, "Hello from the floor", added.Data.Content)
	assert.Equal(t, "User", added.Data.ParticipantName)

	t.Run("rejects empty interjection", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(clientMessage{Type: "inject"}))
		var errEv StreamEvent
		require.NoError(t, conn.ReadJSON(&errEv))
		assert.Equal(t, "error", errEv.Type)
	})

	t.Run("unknown message type", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(clientMessage{Type: "shout"}))
		var errEv StreamEvent
		require.NoError(t, conn.ReadJSON(&errEv))
		assert.Equal(t, "error", errEv.Type)
	})

	require.NoError(t, s.engine.Delete(d.ID))
	var deleted StreamEvent
	require.NoError(t, conn.ReadJSON(&deleted))
	assert.Equal(t, "debate_deleted", deleted.Type)
	waitForSubscribers(t, s.hub, d.ID, 0)
}

func TestDebateWebSocketNotFound(t *testing.T) {
	s := setupTestHandler(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/debates/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, s.hub.Subscribers("missing"))
}

func TestHub(t *testing.T) {
	t.Run("delivers to subscribers of the debate only", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe("d1")
		defer cancel()
		other, cancelOther := hub.Subscribe("d2")
		defer cancelOther()

		hub.Publish(engine.Event{Type: engine.EventDebateUpdated, DebateID: "d1"})

		select {
		case ev := <-events:
			assert.Equal(t, "d1", ev.DebateID)
		case <-time.After(time.Second):
			t.Fatal("expected event")
		}
		assert.Empty(t, other)
	})

	t.Run("cancel removes subscriber", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe("d1")
		assert.Equal(t, 1, hub.Subscribers("d1"))
		cancel()
		cancel()
		assert.Zero(t, hub.Subscribers("d1"))
		_, ok := <-events
		assert.False(t, ok)
	})

	t.Run("slow subscriber is dropped", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe("d1")
		defer cancel()

		for i := 0; i < subscriberBuffer+1; i++ {
			hub.Publish(engine.Event{Type: engine.EventTurnAdded, DebateID: "d1"})
		}
		assert.Zero(t, hub.Subscribers("d1"))

		n := 0
		for range events {
			n++
		}
		assert.Equal(t, subscriberBuffer, n)
	})

	t.Run("delete closes subscribers after delivering", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe("d1")
		defer cancel()

		hub.Publish(engine.Event{Type: engine.EventDebateDeleted, DebateID: "d1"})
		ev, ok := <-events
		require.True(t, ok)
		assert.Equal(t, engine.EventDebateDeleted, ev.Type)
		_, ok = <-events
		assert.False(t, ok)
	})
}

type countingBackend struct {
	checks int32
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Complete(ctx context.Context, req generation.Request) (string, error) {
	atomic.AddInt32(&b.checks, 1)
	return "2", nil
}

func TestProviderHealthUsesCache(t *testing.T) {
	s := setupTestHandler(t)
	backend := &countingBackend{}
	s.handler.registry.Register(backend)

	w := s.do(t, "GET", "/api/providers/counting/health", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decodeBody[map[string]any](t, w)
	assert.Equal(t, "counting", first["name"])
	assert.Equal(t, false, first["cached"])

	w = s.do(t, "GET", "/api/providers/counting/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, w)["cached"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.checks))

	w = s.do(t, "GET", "/api/providers/counting/health?model=small", nil)
	require.Equal(t, http.StatusOK, w.Code)
	byModel := decodeBody[map[string]any](t, w)
	assert.Equal(t, false, byModel["cached"])
	assert.Equal(t, "small", byModel["model"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.checks))

	w = s.do(t, "GET", "/api/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	providers := decodeBody[[]providerInfo](t, w)
	require.Len(t, providers, 2)
	assert.Equal(t, "counting", providers[0].Name)
	require.NotNil(t, providers[0].Health)
	assert.True(t, providers[0].Health.Available)
	assert.Equal(t, "mock", providers[1].Name)
	assert.True(t, providers[1].Default)

	w = s.do(t, "GET", "/api/providers/nope/health", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProviderHealthCache(t *testing.T) {
	t.Run("failures expire first", func(t *testing.T) {
		cache := newProviderHealthCache(filepath.Join(t.TempDir(), "health.json"), time.Hour)
		now := time.Now()
		cache.now = func() time.Time { return now }

		cache.Store("down", "", generation.HealthStatus{Available: false, CheckedAt: now})
		cache.Store("up", "", generation.HealthStatus{Available: true, CheckedAt: now})

		_, ok := cache.Lookup("down", "")
		assert.True(t, ok)

		now = now.Add(2 * time.Minute)
		_, ok = cache.Lookup("down", "")
		assert.False(t, ok)
		_, ok = cache.Lookup("up", "")
		assert.True(t, ok)

		reloaded := newProviderHealthCache(cache.path, time.Hour)
		reloaded.now = cache.now
		_, ok = reloaded.Lookup("up", "")
		assert.True(t, ok)
	})

	t.Run("results are kept per model", func(t *testing.T) {
		cache := newProviderHealthCache(filepath.Join(t.TempDir(), "health.json"), time.Hour)
		now := time.Now()
		cache.now = func() time.Time { return now }

		cache.Store("openai", "gpt-4o-mini", generation.HealthStatus{Available: true, CheckedAt: now.Add(-time.Minute)})
		cache.Store("openai", "gpt-4o", generation.HealthStatus{Available: false, Kind: "unauthorized", CheckedAt: now})

		got, ok := cache.Lookup("openai", "gpt-4o-mini")
		require.True(t, ok)
		assert.True(t, got.Available)
		_, ok = cache.Lookup("openai", "")
		assert.False(t, ok)

		latest, ok := cache.Latest("openai")
		require.True(t, ok)
		assert.Equal(t, "unauthorized", latest.Kind)
		_, ok = cache.Latest("anthropic")
		assert.False(t, ok)
	})

	t.Run("store prunes expired entries from the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "health.json")
		cache := newProviderHealthCache(path, time.Hour)
		now := time.Now()
		cache.now = func() time.Time { return now }

		cache.Store("down", "", generation.HealthStatus{Available: false, CheckedAt: now})
		now = now.Add(5 * time.Minute)
		cache.Store("up", "", generation.HealthStatus{Available: true, CheckedAt: now})

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var file healthFile
		require.NoError(t, json.Unmarshal(data, &file))
		assert.Equal(t, providerHealthCacheVersion, file.Version)
		require.Len(t, file.Entries, 1)
		assert.Equal(t, "up", file.Entries[0].Provider)
	})

	t.Run("unreadable or foreign files are ignored", func(t *testing.T) {
		dir := t.TempDir()
		garbage := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o644))
		_, ok := newProviderHealthCache(garbage, time.Hour).Latest("mock")
		assert.False(t, ok)

		old := filepath.Join(dir, "old.json")
		legacy := `{"version": 0, "entries": [{"provider": "mock", "status": {"available": true, "checked_at": "` +
			time.Now().UTC().Format(time.RFC3339) + `"}}]}`
		require.NoError(t, os.WriteFile(old, []byte(legacy), 0o644))
		_, ok = newProviderHealthCache(old, time.Hour).Latest("mock")
		assert.False(t, ok)
	})
}
