// Package handlers provides the HTTP API for agora.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/generation"
	"github.com/alienxp03/agora/internal/prompt"
	"github.com/alienxp03/agora/internal/rotation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine          *engine.Engine
	registry        *generation.Registry
	hub             *Hub
	healthCache     *providerHealthCache
	defaultProvider string
	upgrader        websocket.Upgrader
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaultProvider marks the backend used when a debate names none.
func WithDefaultProvider(name string) Option {
	return func(h *Handler) { h.defaultProvider = name }
}

// WithHealthCachePath stores provider health results at path.
func WithHealthCachePath(path string) Option {
	return func(h *Handler) { h.healthCache = newProviderHealthCache(path, providerHealthCacheTTL) }
}

// New creates a new Handler. hub must be the notifier the engine publishes to.
func New(eng *engine.Engine, registry *generation.Registry, hub *Hub, opts ...Option) *Handler {
	h := &Handler{
		engine:      eng,
		registry:    registry,
		hub:         hub,
		healthCache: newProviderHealthCache(defaultProviderHealthCachePath(), providerHealthCacheTTL),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router serving the API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", h.handleAPIProviders)
		r.Get("/providers/{name}/health", h.handleAPIProviderHealth)

		r.Route("/participants", func(r chi.Router) {
			r.Get("/", h.handleAPIListParticipants)
			r.Post("/", h.handleAPICreateParticipant)
			r.Post("/seed", h.handleAPISeedParticipants)
			r.Get("/{id}", h.handleAPIGetParticipant)
			r.Put("/{id}", h.handleAPIUpdateParticipant)
			r.Delete("/{id}", h.handleAPIDeleteParticipant)
		})

		r.Route("/debates", func(r chi.Router) {
			r.Get("/", h.handleAPIListDebates)
			r.Post("/", h.handleAPICreateDebate)
			r.Get("/{id}", h.handleAPIGetDebate)
			r.Delete("/{id}", h.handleAPIDeleteDebate)
			r.Post("/{id}/next", h.handleAPINextTurn)
			r.Post("/{id}/inject", h.handleAPIInject)
			r.Put("/{id}/plan", h.handleAPIReorder)
			r.Get("/{id}/export/{format}", h.handleExportDebate)
			r.Get("/{id}/stream", h.handleDebateStream)
			r.Get("/{id}/ws", h.handleDebateWebSocket)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// turnResponse is a turn with its resolved speaker label.
type turnResponse struct {
	*core.Turn
	ParticipantName string `json:"participant_name"`
}

func newTurnResponse(t *core.Turn, names map[string]string) turnResponse {
	return turnResponse{Turn: t, ParticipantName: prompt.SpeakerName(t, names)}
}

type debateResponse struct {
	*core.Debate
	NextParticipantID string         `json:"next_participant_id,omitempty"`
	Turns             []turnResponse `json:"turns"`
}

func newDebateResponse(d *core.Debate, turns []*core.Turn, names map[string]string) debateResponse {
	resp := debateResponse{Debate: d, Turns: make([]turnResponse, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, newTurnResponse(t, names))
	}
	if next, ok := rotation.Next(d.Plan, rotation.FilledCount(turns)); ok {
		resp.NextParticipantID = next
	}
	return resp
}

// Participant handlers

func (h *Handler) handleAPIListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.engine.ListParticipants()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, participants)
}

func (h *Handler) handleAPICreateParticipant(w http.ResponseWriter, r *http.Request) {
	var in core.ParticipantInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.engine.CreateParticipant(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusCreated, p)
}

func (h *Handler) handleAPISeedParticipants(w http.ResponseWriter, r *http.Request) {
	created, err := h.engine.SeedPersonas()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"created": created})
}

func (h *Handler) handleAPIGetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.GetParticipant(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, p)
}

func (h *Handler) handleAPIUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var in core.ParticipantInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.engine.UpdateParticipant(chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, p)
}

func (h *Handler) handleAPIDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteParticipant(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Debate handlers

func (h *Handler) handleAPIListDebates(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	debates, err := h.engine.ListDebates(limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if debates == nil {
		debates = []*core.DebateSummary{}
	}
	h.json(w, http.StatusOK, debates)
}

func (h *Handler) handleAPICreateDebate(w http.ResponseWriter, r *http.Request) {
	var cfg core.NewDebateConfig
	if !h.decode(w, r, &cfg) {
		return
	}
	debate, err := h.engine.CreateDebate(cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	names, err := h.engine.SpeakerNames()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusCreated, newDebateResponse(debate, nil, names))
}

func (h *Handler) handleAPIGetDebate(w http.ResponseWriter, r *http.Request) {
	debate, turns, err := h.engine.GetDebateWithTurns(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	names, err := h.engine.SpeakerNames()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, newDebateResponse(debate, turns, names))
}

func (h *Handler) handleAPIDeleteDebate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAPINextTurn advances a debate. participant_id picks the speaker,
// moderator=true produces a moderator turn, and neither uses the
// participant scheduled at the current slot.
func (h *Handler) handleAPINextTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	var (
		turn *core.Turn
		err  error
	)
	moderator, _ := strconv.ParseBool(q.Get("moderator"))
	switch {
	case q.Get("participant_id") != "":
		turn, err = h.engine.Advance(r.Context(), id, q.Get("participant_id"))
	case moderator:
		turn, err = h.engine.Advance(r.Context(), id, "")
	default:
		turn, err = h.engine.AdvanceNext(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	names, err := h.engine.SpeakerNames()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, newTurnResponse(turn, names))
}

func (h *Handler) handleAPIInject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if c := r.URL.Query().Get("content"); c != "" {
		req.Content = c
	} else if !h.decode(w, r, &req) {
		return
	}

	turn, err := h.engine.Inject(chi.URLParam(r, "id"), req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, newTurnResponse(turn, nil))
}

func (h *Handler) handleAPIReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan core.RotationPlan `json:"plan"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.engine.Reorder(id, req.Plan); err != nil {
		h.writeError(w, err)
		return
	}

	debate, turns, err := h.engine.GetDebateWithTurns(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	names, err := h.engine.SpeakerNames()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, newDebateResponse(debate, turns, names))
}

// Helper methods

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) json(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", code, "error", err)
	}
	h.jsonError(w, err.Error(), code)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var genErr *generation.Error
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &genErr):
		switch genErr.Kind {
		case generation.RateLimited:
			return http.StatusTooManyRequests
		case generation.Unavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}
