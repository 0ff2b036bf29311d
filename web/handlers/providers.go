package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/agora/internal/generation"
)

type providerInfo struct {
	Name    string                   `json:"name"`
	Default bool                     `json:"default"`
	Health  *generation.HealthStatus `json:"health,omitempty"`
}

// handleAPIProviders lists configured backends with any fresh cached health.
func (h *Handler) handleAPIProviders(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	result := make([]providerInfo, 0, len(names))
	for _, name := range names {
		info := providerInfo{Name: name, Default: name == h.defaultProvider}
		if status, ok := h.healthCache.Latest(name); ok {
			info.Health = &status
		}
		result = append(result, info)
	}
	h.json(w, http.StatusOK, result)
}

// handleAPIProviderHealth probes one backend unless a fresh result is cached.
func (h *Handler) handleAPIProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	backend, err := h.registry.Get(name)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	model := r.URL.Query().Get("model")
	status, cached := h.healthCache.Lookup(name, model)
	if !cached {
		status = generation.HealthCheck(r.Context(), backend, model)
		h.healthCache.Store(name, model, status)
	}

	resp := map[string]any{
		"name":   name,
		"health": status,
		"cached": cached,
	}
	if model != "" {
		resp["model"] = model
	}
	h.json(w, http.StatusOK, resp)
}
