package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/agora/internal/export"
)

func (h *Handler) handleExportDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	exporter, err := export.GetExporter(format)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
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

	// Render fully before writing so a failure can still produce an error status.
	var buf bytes.Buffer
	if err := exporter.Export(&export.Transcript{Debate: debate, Turns: turns, Names: names}, &buf); err != nil {
		slog.Error("Export failed", "debate_id", id, "format", format, "error", err)
		h.jsonError(w, "export failed", http.StatusInternalServerError)
		return
	}

	filename := export.GenerateFilename(debate, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(buf.Bytes())
}
