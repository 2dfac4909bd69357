package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tattooz/internal/domain"
	"tattooz/internal/history"
)

// ListGenerations handles GET /api/generations?limit=N.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items := []history.Entry{}
	if a.History != nil {
		var err error
		items, err = a.History.Recent(r.Context(), history.ClampLimit(limit))
		if err != nil {
			a.logger(r).Error().Err(err).Msg("generations: list")
			a.error(w, r, http.StatusInternalServerError, "internal", msgHistoryFailed)
			return
		}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GenerationArchive handles GET /api/generations/{id}/archive.
func (a *App) GenerationArchive(w http.ResponseWriter, r *http.Request) {
	if a.Archive == nil {
		a.error(w, r, http.StatusNotFound, "not_found", msgArchiveOff)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, http.StatusNotFound, "not_found", msgArchiveMissing)
		return
	}
	body, err := a.Archive.Zip(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, r, http.StatusNotFound, "not_found", msgArchiveMissing)
		return
	}
	if err != nil {
		a.logger(r).Error().Err(err).Str("batch_id", id.String()).Msg("generations: archive")
		a.error(w, r, http.StatusInternalServerError, "internal", msgArchiveFailed)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tattooz-%s.zip"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
