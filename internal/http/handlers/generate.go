package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"tattooz/internal/domain"
	"tattooz/internal/generator"
	"tattooz/internal/history"
	"tattooz/internal/middleware"
	"tattooz/internal/throttle"
)

const (
	maxGenerateBody   = 64 << 10
	sideEffectTimeout = 30 * time.Second
)

// generateResponse carries ArchiveURL only when at least one image was
// archived.
type generateResponse struct {
	Success    bool             `json:"success"`
	ImageURLs  []string         `json:"imageUrls"`
	Status     string           `json:"status"`
	Results    []generator.Slot `json:"results"`
	BatchID    string           `json:"batchId"`
	ArchiveURL string           `json:"archiveUrl,omitempty"`
}

// Generate handles POST /api/generate. Once the body is valid the response is
// 200 even when some or all slots failed; per-slot errors are in results.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	log := a.logger(r)

	var req domain.GenerationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody)).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("generate: decode body")
		a.error(w, r, http.StatusInternalServerError, "internal", msgGenerateFailed)
		return
	}
	size, err := req.Normalize(a.NumImages, a.MaxImages)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgPromptRequired)
		return
	}

	if a.Throttle != nil {
		key := throttle.GlobalKey
		if a.ThrottleScope == ThrottleScopeClient {
			key = middleware.ClientIP(r)
		}
		waited, err := a.Throttle.Wait(r.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("generate: throttle wait")
			a.error(w, r, http.StatusInternalServerError, "internal", msgGenerateFailed)
			return
		}
		a.Metrics.ObserveThrottleWait(waited)
		if waited > 0 {
			log.Debug().Dur("waited", waited).Msg("generate: throttled")
		}
	}

	batch := a.Generator.GenerateBatch(r.Context(), req.Prompt, size, req.Count)

	// Archive and history must not depend on the caller staying connected.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), sideEffectTimeout)
	defer cancel()
	archived := a.archiveBatch(sideCtx, r, batch)
	a.recordBatch(sideCtx, r, req, batch)

	resp := generateResponse{
		Success:   true,
		ImageURLs: batch.ImageURLs(),
		Status:    "success",
		Results:   batch.Slots,
		BatchID:   batch.ID.String(),
	}
	if archived > 0 {
		resp.ArchiveURL = "/api/generations/" + batch.ID.String() + "/archive"
	}
	a.json(w, http.StatusOK, resp)
}

// archiveBatch stores the successful images and returns how many were saved.
func (a *App) archiveBatch(ctx context.Context, r *http.Request, batch generator.Batch) int {
	if a.Archive == nil || batch.Succeeded() == 0 {
		return 0
	}
	images := make(map[int]string, batch.Succeeded())
	for _, s := range batch.Slots {
		if s.State == generator.StateSuccess {
			images[s.Index] = s.Data
		}
	}
	saved, err := a.Archive.SaveBatch(ctx, batch.ID, images)
	if err != nil {
		a.logger(r).Error().Err(err).Str("batch_id", batch.ID.String()).Int("saved", saved).Msg("generate: archive batch")
	}
	return saved
}

func (a *App) recordBatch(ctx context.Context, r *http.Request, req domain.GenerationRequest, batch generator.Batch) {
	if a.History == nil {
		return
	}
	entry := history.Entry{
		ID:         batch.ID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Prompt:     req.Prompt,
		Size:       req.Size,
		Strategy:   string(batch.Strategy),
		Requested:  len(batch.Slots),
		Succeeded:  batch.Succeeded(),
		Failed:     batch.Failed(),
		DurationMS: batch.Duration.Milliseconds(),
		Locale:     middleware.LocaleFromContext(r.Context()),
		Country:    middleware.CountryFromContext(r.Context()),
		CreatedAt:  batch.StartedAt.UTC(),
	}
	if err := a.History.Record(ctx, entry); err != nil {
		a.logger(r).Error().Err(err).Str("batch_id", batch.ID.String()).Msg("generate: record history")
	}
}
