package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"tattooz/internal/generator"
	"tattooz/internal/history"
	"tattooz/internal/infra"
	"tattooz/internal/metrics"
	"tattooz/internal/middleware"
	"tattooz/internal/prompt"
	"tattooz/internal/throttle"
)

// ThrottleScopeClient spaces requests per client IP instead of process-wide.
const ThrottleScopeClient = "client"

// BatchGenerator runs one batch of generations.
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, userPrompt string, size prompt.Size, count int) generator.Batch
}

// Archiver stores successful images of a batch and bundles them for download.
type Archiver interface {
	SaveBatch(ctx context.Context, batchID uuid.UUID, images map[int]string) (int, error)
	Zip(ctx context.Context, batchID uuid.UUID) ([]byte, error)
}

// App holds the dependencies shared by the HTTP handlers.
type App struct {
	Generator     BatchGenerator
	Throttle      throttle.Throttle
	ThrottleScope string
	History       history.Store
	Archive       Archiver
	Metrics       *metrics.Recorder
	Logger        *infra.Logger
	NumImages     int
	MaxImages     int
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
}

// error writes the failure envelope with message translated to the request
// locale.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	a.json(w, status, errorResponse{
		Success: false,
		Error:   localize(middleware.LocaleFromContext(r.Context()), message),
		Status:  "error",
		Code:    code,
	})
}

func (a *App) logger(r *http.Request) *infra.Logger {
	l := infra.LoggerOrDiscard(a.Logger).With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Logger()
	return &l
}
