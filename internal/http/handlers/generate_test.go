package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tattooz/internal/generator"
	"tattooz/internal/history"
	"tattooz/internal/imagegen"
	"tattooz/internal/middleware"
	"tattooz/internal/storage"
	"tattooz/internal/throttle"
)

type stubRequester struct {
	mu    sync.Mutex
	calls int
	fail  map[int]error
}

func (s *stubRequester) RequestImage(ctx context.Context, prompt string, attempts int, backoff time.Duration) (string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if err, ok := s.fail[n]; ok {
		return "", err
	}
	return imagegen.EncodeDataURL("image/png", []byte{0, 1, byte(n)}), nil
}

type recordingThrottle struct {
	keys []string
	wait time.Duration
	err  error
}

func (r *recordingThrottle) Wait(ctx context.Context, key string) (time.Duration, error) {
	r.keys = append(r.keys, key)
	return r.wait, r.err
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestApp(req generator.Requester) *App {
	return &App{
		Generator: generator.New(req, generator.Options{SequentialDelay: -1, Sleep: noSleep}),
		History:   history.NewMemory(10),
		NumImages: 2,
		MaxImages: 4,
	}
}

func postGenerate(app *App, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	app.Generate(rr, req)
	return rr
}

type generatePayload struct {
	Success    bool             `json:"success"`
	ImageURLs  []string         `json:"imageUrls"`
	Status     string           `json:"status"`
	Results    []generator.Slot `json:"results"`
	BatchID    string           `json:"batchId"`
	ArchiveURL string           `json:"archiveUrl"`
	Error      string           `json:"error"`
}

func decodeGenerate(t *testing.T, rr *httptest.ResponseRecorder) generatePayload {
	t.Helper()
	var payload generatePayload
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestGenerateReturnsImages(t *testing.T) {
	app := newTestApp(&stubRequester{})

	rr := postGenerate(app, `{"prompt":"a fox","size":"2x2"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	payload := decodeGenerate(t, rr)
	if !payload.Success || payload.Status != "success" {
		t.Fatalf("unexpected envelope: %+v", payload)
	}
	if len(payload.ImageURLs) != 2 || len(payload.Results) != 2 {
		t.Fatalf("expected 2 images and 2 results, got %d / %d", len(payload.ImageURLs), len(payload.Results))
	}
	mime, data, err := imagegen.DecodeDataURL(payload.ImageURLs[0])
	if err != nil || mime != "image/png" || !bytes.Equal(data, []byte{0, 1, 1}) {
		t.Fatalf("unexpected first image: %s %v %v", mime, data, err)
	}
	if _, err := uuid.Parse(payload.BatchID); err != nil {
		t.Fatalf("batch id is not a uuid: %q", payload.BatchID)
	}
	if payload.ArchiveURL != "" {
		t.Fatalf("archive url must be absent without an archive, got %q", payload.ArchiveURL)
	}

	entries, _ := app.History.Recent(context.Background(), 10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0].Prompt != "a fox" || entries[0].Size != "2x2" || entries[0].Succeeded != 2 || entries[0].ID.String() != payload.BatchID {
		t.Fatalf("unexpected history entry: %+v", entries[0])
	}
}

func TestGenerateToleratesFailedSlot(t *testing.T) {
	app := newTestApp(&stubRequester{fail: map[int]error{2: errors.New("imagegen: http status 500")}})

	rr := postGenerate(app, `{"prompt":"a fox","size":"3x3","count":3}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	payload := decodeGenerate(t, rr)
	if len(payload.Results) != 3 || len(payload.ImageURLs) != 2 {
		t.Fatalf("expected 3 results and 2 images, got %d / %d", len(payload.Results), len(payload.ImageURLs))
	}
	failed := payload.Results[1]
	if failed.State != generator.StateFailure || failed.ErrorMessage == "" || failed.Data != "" {
		t.Fatalf("expected slot 1 to fail, got %+v", failed)
	}
	if payload.Results[0].State != generator.StateSuccess || payload.Results[2].State != generator.StateSuccess {
		t.Fatalf("expected slots 0 and 2 to succeed: %+v", payload.Results)
	}
}

func TestGenerateAllSlotsFailedStillOK(t *testing.T) {
	boom := errors.New("exhausted")
	app := newTestApp(&stubRequester{fail: map[int]error{1: boom, 2: boom}})

	rr := postGenerate(app, `{"prompt":"a fox"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"imageUrls":[]`) {
		t.Fatalf("expected empty image list, got %s", rr.Body.String())
	}
}

func TestGenerateMalformedBody(t *testing.T) {
	req := &stubRequester{}
	app := newTestApp(req)

	rr := postGenerate(app, `{"prompt":`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want 500", rr.Code)
	}
	payload := decodeGenerate(t, rr)
	if payload.Success || payload.Status != "error" || payload.Error != "Failed to generate images" {
		t.Fatalf("unexpected error envelope: %+v", payload)
	}
	if req.calls != 0 {
		t.Fatalf("expected no upstream calls, got %d", req.calls)
	}
}

func TestGenerateLocalizedError(t *testing.T) {
	app := newTestApp(&stubRequester{})
	rr := postGenerate(app, `not json`, func(r *http.Request) {
		*r = *r.WithContext(context.WithValue(r.Context(), middleware.LocaleKey, "id"))
	})
	payload := decodeGenerate(t, rr)
	if payload.Error != "Gagal membuat gambar" {
		t.Fatalf("expected indonesian message, got %q", payload.Error)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	app := newTestApp(&stubRequester{})
	rr := postGenerate(app, `{"prompt":"   ","size":"2x2"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
	if payload := decodeGenerate(t, rr); payload.Error != "Prompt is required" || payload.Success {
		t.Fatalf("unexpected envelope: %+v", payload)
	}
}

func TestGenerateThrottleKey(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  string
	}{
		{name: "global scope", scope: "", want: throttle.GlobalKey},
		{name: "client scope", scope: ThrottleScopeClient, want: "203.0.113.9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			th := &recordingThrottle{}
			app := newTestApp(&stubRequester{})
			app.Throttle = th
			app.ThrottleScope = tc.scope

			rr := postGenerate(app, `{"prompt":"owl"}`, func(r *http.Request) {
				r.RemoteAddr = "203.0.113.9:5555"
			})
			if rr.Code != http.StatusOK {
				t.Fatalf("unexpected status code: %d", rr.Code)
			}
			if len(th.keys) != 1 || th.keys[0] != tc.want {
				t.Fatalf("throttle keys = %v, want [%s]", th.keys, tc.want)
			}
		})
	}
}

func TestGenerateThrottleFailure(t *testing.T) {
	req := &stubRequester{}
	app := newTestApp(req)
	app.Throttle = &recordingThrottle{err: errors.New("redis: connection refused")}

	rr := postGenerate(app, `{"prompt":"owl"}`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want 500", rr.Code)
	}
	if req.calls != 0 {
		t.Fatalf("generation must not run when the throttle fails, got %d calls", req.calls)
	}
}

func TestGenerateSpacesBackToBackRequests(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var waits []time.Duration
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		waits = append(waits, d)
		now = now.Add(d)
		return nil
	}
	app := newTestApp(&stubRequester{})
	app.Throttle = throttle.NewMemory(5*time.Second, throttle.WithClock(clock), throttle.WithSleep(sleep))

	for i := 0; i < 2; i++ {
		if rr := postGenerate(app, `{"prompt":"owl"}`, nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d: unexpected status %d", i, rr.Code)
		}
	}
	if len(waits) != 1 || waits[0] != 5*time.Second {
		t.Fatalf("expected the second request to wait 5s, got %v", waits)
	}
}

func TestGenerateArchivesAndServesZip(t *testing.T) {
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	app := newTestApp(&stubRequester{fail: map[int]error{2: errors.New("boom")}})
	app.Archive = storage.NewBatchArchive(files)

	payload := decodeGenerate(t, postGenerate(app, `{"prompt":"owl"}`, nil))
	if want := "/api/generations/" + payload.BatchID + "/archive"; payload.ArchiveURL != want {
		t.Fatalf("unexpected archive url: got %q, want %q", payload.ArchiveURL, want)
	}

	router := chi.NewRouter()
	router.Get("/api/generations/{id}/archive", app.GenerationArchive)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, payload.ArchiveURL, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("unexpected content type %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "tattoo-1.png" {
		t.Fatalf("expected only the successful slot archived, got %d files", len(zr.File))
	}

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations/"+id+"/archive", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("archive %s: got %d, want 404", id, rr.Code)
		}
	}
}

func TestGenerateNoArchiveURLWhenNothingSaved(t *testing.T) {
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	boom := errors.New("exhausted")
	app := newTestApp(&stubRequester{fail: map[int]error{1: boom, 2: boom}})
	app.Archive = storage.NewBatchArchive(files)

	rr := postGenerate(app, `{"prompt":"owl"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "archiveUrl") {
		t.Fatalf("expected no archive url when every slot failed, got %s", rr.Body.String())
	}
}

func TestListGenerations(t *testing.T) {
	app := newTestApp(&stubRequester{})
	for _, p := range []string{"one", "two", "three"} {
		postGenerate(app, `{"prompt":"`+p+`"}`, nil)
	}

	rr := httptest.NewRecorder()
	app.ListGenerations(rr, httptest.NewRequest(http.MethodGet, "/api/generations?limit=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}
	var payload struct {
		Items []history.Entry `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 || payload.Items[0].Prompt != "three" || payload.Items[1].Prompt != "two" {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	(&App{}).Health(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", rr.Code, rr.Body.String())
	}
}
