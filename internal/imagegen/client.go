package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"tattooz/internal/infra"
	"tattooz/internal/retry"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	defaultModel   = "@cf/stabilityai/stable-diffusion-xl-base-1.0"
	defaultTimeout = 25 * time.Second
	maxErrorBody   = 4 << 10
)

// Outcomes reported to an Observer for every HTTP attempt.
const (
	OutcomeSuccess        = "success"
	OutcomeRateLimited    = "rate_limited"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

// Observer receives one call per upstream attempt.
type Observer interface {
	ObserveAttempt(outcome string, took time.Duration)
}

// Options configures the Cloudflare Workers AI client.
type Options struct {
	AccountID  string
	APIToken   string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
	Observer   Observer
	// Sleep overrides the backoff timer; tests use it to record delays.
	Sleep retry.SleepFunc
}

// Client turns a prompt into a single image by calling the Workers AI
// text-to-image endpoint.
type Client struct {
	accountID  string
	apiToken   string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *infra.Logger
	observer   Observer
	sleep      retry.SleepFunc
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// NewClient constructs a client with defaults for everything but credentials.
// The wall-clock limit is enforced per RequestImage call, so the HTTP client
// itself carries no timeout.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = defaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	return &Client{
		accountID:  strings.TrimSpace(opts.AccountID),
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		model:      model,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		observer:   opts.Observer,
		sleep:      sleep,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.accountID != "" && c.apiToken != ""
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
}

// RequestImage generates one image and returns it as a base64 data URL.
//
// At most attempts calls are made. Rate limiting and transport failures are
// retried after initialBackoff, doubling every time; any other non-2xx status
// fails immediately. The whole loop, backoff included, is bounded by the
// client timeout and fails with ErrTimeout when it runs out.
func (c *Client) RequestImage(ctx context.Context, prompt string, attempts int, initialBackoff time.Duration) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingCredentials
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("imagegen: encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	policy := retry.Policy{
		Attempts:       attempts,
		InitialBackoff: initialBackoff,
		Retryable:      Retryable,
		Sleep:          c.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn().Err(err).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("cloudflare: retrying image generation")
		},
	}
	dataURL, err := retry.Value(callCtx, policy, func(ctx context.Context, attempt int) (string, error) {
		c.logger.Debug().Int("attempt", attempt).Int("attempts", attempts).Msg("cloudflare: requesting image")
		return c.once(ctx, body)
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", err
	}
	return dataURL, nil
}

func (c *Client) once(ctx context.Context, body []byte) (string, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("imagegen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(OutcomeTransportError, start)
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := errorDetail(raw)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("detail", detail).
			Msg("cloudflare: api error")
		if resp.StatusCode == http.StatusTooManyRequests {
			c.observe(OutcomeRateLimited, start)
		} else {
			c.observe(OutcomeHTTPError, start)
		}
		return "", &HTTPError{Status: resp.StatusCode, Body: detail}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(OutcomeTransportError, start)
		return "", &TransportError{Err: fmt.Errorf("read image: %w", err)}
	}
	c.observe(OutcomeSuccess, start)
	c.logger.Debug().Int("bytes", len(data)).Msg("cloudflare: received image data")
	return EncodeDataURL(imageMIME(resp.Header.Get("Content-Type")), data), nil
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveAttempt(outcome, time.Since(start))
	}
}

// errorDetail extracts the messages of a Cloudflare error envelope, falling
// back to the raw body text.
func errorDetail(raw []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return strings.TrimSpace(string(raw))
}

func imageMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "image/png"
	}
	return mediaType
}

// EncodeDataURL renders data as a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its media type and payload.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, errors.New("imagegen: not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("imagegen: malformed data url")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("imagegen: data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("imagegen: decode data url: %w", err)
	}
	return mediaType, data, nil
}
