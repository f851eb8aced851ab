package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/notesight/internal/apperr"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "gpt2"
	DefaultTimeout = 60 * time.Second
)

// HuggingFaceConfig holds configuration for the Hugging Face inference client.
type HuggingFaceConfig struct {
	// BaseURL is the inference API base URL (default: DefaultBaseURL).
	BaseURL string

	// Model is the hosted model repository id (default: gpt2).
	Model string

	// Token is the access token. Required.
	Token string

	// Timeout bounds each request (default: 60s).
	Timeout time.Duration

	// RatePerMinute caps outgoing requests; zero disables the limiter.
	RatePerMinute int

	// HTTPClient overrides the HTTP client (tests).
	HTTPClient *http.Client
}

// HuggingFace calls the hosted text-generation inference API.
type HuggingFace struct {
	client  *http.Client
	baseURL string
	model   string
	token   string
	timeout time.Duration
	limiter *rate.Limiter
}

var _ TextGenerator = (*HuggingFace)(nil)

// NewHuggingFace creates the client. A missing token is reported as
// apperr.ErrConfiguration before any request is made.
func NewHuggingFace(cfg HuggingFaceConfig) (*HuggingFace, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("insights: access token is required (set insights.token or HUGGINGFACEHUB_API_TOKEN): %w",
			apperr.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	h := &HuggingFace{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		token:   cfg.Token,
		timeout: cfg.Timeout,
	}
	if cfg.RatePerMinute > 0 {
		h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return h, nil
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	Temperature    float64 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// Generate sends prompt to the model and returns the generated continuation.
// Every failure wraps apperr.ErrServiceUnavailable.
func (h *HuggingFace) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("insights: rate limit: %w: %w", apperr.ErrServiceUnavailable, err)
		}
	}

	body, err := json.Marshal(generateRequest{
		Inputs: prompt,
		Parameters: generateParameters{
			Temperature:  params.Temperature,
			MaxNewTokens: params.MaxNewTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("insights: marshal request: %w", err)
	}

	// The deadline covers the body read as well as the round trip, and holds
	// for injected clients that carry no timeout of their own.
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/models/"+h.model, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("insights: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("insights: send request: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("insights: inference error (status %d): %s: %w",
			resp.StatusCode, strings.TrimSpace(string(raw)), apperr.ErrServiceUnavailable)
	}

	var out []generation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("insights: decode response: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("insights: empty response: %w", apperr.ErrServiceUnavailable)
	}
	return out[0].GeneratedText, nil
}
