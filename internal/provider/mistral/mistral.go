// Package mistral implements the recognition provider backed by the Mistral
// OCR API.
package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
)

const (
	providerName = "mistral"

	defaultBaseURL = "https://api.mistral.ai"
	defaultModel   = "mistral-ocr-latest"
	defaultTimeout = 60 * time.Second

	ocrPath    = "/v1/ocr"
	modelsPath = "/v1/models"

	// The OCR endpoint reports no per-page confidence.
	fixedConfidence = 0.9

	maxErrorBodyBytes = 4 << 10
)

// Options configures the Mistral client.
type Options struct {
	// BaseURL overrides the public API host, mainly for tests.
	BaseURL string
	Model   string
	Timeout time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// Client calls the Mistral OCR endpoint with bearer-token auth.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewClient builds a Mistral recognition client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := opts.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "provider.mistral")
	}

	return &Client{
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
		client:  hc,
		logger:  logger,
	}
}

// Name identifies this provider in configs and persisted results.
func (c *Client) Name() string { return providerName }

// ValidateCredentials lists models, which only requires a valid bearer token.
func (c *Client) ValidateCredentials(ctx context.Context, cfg provider.Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return provider.NewError(provider.KindInvalidConfig, providerName, "api key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+modelsPath, http.NoBody)
	if err != nil {
		return fmt.Errorf("create mistral request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return provider.WrapTransportErr(providerName, err)
	}
	body, readErr := readBody(resp)
	if readErr != nil {
		return provider.WrapTransportErr(providerName, readErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return provider.FromHTTPStatus(providerName, resp.StatusCode, body)
}

// Recognize submits one page image as a data URL and joins the returned
// markdown pages into the page text.
func (c *Client) Recognize(ctx context.Context, image []byte, cfg provider.Config) (*provider.PageText, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(provider.KindInvalidConfig, providerName, "api key is required")
	}
	if len(image) == 0 {
		return nil, provider.NewError(provider.KindUnsupported, providerName, "empty page image")
	}

	payload := ocrRequest{
		Model: c.model,
		Document: ocrDocument{
			Type:     "image_url",
			ImageURL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal mistral request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ocrPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create mistral request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, provider.WrapTransportErr(providerName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, readErr := readBody(resp)
		if readErr != nil {
			return nil, provider.WrapTransportErr(providerName, readErr)
		}
		return nil, provider.FromHTTPStatus(providerName, resp.StatusCode, errBody)
	}

	var parsed ocrResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	closeErr := resp.Body.Close()
	if decodeErr != nil {
		return nil, provider.WrapError(provider.KindTransient, providerName, fmt.Errorf("decode mistral response: %w", decodeErr))
	}
	if closeErr != nil {
		return nil, provider.WrapTransportErr(providerName, closeErr)
	}

	elapsed := time.Since(start).Milliseconds()
	text := joinPages(parsed.Pages)

	if c.logger != nil {
		c.logger.DebugContext(ctx, "mistral recognize complete",
			"bytes", len(image),
			"chars", len(text),
			"elapsed_ms", elapsed,
		)
	}

	return &provider.PageText{
		Text:             text,
		Confidence:       fixedConfidence,
		Language:         cfg.Language,
		ProcessingTimeMs: elapsed,
	}, nil
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

func joinPages(pages []ocrPage) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if md := strings.TrimSpace(page.Markdown); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n")
}

func readBody(resp *http.Response) (string, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	closeErr := resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close response body: %w", closeErr)
	}
	return string(data), nil
}
