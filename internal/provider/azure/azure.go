// Package azure implements the recognition provider backed by the Azure AI
// Vision Read API.
package azure

import (
	"bytes"
	"context"
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
	providerName = "azure"

	analyzePath       = "/computervision/imageanalysis:analyze"
	defaultAPIVersion = "2023-10-01"
	defaultTimeout    = 30 * time.Second

	maxErrorBodyBytes = 4 << 10
)

// Options configures the Azure client.
type Options struct {
	// Endpoint overrides the region-derived endpoint, mainly for tests.
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
	Logger   *slog.Logger
}

// Client calls the Azure AI Vision Read API. The endpoint is derived from the
// per-call region unless an override is configured.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewClient builds an Azure recognition client.
func NewClient(opts Options) *Client {
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
		logger = opts.Logger.With("component", "provider.azure")
	}

	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"),
		timeout:  timeout,
		client:   hc,
		logger:   logger,
	}
}

// Name identifies this provider in configs and persisted results.
func (c *Client) Name() string { return providerName }

func (c *Client) analyzeURL(cfg provider.Config) (string, error) {
	base := c.endpoint
	if base == "" {
		region := strings.TrimSpace(cfg.Region)
		if region == "" {
			return "", provider.NewError(provider.KindInvalidConfig, providerName, "region is required")
		}
		base = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", region)
	}
	return base + analyzePath + "?features=read&api-version=" + defaultAPIVersion, nil
}

// ValidateCredentials probes the analyze endpoint with an empty body. Any
// response other than an auth rejection means the key was accepted.
func (c *Client) ValidateCredentials(ctx context.Context, cfg provider.Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return provider.NewError(provider.KindInvalidConfig, providerName, "api key is required")
	}
	url, err := c.analyzeURL(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create azure request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return provider.WrapTransportErr(providerName, err)
	}
	body, readErr := readBody(resp)
	if readErr != nil {
		return provider.WrapTransportErr(providerName, readErr)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return provider.NewError(provider.KindAuthFailed, providerName, strings.TrimSpace(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.NewError(provider.KindQuotaExceeded, providerName, strings.TrimSpace(body))
	case resp.StatusCode < 500:
		// 2xx or a 4xx complaint about the empty body: the key is good.
		return nil
	default:
		return provider.FromHTTPStatus(providerName, resp.StatusCode, body)
	}
}

// Recognize submits one page image and returns the normalized result.
func (c *Client) Recognize(ctx context.Context, image []byte, cfg provider.Config) (*provider.PageText, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(provider.KindInvalidConfig, providerName, "api key is required")
	}
	if len(image) == 0 {
		return nil, provider.NewError(provider.KindUnsupported, providerName, "empty page image")
	}
	url, err := c.analyzeURL(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create azure request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, provider.WrapTransportErr(providerName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := readBody(resp)
		if readErr != nil {
			return nil, provider.WrapTransportErr(providerName, readErr)
		}
		return nil, provider.FromHTTPStatus(providerName, resp.StatusCode, body)
	}

	var parsed analyzeResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	closeErr := resp.Body.Close()
	if decodeErr != nil {
		return nil, provider.WrapError(provider.KindTransient, providerName, fmt.Errorf("decode azure response: %w", decodeErr))
	}
	if closeErr != nil {
		return nil, provider.WrapTransportErr(providerName, closeErr)
	}

	elapsed := time.Since(start).Milliseconds()
	text, confidence := collapseReadResult(&parsed)

	if c.logger != nil {
		c.logger.DebugContext(ctx, "azure recognize complete",
			"bytes", len(image),
			"chars", len(text),
			"elapsed_ms", elapsed,
		)
	}

	return &provider.PageText{
		Text:             text,
		Confidence:       confidence,
		Language:         cfg.Language,
		ProcessingTimeMs: elapsed,
	}, nil
}

type analyzeResponse struct {
	ReadResult readResult `json:"readResult"`
}

type readResult struct {
	Blocks []readBlock `json:"blocks"`
}

type readBlock struct {
	Lines []readLine `json:"lines"`
}

type readLine struct {
	Text  string     `json:"text"`
	Words []readWord `json:"words"`
}

type readWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// collapseReadResult joins recognized lines into one text body and averages
// the per-word confidences.
func collapseReadResult(resp *analyzeResponse) (string, float64) {
	var sb strings.Builder
	var confSum float64
	var words int

	for _, block := range resp.ReadResult.Blocks {
		for _, line := range block.Lines {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(line.Text)
			for _, word := range line.Words {
				confSum += word.Confidence
				words++
			}
		}
	}

	confidence := 0.0
	if words > 0 {
		confidence = confSum / float64(words)
	}
	return sb.String(), confidence
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
