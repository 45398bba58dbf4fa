// Package google implements the recognition provider backed by the Google
// Cloud Vision API.
package google

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
	providerName = "google"

	defaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"
	defaultTimeout  = 30 * time.Second

	maxErrorBodyBytes = 4 << 10
)

// Canonical google.rpc codes surfaced in per-image error statuses.
const (
	rpcInvalidArgument   = 3
	rpcDeadlineExceeded  = 4
	rpcPermissionDenied  = 7
	rpcResourceExhausted = 8
	rpcInternal          = 13
	rpcUnavailable       = 14
	rpcUnauthenticated   = 16
)

// Options configures the Google Vision client.
type Options struct {
	// Endpoint overrides the public annotate URL, mainly for tests.
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
	Logger   *slog.Logger
}

// Client calls the Vision images:annotate endpoint with API-key auth.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewClient builds a Google Vision recognition client.
func NewClient(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
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
		logger = opts.Logger.With("component", "provider.google")
	}

	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		client:   hc,
		logger:   logger,
	}
}

// Name identifies this provider in configs and persisted results.
func (c *Client) Name() string { return providerName }

// ValidateCredentials posts an empty request batch. A valid key yields an
// empty 200 response; a rejected key yields a 4xx with an error envelope.
func (c *Client) ValidateCredentials(ctx context.Context, cfg provider.Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return provider.NewError(provider.KindInvalidConfig, providerName, "api key is required")
	}

	resp, err := c.post(ctx, cfg.APIKey, annotateRequest{Requests: []imageRequest{}})
	if err != nil {
		return err
	}
	body, readErr := readBody(resp)
	if readErr != nil {
		return provider.WrapTransportErr(providerName, readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		// An empty batch is well-formed, so a 4xx here means key rejection.
		return provider.NewError(provider.KindAuthFailed, providerName, errorMessage(body))
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

	req := imageRequest{
		Image:    imagePayload{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
	}
	if lang := strings.TrimSpace(cfg.Language); lang != "" {
		req.ImageContext = &imageContext{LanguageHints: []string{lang}}
	}

	start := time.Now()

	resp, err := c.post(ctx, cfg.APIKey, annotateRequest{Requests: []imageRequest{req}})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := readBody(resp)
		if readErr != nil {
			return nil, provider.WrapTransportErr(providerName, readErr)
		}
		return nil, provider.FromHTTPStatus(providerName, resp.StatusCode, body)
	}

	var parsed annotateResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	closeErr := resp.Body.Close()
	if decodeErr != nil {
		return nil, provider.WrapError(provider.KindTransient, providerName, fmt.Errorf("decode vision response: %w", decodeErr))
	}
	if closeErr != nil {
		return nil, provider.WrapTransportErr(providerName, closeErr)
	}

	if len(parsed.Responses) == 0 {
		return nil, provider.NewError(provider.KindTransient, providerName, "empty annotate response")
	}
	item := parsed.Responses[0]
	if item.Error != nil {
		return nil, rpcStatusError(item.Error)
	}

	elapsed := time.Since(start).Milliseconds()
	text, confidence, language := collapseAnnotation(item.FullTextAnnotation)
	if language == "" {
		language = cfg.Language
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "vision recognize complete",
			"bytes", len(image),
			"chars", len(text),
			"elapsed_ms", elapsed,
		)
	}

	return &provider.PageText{
		Text:             text,
		Confidence:       confidence,
		Language:         language,
		ProcessingTimeMs: elapsed,
	}, nil
}

func (c *Client) post(ctx context.Context, apiKey string, payload annotateRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal vision request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.endpoint + "?key=" + apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, provider.WrapTransportErr(providerName, err)
	}
	return resp, nil
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imagePayload  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imagePayload struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints"`
}

type annotateResponse struct {
	Responses []annotateItem `json:"responses"`
}

type annotateItem struct {
	FullTextAnnotation *fullTextAnnotation `json:"fullTextAnnotation"`
	Error              *rpcStatus          `json:"error"`
}

type fullTextAnnotation struct {
	Text  string           `json:"text"`
	Pages []annotationPage `json:"pages"`
}

type annotationPage struct {
	Confidence float64       `json:"confidence"`
	Property   *pageProperty `json:"property"`
}

type pageProperty struct {
	DetectedLanguages []detectedLanguage `json:"detectedLanguages"`
}

type detectedLanguage struct {
	LanguageCode string `json:"languageCode"`
}

type rpcStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcStatusError maps a per-image google.rpc status onto the provider error
// taxonomy.
func rpcStatusError(st *rpcStatus) error {
	msg := st.Message
	if msg == "" {
		msg = fmt.Sprintf("rpc code %d", st.Code)
	}
	switch st.Code {
	case rpcUnauthenticated, rpcPermissionDenied:
		return provider.NewError(provider.KindAuthFailed, providerName, msg)
	case rpcResourceExhausted:
		return provider.NewError(provider.KindQuotaExceeded, providerName, msg)
	case rpcDeadlineExceeded, rpcInternal, rpcUnavailable:
		return provider.NewError(provider.KindTransient, providerName, msg)
	case rpcInvalidArgument:
		return provider.NewError(provider.KindUnsupported, providerName, msg)
	default:
		return provider.NewError(provider.KindTransient, providerName, msg)
	}
}

// collapseAnnotation extracts the document text, the mean page confidence,
// and the first detected language code.
func collapseAnnotation(ann *fullTextAnnotation) (string, float64, string) {
	if ann == nil {
		return "", 0, ""
	}

	var confSum float64
	var pages int
	language := ""
	for _, page := range ann.Pages {
		confSum += page.Confidence
		pages++
		if language == "" && page.Property != nil && len(page.Property.DetectedLanguages) > 0 {
			language = page.Property.DetectedLanguages[0].LanguageCode
		}
	}

	confidence := 0.0
	if pages > 0 {
		confidence = confSum / float64(pages)
	}
	return strings.TrimSpace(ann.Text), confidence, language
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// errorMessage pulls the message out of a Google error envelope, falling back
// to the raw body.
func errorMessage(body string) string {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(body)
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
