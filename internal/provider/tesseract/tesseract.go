// Package tesseract implements the recognition provider backed by a local
// Tesseract engine via gosseract. It needs no credentials and is the default
// for self-hosted deployments.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
)

const providerName = "tesseract"

// Engine runs OCR in-process. Each Recognize call uses a fresh gosseract
// client because the underlying Tesseract handle is not safe for concurrent
// use.
type Engine struct {
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

// Options configures the local engine.
type Options struct {
	Logger *slog.Logger
}

// NewEngine builds a local Tesseract recognition engine.
func NewEngine(opts Options) *Engine {
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "provider.tesseract")
	}
	return &Engine{
		clientFactory: gosseract.NewClient,
		logger:        logger,
	}
}

// Name identifies this provider in configs and persisted results.
func (e *Engine) Name() string { return providerName }

// ValidateCredentials checks that the requested language pack is installed.
// The local engine needs no API key.
func (e *Engine) ValidateCredentials(ctx context.Context, cfg provider.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		return nil
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(lang); err != nil {
		return provider.WrapError(provider.KindInvalidConfig, providerName,
			fmt.Errorf("language %q unavailable: %w", lang, err))
	}
	return nil
}

// Recognize runs Tesseract over one page image.
func (e *Engine) Recognize(ctx context.Context, image []byte, cfg provider.Config) (*provider.PageText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, provider.NewError(provider.KindUnsupported, providerName, "empty page image")
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, provider.WrapError(provider.KindUnsupported, providerName,
			fmt.Errorf("set image: %w", err))
	}

	lang := strings.TrimSpace(cfg.Language)
	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return nil, provider.WrapError(provider.KindInvalidConfig, providerName,
				fmt.Errorf("language %q unavailable: %w", lang, err))
		}
	}

	start := time.Now()

	text, err := client.Text()
	if err != nil {
		return nil, provider.WrapError(provider.KindTransient, providerName,
			fmt.Errorf("recognize: %w", err))
	}

	confidence := e.meanWordConfidence(ctx, client)
	elapsed := time.Since(start).Milliseconds()

	if e.logger != nil {
		e.logger.DebugContext(ctx, "tesseract recognize complete",
			"bytes", len(image),
			"chars", len(text),
			"elapsed_ms", elapsed,
		)
	}

	return &provider.PageText{
		Text:             strings.TrimSpace(text),
		Confidence:       confidence,
		Language:         lang,
		ProcessingTimeMs: elapsed,
	}, nil
}

// meanWordConfidence averages word-level confidences, scaled from Tesseract's
// 0-100 range. A failure here degrades the confidence to zero rather than
// failing the page.
func (e *Engine) meanWordConfidence(ctx context.Context, client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		if e.logger != nil {
			e.logger.WarnContext(ctx, "tesseract confidence unavailable", "error", err)
		}
		return 0
	}
	if len(boxes) == 0 {
		return 0
	}

	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
	}
	return sum / float64(len(boxes)) / 100
}
