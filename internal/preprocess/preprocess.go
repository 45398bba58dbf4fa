// Package preprocess turns an uploaded document into the per-page JPEG images
// recognition runs on. PDFs are rasterized page by page; single images pass
// through untouched. Page images land in the blob store before any
// recognition starts.
package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

const (
	defaultScale          = 1.5
	defaultJPEGQuality    = 80
	defaultThumbnailWidth = 320
	defaultTimeout        = 2 * time.Minute

	pdfMIMEType = "application/pdf"
)

// Config holds the rasterization settings.
type Config struct {
	// PdftoppmPath is the binary name or absolute path; empty means "pdftoppm".
	PdftoppmPath string
	// Scale is the raster scale relative to PDF user space. 1.5 renders at
	// 108 DPI.
	Scale float64
	// JPEGQuality applies to page images and thumbnails, 1-100.
	JPEGQuality int
	// ThumbnailWidth is the pixel width of the first-page thumbnail.
	ThumbnailWidth int
	// MaxPages caps document size. 0 means no limit.
	MaxPages int
	// Timeout bounds one document's preparation.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PdftoppmPath == "" {
		c.PdftoppmPath = "pdftoppm"
	}
	if c.Scale <= 0 {
		c.Scale = defaultScale
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = defaultJPEGQuality
	}
	if c.ThumbnailWidth <= 0 {
		c.ThumbnailWidth = defaultThumbnailWidth
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Document is the prepared form of a job's upload.
type Document struct {
	TotalPages int
	// PagePaths holds the blob keys of the page images, index i is page i+1.
	PagePaths []string
	// ThumbnailPath is empty when thumbnail generation failed; that never
	// fails the job.
	ThumbnailPath string
}

// Preprocessor prepares uploads for recognition.
type Preprocessor struct {
	cfg    Config
	runner Runner
	blobs  core.BlobStore
	logger *slog.Logger
}

// New builds a Preprocessor. The logger may be nil.
func New(cfg Config, blobs core.BlobStore, logger *slog.Logger) *Preprocessor {
	if logger != nil {
		logger = logger.With("component", "preprocess")
	}
	return &Preprocessor{
		cfg:    cfg.withDefaults(),
		runner: execRunner{logger: logger},
		blobs:  blobs,
		logger: logger,
	}
}

// Prepare produces the page images for a job based on its MIME type.
func (p *Preprocessor) Prepare(ctx context.Context, job *model.Job) (*Document, error) {
	switch {
	case job.FileType == pdfMIMEType:
		return p.preparePDF(ctx, job)
	case strings.HasPrefix(job.FileType, "image/"):
		return p.prepareImage(ctx, job)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, job.FileType)
	}
}

// prepareImage passes the upload through as the single page image. The
// original object doubles as the page so nothing is re-encoded.
func (p *Preprocessor) prepareImage(ctx context.Context, job *model.Job) (*Document, error) {
	doc := &Document{
		TotalPages: 1,
		PagePaths:  []string{job.StoragePath},
	}

	data, err := p.fetchOriginal(ctx, job.StoragePath)
	if err != nil {
		// Recognition fetches the same object and will surface a real
		// storage failure; only the thumbnail is lost here.
		p.warn(ctx, "thumbnail source unavailable", "job_id", job.ID, "error", err)
		return doc, nil
	}
	doc.ThumbnailPath = p.uploadThumbnail(ctx, job, data)
	return doc, nil
}

func (p *Preprocessor) preparePDF(ctx context.Context, job *model.Job) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "ocr-prep-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			p.warn(ctx, "failed to remove temp dir", "dir", tmpDir, "error", rmErr)
		}
	}()

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := p.downloadOriginal(ctx, job.StoragePath, pdfPath); err != nil {
		return nil, err
	}

	pageCount, err := countPages(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open document: %v", ErrPageRenderFailed, err)
	}
	if pageCount == 0 {
		return nil, ErrEmptyDocument
	}
	if p.cfg.MaxPages > 0 && pageCount > p.cfg.MaxPages {
		return nil, fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, pageCount, p.cfg.MaxPages)
	}

	pageFiles, err := p.rasterize(ctx, pdfPath, tmpDir, pageCount)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		TotalPages: pageCount,
		PagePaths:  make([]string, 0, pageCount),
	}
	for i, file := range pageFiles {
		pageNumber := i + 1
		data, readErr := os.ReadFile(file)
		if readErr != nil {
			return nil, fmt.Errorf("%w: read page %d: %v", ErrPageRenderFailed, pageNumber, readErr)
		}
		if checkErr := checkPageImage(data); checkErr != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrPageRenderFailed, pageNumber, checkErr)
		}

		key := storage.PagePath(job.OwnerID, job.ID, pageNumber)
		putErr := p.blobs.Put(ctx, core.PutBlobParams{
			Path:        key,
			Reader:      bytes.NewReader(data),
			Size:        int64(len(data)),
			ContentType: "image/jpeg",
		})
		if putErr != nil {
			return nil, fmt.Errorf("upload page %d: %w", pageNumber, putErr)
		}
		doc.PagePaths = append(doc.PagePaths, key)

		if pageNumber == 1 {
			doc.ThumbnailPath = p.uploadThumbnail(ctx, job, data)
		}
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "document prepared",
			"job_id", job.ID,
			"pages", pageCount,
		)
	}
	return doc, nil
}

// rasterize shells out to pdftoppm and returns the rendered page files in
// page order. pdftoppm zero-pads page numbers to a fixed width, so lexical
// order is page order.
func (p *Preprocessor) rasterize(ctx context.Context, pdfPath, tmpDir string, pageCount int) ([]string, error) {
	prefix := filepath.Join(tmpDir, "page")
	dpi := int(math.Round(p.cfg.Scale * 72))

	_, errb, err := p.runner.Run(ctx, p.cfg.PdftoppmPath,
		"-r", strconv.Itoa(dpi),
		"-jpeg",
		"-jpegopt", fmt.Sprintf("quality=%d", p.cfg.JPEGQuality),
		pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", ErrPageRenderFailed, err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.jpg")
	sort.Strings(matches)
	if len(matches) != pageCount {
		return nil, fmt.Errorf("%w: rendered %d of %d pages", ErrPageRenderFailed, len(matches), pageCount)
	}
	return matches, nil
}

// checkPageImage rejects empty or cut-short renders before they are uploaded
// as page images. pdftoppm writes complete JPEGs, so a missing start-of-image
// or end-of-image marker means the render died mid-write.
func checkPageImage(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty image")
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return errors.New("not a JPEG")
	}
	if data[len(data)-2] != 0xFF || data[len(data)-1] != 0xD9 {
		return errors.New("truncated image")
	}
	return nil
}

func (p *Preprocessor) downloadOriginal(ctx context.Context, storagePath, dest string) error {
	rc, err := p.blobs.Get(ctx, storagePath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("create temp file: %w", err)
	}

	_, copyErr := io.Copy(f, rc)
	closeErr := f.Close()
	readerErr := rc.Close()

	if copyErr != nil {
		return fmt.Errorf("download original: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("flush temp file: %w", closeErr)
	}
	if readerErr != nil {
		return fmt.Errorf("close original reader: %w", readerErr)
	}
	return nil
}

func (p *Preprocessor) fetchOriginal(ctx context.Context, storagePath string) ([]byte, error) {
	rc, err := p.blobs.Get(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	data, readErr := io.ReadAll(rc)
	closeErr := rc.Close()
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return data, nil
}

func (p *Preprocessor) warn(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.WarnContext(ctx, msg, args...)
	}
}
