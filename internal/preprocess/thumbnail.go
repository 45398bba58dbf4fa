package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Register decoders for the upload formats recognition accepts.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

// uploadThumbnail scales the first page down and stores it. Failures are
// logged and swallowed; a job never fails over its thumbnail.
func (p *Preprocessor) uploadThumbnail(ctx context.Context, job *model.Job, pageData []byte) string {
	thumb, err := makeThumbnail(pageData, p.cfg.ThumbnailWidth, p.cfg.JPEGQuality)
	if err != nil {
		p.warn(ctx, "thumbnail generation failed", "job_id", job.ID, "error", err)
		return ""
	}

	key := storage.ThumbnailPath(job.OwnerID, job.ID)
	err = p.blobs.Put(ctx, core.PutBlobParams{
		Path:        key,
		Reader:      bytes.NewReader(thumb),
		Size:        int64(len(thumb)),
		ContentType: "image/jpeg",
	})
	if err != nil {
		p.warn(ctx, "thumbnail upload failed", "job_id", job.ID, "error", err)
		return ""
	}

	if p.logger != nil {
		p.logger.DebugContext(ctx, "thumbnail stored", "job_id", job.ID, "bytes", len(thumb))
	}
	return key
}

// makeThumbnail scales an image down to the given width, preserving aspect
// ratio. Images already narrower than width keep their size. Transparent
// pixels composite onto white.
func makeThumbnail(data []byte, width, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("image has no pixels")
	}

	w := width
	if b.Dx() < w {
		w = b.Dx()
	}
	h := b.Dy() * w / b.Dx()
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
