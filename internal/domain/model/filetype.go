//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "strings"

// MIME types accepted by the processing queue.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
	MIMEBMP  = "image/bmp"
	MIMETIFF = "image/tiff"
)

// fileExtensions maps supported MIME types to the extension used for storage filenames.
var fileExtensions = map[string]string{
	MIMEPDF:  "pdf",
	MIMEJPEG: "jpg",
	MIMEPNG:  "png",
	MIMEWebP: "webp",
	MIMEBMP:  "bmp",
	MIMETIFF: "tiff",
}

// NormalizeMIME lowercases a MIME type and strips any parameters
// (e.g. "image/jpeg; charset=binary" becomes "image/jpeg").
func NormalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// IsPDF reports whether the normalized MIME type is a PDF document.
func IsPDF(mimeType string) bool {
	return NormalizeMIME(mimeType) == MIMEPDF
}

// IsImage reports whether the normalized MIME type is a supported image type.
func IsImage(mimeType string) bool {
	mt := NormalizeMIME(mimeType)
	_, ok := fileExtensions[mt]
	return ok && mt != MIMEPDF
}

// SupportedFileType reports whether the queue accepts documents of this MIME type.
func SupportedFileType(mimeType string) bool {
	_, ok := fileExtensions[NormalizeMIME(mimeType)]
	return ok
}

// FileExtension returns the storage filename extension for a supported MIME
// type, or "bin" for anything unrecognized.
func FileExtension(mimeType string) string {
	if ext, ok := fileExtensions[NormalizeMIME(mimeType)]; ok {
		return ext
	}
	return "bin"
}
