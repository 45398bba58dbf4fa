package preprocess

import "errors"

// Preparation failures are fatal for the job; none of them are retried.
var (
	// ErrEmptyDocument indicates the document contains zero pages.
	ErrEmptyDocument = errors.New("document contains no pages")

	// ErrPageRenderFailed indicates a page could not be rasterized.
	ErrPageRenderFailed = errors.New("page rendering failed")

	// ErrUnsupportedFormat indicates the file type cannot be preprocessed.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrTooManyPages indicates the document exceeds the configured page cap.
	ErrTooManyPages = errors.New("document exceeds page limit")
)
