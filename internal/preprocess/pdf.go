package preprocess

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// countPages reads the page count from the document catalog without
// rendering anything, so empty and oversized documents are rejected before
// pdftoppm spawns.
func countPages(path string) (pages int, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
