// Package pdfextract extracts per-page text from PDF sources.
//
// The Extractor/Document pair is the seam between the extraction
// orchestrator and the PDF machinery: the orchestrator opens a source
// once, learns the page count, then pulls pages independently. The
// production implementation parses content streams with pdfcpu; tests
// substitute fakes.
package pdfextract

import (
	"context"
	"errors"
)

// MethodPDFText identifies content-stream text decoding. It appears in
// output file names (page_0001_pdftext.md) and page headers.
const MethodPDFText = "pdftext"

var (
	// ErrUnreadableSource means the source could not be located, opened
	// or parsed. Terminal for the document.
	ErrUnreadableSource = errors.New("unreadable source")

	// ErrPageExtraction means one page failed. Non-fatal — remaining
	// pages are still attempted.
	ErrPageExtraction = errors.New("page extraction failed")
)

// Extractor opens PDF sources for page-by-page extraction.
type Extractor interface {
	// Open parses the source and returns a handle. password may be empty.
	Open(ctx context.Context, sourceURI, password string) (Document, error)
}

// Document is an open source. Pages are numbered 1..PageCount().
type Document interface {
	PageCount() int

	// ExtractPage returns the text of one page and the method used.
	ExtractPage(ctx context.Context, page int) (text, method string, err error)

	// Close releases the underlying source.
	Close() error
}
