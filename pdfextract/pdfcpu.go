package pdfextract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPU extracts text with pdfcpu's structure-aware parser.
type PDFCPU struct{}

// NewPDFCPU returns the production extractor.
func NewPDFCPU() *PDFCPU {
	return &PDFCPU{}
}

// Open reads, validates and optimizes the PDF at sourceURI. A file://
// prefix is accepted; anything else is treated as a local path.
func (e *PDFCPU) Open(ctx context.Context, sourceURI, password string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(sourceURI, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadableSource, path, err)
	}

	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: pdfcpu read %s: %v", ErrUnreadableSource, path, err)
	}

	return &pdfcpuDoc{f: f, ctx: pdfCtx}, nil
}

// pdfcpuDoc holds the parsed context. The file stays open until Close —
// pdfcpu loads page content streams lazily from the reader.
type pdfcpuDoc struct {
	f   *os.File
	ctx *model.Context
}

func (d *pdfcpuDoc) PageCount() int {
	return d.ctx.PageCount
}

func (d *pdfcpuDoc) ExtractPage(ctx context.Context, page int) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if page < 1 || page > d.ctx.PageCount {
		return "", "", fmt.Errorf("%w: page %d out of range 1..%d", ErrPageExtraction, page, d.ctx.PageCount)
	}

	r, err := pdfcpu.ExtractPageContent(d.ctx, page)
	if err != nil {
		return "", "", fmt.Errorf("%w: page %d content: %v", ErrPageExtraction, page, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("%w: page %d read: %v", ErrPageExtraction, page, err)
	}

	return decodeContentStream(data), MethodPDFText, nil
}

func (d *pdfcpuDoc) Close() error {
	return d.f.Close()
}
