// Package pdf provides a Normaliser for PDF attachments.
// Text is read page by page with ledongthuc/pdf, which maps glyphs through
// the font encodings and ToUnicode CMaps. Files it cannot parse are
// rewritten by pdfcpu with a plain cross-reference table and read again.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Normalise extracts the text of every page, pages separated by a blank line.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	data, err := raw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	reader, err := open(data)
	if err != nil {
		repaired, rerr := rewrite(data)
		if rerr != nil {
			return nil, fmt.Errorf("%w: read pdf: %v", domain.ErrInvalidInput, err)
		}
		logger.Debug("Reading %s after rewriting it: %v", raw.URI, err)
		if reader, err = open(repaired); err != nil {
			return nil, fmt.Errorf("%w: read pdf: %v", domain.ErrInvalidInput, err)
		}
	}

	content, err := pageTexts(ctx, reader, raw.URI)
	if err != nil {
		return nil, err
	}
	return &driven.NormaliseResult{
		Content: content,
		Format:  driven.FormatText,
	}, nil
}

// open parses a PDF. The parser panics on some malformed input.
func open(data []byte) (r *lpdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// rewrite lets pdfcpu re-serialise the file without object or
// cross-reference streams.
func rewrite(data []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func pageTexts(ctx context.Context, reader *lpdf.Reader, uri string) (string, error) {
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Skipping page %d of %s: %v", i, uri, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
