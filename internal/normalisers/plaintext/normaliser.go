// Package plaintext provides a Normaliser for plain text attachments.
package plaintext

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"application/json",
		"application/xml",
		"text/xml",
		"text/yaml",
	}
}

// Normalise decodes the text and strips what would pollute the index.
// A UTF-16 or UTF-8 byte order mark selects the decoding; without one
// the bytes are read as UTF-8 and invalid sequences are dropped.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	data, err := raw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode text: %v", domain.ErrInvalidInput, err)
	}

	return &driven.NormaliseResult{
		Content: clean(string(decoded)),
		Format:  driven.FormatText,
	}, nil
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "")

func clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.TrimSpace(lineEndings.Replace(s))
}
