// Package docx provides a Normaliser for Word (.docx) attachments.
// It reads the WordprocessingML body in document order, one line per
// paragraph or table row.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"strings"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Normalise extracts paragraph text from word/document.xml.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	data, err := raw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive", domain.ErrInvalidInput)
	}

	content, err := extractDocumentText(reader)
	if err != nil {
		return nil, err
	}

	return &driven.NormaliseResult{
		Content: content,
		Format:  driven.FormatText,
	}, nil
}

// extractDocumentText finds word/document.xml and returns its text.
func extractDocumentText(reader *zip.Reader) (string, error) {
	file, err := reader.Open("word/document.xml")
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: open document.xml: %v", domain.ErrInvalidInput, err)
	}
	defer file.Close()

	text, err := readBody(file)
	if err != nil {
		return "", fmt.Errorf("%w: parse document.xml: %v", domain.ErrInvalidInput, err)
	}
	return text, nil
}

// readBody walks the WordprocessingML tokens in document order. Paragraphs
// become lines; a table row becomes one line with its cells joined by " | ".
// Nested tables are flattened into the enclosing cell.
func readBody(r io.Reader) (string, error) {
	var (
		lines     []string
		para      strings.Builder
		inText    bool
		tableLvl  int
		cell      []string
		row       []string
		endOfPara = func() {
			text := strings.TrimSpace(para.String())
			para.Reset()
			if tableLvl > 0 {
				if text != "" {
					cell = append(cell, text)
				}
				return
			}
			lines = append(lines, text)
		}
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString(" ")
			case "tbl":
				tableLvl++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				endOfPara()
			case "tc":
				if tableLvl == 1 {
					row = append(row, strings.Join(cell, " "))
					cell = nil
				}
			case "tr":
				if tableLvl == 1 {
					lines = append(lines, strings.Join(row, " | "))
					row = nil
				}
			case "tbl":
				tableLvl--
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")), nil
}

// blankRuns matches two or more consecutive empty lines.
var blankRuns = regexp.MustCompile(`\n{3,}`)
