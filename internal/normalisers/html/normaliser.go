package html

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser extracts plain text from HTML and wiki storage markup.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Normalise converts an HTML document to plain text.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	data, err := raw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	content, err := ExtractText(string(data))
	if err != nil {
		return nil, err
	}

	return &driven.NormaliseResult{
		Content: content,
		Format:  driven.FormatText,
	}, nil
}

// Pre-compiled regular expressions for markup cleanup.
var (
	cdataSection = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	multiSpaces  = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// Elements whose content starts and ends a paragraph.
var blockElements = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "table": true, "tr": true, "pre": true, "blockquote": true,
	"section": true, "article": true, "hr": true,
	"ac:structured-macro": true, "ac:rich-text-body": true, "ac:plain-text-body": true,
	"ac:task": true, "ac:layout-section": true, "ac:layout-cell": true,
}

// Elements whose content never carries page text.
var droppedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true, "svg": true,
	"ac:parameter": true,
}

// ExtractText returns the readable text of HTML or storage markup.
// CDATA sections (code and noformat macro bodies) are kept as text.
func ExtractText(markup string) (string, error) {
	markup = cdataSection.ReplaceAllStringFunc(markup, func(section string) string {
		return html.EscapeString(cdataSection.FindStringSubmatch(section)[1])
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}

	var b strings.Builder
	writeText(doc.Selection, &b)
	return collapseWhitespace(b.String()), nil
}

// writeText appends the text of the selection's children, marking block boundaries.
func writeText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		name := goquery.NodeName(child)
		switch {
		case name == "#text":
			b.WriteString(child.Text())
		case name == "#comment" || droppedElements[name]:
		case name == "br":
			b.WriteString("\n")
		case name == "td" || name == "th":
			writeText(child, b)
			b.WriteString(" ")
		case blockElements[name]:
			b.WriteString("\n\n")
			writeText(child, b)
			b.WriteString("\n\n")
		default:
			writeText(child, b)
		}
	})
}

// collapseWhitespace trims every line and keeps at most one blank line between paragraphs.
func collapseWhitespace(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
