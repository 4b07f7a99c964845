// Package sections provides a processor that splits Markdown into header sections.
//
// Each ATX or setext heading up to MaxLevel starts a new chunk. The heading
// line stays in the chunk and the heading hierarchy is recorded in the chunk
// metadata under "Header 1", "Header 2" and "Header 3".
package sections

import (
	"context"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultMaxLevel is the deepest heading level that starts a section.
const DefaultMaxLevel = 3

// Processor splits Markdown text at headings.
type Processor struct {
	maxLevel int
	markdown goldmark.Markdown
}

// Option configures the sections processor.
type Option func(*Processor)

// WithMaxLevel sets the deepest heading level that starts a section.
func WithMaxLevel(level int) Option {
	return func(p *Processor) {
		if level >= 1 && level <= 6 {
			p.maxLevel = level
		}
	}
}

// New creates a new sections processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxLevel: DefaultMaxLevel,
		markdown: goldmark.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sections"
}

// HeaderKey returns the metadata key for a heading level.
func HeaderKey(level int) string {
	return "Header " + strconv.Itoa(level)
}

type cut struct {
	offset int
	level  int
	title  string
}

// Process creates one chunk per section. Input chunks are ignored.
func (p *Processor) Process(_ context.Context, content string, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	source := []byte(content)
	root := p.markdown.Parser().Parse(text.NewReader(source))

	var cuts []cut
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Level > p.maxLevel || heading.Lines().Len() == 0 {
			continue
		}
		first := heading.Lines().At(0)
		cuts = append(cuts, cut{
			offset: lineStart(source, first.Start),
			level:  heading.Level,
			title:  headingTitle(heading, source),
		})
	}

	var chunks []domain.Chunk
	headers := make(map[int]string)
	emit := func(start, end int) {
		body := strings.TrimSpace(string(source[start:end]))
		if body == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Content:  body,
			Position: len(chunks),
			Metadata: headerMetadata(headers),
		})
	}

	start := 0
	for _, c := range cuts {
		emit(start, c.offset)
		for level := range headers {
			if level >= c.level {
				delete(headers, level)
			}
		}
		headers[c.level] = c.title
		start = c.offset
	}
	emit(start, len(source))

	return chunks, nil
}

func headingTitle(heading *ast.Heading, source []byte) string {
	var b strings.Builder
	lines := heading.Lines()
	for i := 0; i < lines.Len(); i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimSpace(b.String())
}

func headerMetadata(headers map[int]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	meta := make(map[string]string, len(headers))
	for level, title := range headers {
		meta[HeaderKey(level)] = title
	}
	return meta
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}
