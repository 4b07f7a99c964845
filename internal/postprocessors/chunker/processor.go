// Package chunker provides a recursive text splitting processor.
//
// Text is split on the coarsest separator that occurs in it (paragraphs,
// then lines, then words, then characters) and the pieces are merged back
// into chunks of at most ChunkSize runes that share up to Overlap runes
// with their predecessor.
package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Processor splits text into overlapping chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy.
// The empty separator is always appended so that splitting terminates.
func WithSeparators(separators ...string) Option {
	return func(p *Processor) {
		if len(separators) == 0 {
			return
		}
		seps := append([]string(nil), separators...)
		if seps[len(seps)-1] != "" {
			seps = append(seps, "")
		}
		p.separators = seps
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the maximum chunk length in runes.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the overlap between consecutive chunks in runes.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits text into chunks. When chunks from a previous step are given,
// each one longer than the chunk size is split again and keeps its metadata.
// Positions are renumbered from 0.
func (p *Processor) Process(ctx context.Context, text string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if chunks == nil {
		return p.toChunks(p.Split(text), nil), nil
	}

	var out []domain.Chunk
	for _, in := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.toChunks(p.Split(in.Content), in.Metadata)...)
	}
	for i := range out {
		out[i].Position = i
	}
	return out, nil
}

func (p *Processor) toChunks(pieces []string, metadata map[string]string) []domain.Chunk {
	if len(pieces) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, domain.Chunk{
			Content:  piece,
			Position: i,
			Metadata: copyMetadata(metadata),
		})
	}
	return chunks
}

// Split returns the trimmed, non-empty chunks of text.
func (p *Processor) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return p.split(text, p.separators)
}

func (p *Processor) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.Split(text, separator)
	}

	var final, good []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < p.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, p.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			final = appendTrimmed(final, piece)
		} else {
			final = append(final, p.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, p.merge(good, separator)...)
	}
	return final
}

// merge joins small pieces into chunks no longer than chunkSize,
// carrying up to overlap runes of trailing pieces into the next chunk.
func (p *Processor) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var docs, current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinCost(current, sepLen) > p.chunkSize && len(current) > 0 {
			docs = appendTrimmed(docs, strings.Join(current, separator))
			for total > p.overlap || (total > 0 && total+n+joinCost(current, sepLen) > p.chunkSize) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	return appendTrimmed(docs, strings.Join(current, separator))
}

func joinCost(current []string, sepLen int) int {
	if len(current) > 0 {
		return sepLen
	}
	return 0
}

func appendTrimmed(docs []string, doc string) []string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return docs
	}
	return append(docs, doc)
}

func splitRunes(text string) []string {
	pieces := make([]string, 0, len(text))
	for _, r := range text {
		pieces = append(pieces, string(r))
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func copyMetadata(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
