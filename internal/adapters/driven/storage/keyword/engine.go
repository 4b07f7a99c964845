package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// titleBoost weights title matches over chunk matches.
const titleBoost = 2.0

// errClosed is returned by operations on a closed engine.
var errClosed = errors.New("keyword index is closed")

// Verify interface compliance at compile time.
var _ driven.SearchEngine = (*Engine)(nil)

// Engine is a driven.SearchEngine backed by Bleve.
type Engine struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// document is the indexed shape of a record.
type document struct {
	Title string `json:"title"`
	Chunk string `json:"chunk"`
	Space string `json:"space"`
}

// New opens the index at path, creating it when missing.
// An empty path creates an in-memory index.
func New(path string) (*Engine, error) {
	indexMapping := newIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", path, err)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			logger.Debug("Creating keyword index at %s", path)
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}

	return &Engine{index: idx, path: path}, nil
}

func newIndexMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false

	space := bleve.NewTextFieldMapping()
	space.Analyzer = keywordanalyzer.Name
	space.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("chunk", text)
	doc.AddFieldMappingsAt("space", space)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Index adds or replaces a record.
func (e *Engine) Index(_ context.Context, record domain.IndexRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errClosed
	}

	doc := document{Title: record.Title, Chunk: record.Chunk, Space: record.Space}
	if err := e.index.Index(record.ID, doc); err != nil {
		return fmt.Errorf("indexing %s: %w", record.ID, err)
	}
	return nil
}

// Delete removes records. Unknown IDs are ignored.
func (e *Engine) Delete(_ context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errClosed
	}

	batch := e.index.NewBatch()
	for _, id := range recordIDs {
		batch.Delete(id)
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// Search matches the query against titles and chunks and returns record IDs by BM25 score.
func (e *Engine) Search(ctx context.Context, text, space string, limit int) ([]driven.SearchHit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, errClosed
	}

	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []driven.SearchHit{}, nil
	}

	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(titleBoost)
	chunk := bleve.NewMatchQuery(text)
	chunk.SetField("chunk")

	var q query.Query = bleve.NewDisjunctionQuery(title, chunk)
	if space != "" {
		spaceQuery := bleve.NewTermQuery(space)
		spaceQuery.SetField("space")
		q = bleve.NewConjunctionQuery(q, spaceQuery)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]driven.SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, driven.SearchHit{RecordID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Count returns the number of indexed records.
func (e *Engine) Count() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return 0, errClosed
	}
	return e.index.DocCount()
}

// Close closes the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
