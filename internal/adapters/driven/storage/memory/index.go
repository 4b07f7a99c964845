package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// Index is an in-memory implementation of driven.SearchIndex.
type Index struct {
	mu      sync.RWMutex
	records map[string]domain.IndexRecord
	created bool
}

// NewIndex creates a new in-memory index.
func NewIndex() *Index {
	return &Index{
		records: make(map[string]domain.IndexRecord),
	}
}

// GetMetadata returns the dates recorded on a record.
func (x *Index) GetMetadata(_ context.Context, recordID string) (*domain.IndexMetadata, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.records[recordID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.IndexMetadata{
		LastIndexedDate:  rec.LastIndexedDate,
		LastModifiedDate: rec.LastModifiedDate,
	}, nil
}

// Get returns a record by ID.
func (x *Index) Get(recordID string) (domain.IndexRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.records[recordID]
	return rec, ok
}

// Search returns every record matching the filter, ordered by ID.
func (x *Index) Search(_ context.Context, filter domain.RecordFilter) ([]domain.IndexRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var result []domain.IndexRecord
	for _, rec := range x.records {
		if filter.Matches(rec) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Upsert creates or replaces one record.
func (x *Index) Upsert(_ context.Context, record domain.IndexRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.records[record.ID] = record
	return nil
}

// Delete removes records by ID.
func (x *Index) Delete(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.records, id)
	}
	return nil
}

// CreateOrUpdateSchema marks the index as created.
func (x *Index) CreateOrUpdateSchema(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.created = true
	return nil
}

// Created reports whether the schema was created.
func (x *Index) Created() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.created
}

// Drop removes every record.
func (x *Index) Drop(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.records = make(map[string]domain.IndexRecord)
	x.created = false
	return nil
}

// Len returns the number of records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Query scores records by the share of query terms they contain plus the
// cosine similarity of their chunk vector to the query vector.
func (x *Index) Query(_ context.Context, query domain.Query) ([]domain.SearchHit, error) {
	terms := strings.Fields(strings.ToLower(query.Text))

	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []domain.SearchHit
	for _, rec := range x.records {
		if query.Space != "" && rec.Space != query.Space {
			continue
		}
		score := termScore(terms, rec.Title+" "+rec.Chunk)
		if query.Vector != nil && rec.ChunkVector != nil {
			score += cosine(query.Vector, rec.ChunkVector)
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, domain.SearchHit{Record: rec, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	if query.Limit > 0 && len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}
	return hits, nil
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

func termScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	matched := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
