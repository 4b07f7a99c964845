package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/keyword"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/vector"
	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

const (
	// KeywordDir is the Bleve index directory inside the data directory.
	KeywordDir = "keyword.bleve"

	// rrfK is the reciprocal rank fusion constant.
	rrfK = 60

	// candidateFactor widens each ranking before fusion.
	candidateFactor = 4
)

// errDropped is returned when the index was dropped and not re-created.
var errDropped = errors.New("local index was dropped")

// Verify interface compliance at compile time.
var _ driven.SearchIndex = (*Index)(nil)

// Index is a driven.SearchIndex stored under one directory.
type Index struct {
	dir        string
	dimensions int

	mu      sync.RWMutex
	records *sqlite.Store
	keyword *keyword.Engine
	vectors *vector.Index
}

// Open opens or creates the index in dir. Vectors must have the given size;
// 0 accepts the size of the first vector.
func Open(ctx context.Context, dir string, dimensions int) (*Index, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: local index data directory is required", domain.ErrConfigInvalid)
	}
	x := &Index{dir: dir, dimensions: dimensions}
	if err := x.open(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

// open builds the three stores. Callers hold mu or own x exclusively.
func (x *Index) open(ctx context.Context) error {
	records, err := sqlite.NewStore(x.dir)
	if err != nil {
		return err
	}

	kw, err := keyword.New(filepath.Join(x.dir, KeywordDir))
	if err != nil {
		records.Close()
		return err
	}

	vectors := vector.New(x.dimensions)
	loaded := 0
	err = records.ChunkVectors(ctx, func(id string, v []float32) error {
		var dimErr *vector.DimensionError
		if err := vectors.Add(ctx, id, v); errors.As(err, &dimErr) {
			logger.Warn("Skipping vector of %s: %v", id, err)
			return nil
		} else if err != nil {
			return err
		}
		loaded++
		return nil
	})
	if err != nil {
		kw.Close()
		records.Close()
		return fmt.Errorf("loading vectors: %w", err)
	}

	x.records, x.keyword, x.vectors = records, kw, vectors
	if err := x.reconcileKeyword(ctx); err != nil {
		x.closeStores()
		return err
	}

	logger.Debug("Opened local index at %s with %d vectors", x.dir, loaded)
	return nil
}

// reconcileKeyword re-indexes every record when the keyword index is out of
// step with the record store, e.g. after a crash between the two writes.
func (x *Index) reconcileKeyword(ctx context.Context) error {
	want, err := x.records.Count(ctx)
	if err != nil {
		return err
	}
	have, err := x.keyword.Count()
	if err != nil {
		return err
	}
	if uint64(want) == have {
		return nil
	}

	logger.Warn("Keyword index has %d records, store has %d; rebuilding", have, want)
	path := filepath.Join(x.dir, KeywordDir)
	if err := x.keyword.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	kw, err := keyword.New(path)
	if err != nil {
		return err
	}
	x.keyword = kw

	all, err := x.records.Search(ctx, domain.RecordFilter{})
	if err != nil {
		return err
	}
	for _, r := range all {
		if err := x.keyword.Index(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) stores() (*sqlite.Store, *keyword.Engine, *vector.Index, error) {
	if x.records == nil {
		return nil, nil, nil, errDropped
	}
	return x.records, x.keyword, x.vectors, nil
}

// GetMetadata returns the dates of a record.
func (x *Index) GetMetadata(ctx context.Context, recordID string) (*domain.IndexMetadata, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records, _, _, err := x.stores()
	if err != nil {
		return nil, err
	}
	r, err := records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return &domain.IndexMetadata{
		LastIndexedDate:  r.LastIndexedDate,
		LastModifiedDate: r.LastModifiedDate,
	}, nil
}

// Search returns the records matching the filter.
func (x *Index) Search(ctx context.Context, filter domain.RecordFilter) ([]domain.IndexRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records, _, _, err := x.stores()
	if err != nil {
		return nil, err
	}
	return records.Search(ctx, filter)
}

// Upsert writes the record to all three stores. A record whose vectors do
// not fit the index is rejected before anything is written.
func (x *Index) Upsert(ctx context.Context, record domain.IndexRecord) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records, kw, vectors, err := x.stores()
	if err != nil {
		return err
	}
	if err := checkDimensions(vectors.Dimensions(), record); err != nil {
		return err
	}
	if err := records.Put(ctx, record); err != nil {
		return err
	}
	if err := kw.Index(ctx, record); err != nil {
		return err
	}
	if len(record.ChunkVector) == 0 {
		return vectors.Delete(ctx, record.ID)
	}
	return vectors.Add(ctx, record.ID, record.ChunkVector)
}

// checkDimensions verifies both vectors of a record against the index size.
// With size 0 the first vector of the record sets it.
func checkDimensions(size int, r domain.IndexRecord) error {
	for _, v := range [][]float32{r.ChunkVector, r.TitleVector} {
		if len(v) == 0 {
			continue
		}
		if size == 0 {
			size = len(v)
		}
		if len(v) != size {
			return fmt.Errorf("%w: record %s: %w", domain.ErrInvalidInput, r.ID,
				&vector.DimensionError{Expected: size, Got: len(v)})
		}
	}
	return nil
}

// Delete removes records from all three stores.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	records, kw, vectors, err := x.stores()
	if err != nil {
		return err
	}
	if err := records.Delete(ctx, ids); err != nil {
		return err
	}
	if err := kw.Delete(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := vectors.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrUpdateSchema re-creates the stores after a Drop. The schema itself
// is applied by migrations when the store opens.
func (x *Index) CreateOrUpdateSchema(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.records != nil {
		return nil
	}
	return x.open(ctx)
}

// Drop closes the stores and removes the data directory.
func (x *Index) Drop(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.closeStores(); err != nil {
		return err
	}
	if err := os.RemoveAll(x.dir); err != nil {
		return fmt.Errorf("removing %s: %w", x.dir, err)
	}
	logger.Info("Removed local index at %s", x.dir)
	return nil
}

// ranked is one candidate during fusion.
type ranked struct {
	id    string
	score float64
}

// Query ranks records by keyword and vector similarity and fuses both lists.
// When one of the two searches fails the other is used alone.
func (x *Index) Query(ctx context.Context, query domain.Query) ([]domain.SearchHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records, kw, vectors, err := x.stores()
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	candidates := limit * candidateFactor

	var keywordHits, vectorHits []ranked
	var keywordErr, vectorErr error
	if query.Text != "" {
		var hits []driven.SearchHit
		hits, keywordErr = kw.Search(ctx, query.Text, query.Space, candidates)
		for _, h := range hits {
			keywordHits = append(keywordHits, ranked{id: h.RecordID, score: h.Score})
		}
	}
	if len(query.Vector) > 0 {
		vectorHits, vectorErr = vectorCandidates(ctx, records, vectors, query.Vector, query.Space, candidates)
	}

	var merged []ranked
	switch {
	case keywordErr != nil && vectorErr != nil:
		return nil, fmt.Errorf("hybrid search: keyword=%w, vector=%w", keywordErr, vectorErr)
	case keywordErr != nil:
		logger.Warn("Keyword search failed, using vector results only: %v", keywordErr)
		merged = vectorHits
	case vectorErr != nil:
		logger.Warn("Vector search failed, using keyword results only: %v", vectorErr)
		merged = keywordHits
	case query.Text == "":
		merged = vectorHits
	case len(query.Vector) == 0:
		merged = keywordHits
	default:
		merged = reciprocalRankFusion(keywordHits, vectorHits, rrfK)
	}

	return hydrate(ctx, records, merged, query.Space, limit)
}

// vectorCandidates returns up to want nearest records inside space. The graph
// knows nothing about spaces, so the search widens until enough records of
// the space are found or the graph is exhausted.
func vectorCandidates(
	ctx context.Context,
	records *sqlite.Store,
	vectors *vector.Index,
	query []float32,
	space string,
	want int,
) ([]ranked, error) {
	for k := want; ; k *= 2 {
		hits, err := vectors.Search(ctx, query, k)
		if err != nil {
			return nil, err
		}

		inSpace := hits
		if space != "" {
			if inSpace, err = filterSpace(ctx, records, hits, space); err != nil {
				return nil, err
			}
		}
		if len(inSpace) >= want || len(hits) < k || k >= vectors.Len() {
			out := make([]ranked, 0, min(len(inSpace), want))
			for _, h := range inSpace[:min(len(inSpace), want)] {
				out = append(out, ranked{id: h.RecordID, score: h.Similarity})
			}
			return out, nil
		}
	}
}

func filterSpace(ctx context.Context, records *sqlite.Store, hits []driven.VectorHit, space string) ([]driven.VectorHit, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.RecordID
	}
	found, err := records.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var kept []driven.VectorHit
	for _, h := range hits {
		if rec, ok := found[h.RecordID]; ok && rec.Space == space {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// hydrate loads the records of the ranked IDs, drops records outside the
// space and truncates to limit.
func hydrate(ctx context.Context, records *sqlite.Store, merged []ranked, space string, limit int) ([]domain.SearchHit, error) {
	ids := make([]string, len(merged))
	for i, r := range merged {
		ids[i] = r.id
	}
	found, err := records.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, min(limit, len(merged)))
	for _, r := range merged {
		rec, ok := found[r.id]
		if !ok {
			continue
		}
		if space != "" && rec.Space != space {
			continue
		}
		hits = append(hits, domain.SearchHit{Record: rec, Score: r.score})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// reciprocalRankFusion merges two ranked lists. k keeps top ranks from dominating.
func reciprocalRankFusion(list1, list2 []ranked, k int) []ranked {
	scores := make(map[string]float64)
	var order []string

	for _, list := range [][]ranked{list1, list2} {
		for rank, r := range list {
			if _, seen := scores[r.id]; !seen {
				order = append(order, r.id)
			}
			scores[r.id] += 1.0 / float64(k+rank+1)
		}
	}

	results := make([]ranked, 0, len(order))
	for _, id := range order {
		results = append(results, ranked{id: id, score: scores[id]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	return results
}

// Close closes the stores.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closeStores()
}

func (x *Index) closeStores() error {
	if x.records == nil {
		return nil
	}
	errs := errors.Join(x.vectors.Close(), x.keyword.Close(), x.records.Close())
	x.records, x.keyword, x.vectors = nil, nil, nil
	return errs
}
