package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Graph parameters.
const (
	DefaultM        = 16
	DefaultEfSearch = 64
)

// errClosed is returned by operations on a closed index.
var errClosed = errors.New("vector index is closed")

// DimensionError reports a vector whose length does not match the index.
type DimensionError struct {
	Expected int
	Got      int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector has %d dimensions, index expects %d", e.Got, e.Expected)
}

// Verify interface compliance at compile time.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a driven.VectorIndex backed by an HNSW graph with cosine distance.
//
// Deletes are lazy: the node stays in the graph but loses its ID mapping and
// is filtered from results.
type Index struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	closed  bool
}

// New creates an empty index. With dimensions 0 the first vector added fixes the size.
func New(dimensions int) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = DefaultM
	graph.EfSearch = DefaultEfSearch
	graph.Ml = 0.25

	return &Index{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}
}

// Add inserts or replaces the vector of a record. Empty vectors are ignored.
func (x *Index) Add(_ context.Context, recordID string, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return errClosed
	}
	if x.dimensions == 0 {
		x.dimensions = len(embedding)
	}
	if len(embedding) != x.dimensions {
		return &DimensionError{Expected: x.dimensions, Got: len(embedding)}
	}

	if key, ok := x.idMap[recordID]; ok {
		delete(x.keyMap, key)
	}

	key := x.nextKey
	x.nextKey++
	x.graph.Add(hnsw.MakeNode(key, normalize(embedding)))
	x.idMap[recordID] = key
	x.keyMap[key] = recordID
	return nil
}

// Delete removes the vector of a record.
func (x *Index) Delete(_ context.Context, recordID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return errClosed
	}
	if key, ok := x.idMap[recordID]; ok {
		delete(x.keyMap, key)
		delete(x.idMap, recordID)
	}
	return nil
}

// Search returns up to k records nearest to the query.
func (x *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, errClosed
	}
	if k <= 0 || len(x.idMap) == 0 {
		return []driven.VectorHit{}, nil
	}
	if len(query) != x.dimensions {
		return nil, &DimensionError{Expected: x.dimensions, Got: len(query)}
	}

	q := normalize(query)
	orphans := x.graph.Len() - len(x.idMap)
	nodes := x.graph.Search(q, min(k+orphans, x.graph.Len()))

	hits := make([]driven.VectorHit, 0, len(nodes))
	for _, node := range nodes {
		id, ok := x.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := x.graph.Distance(q, node.Value)
		hits = append(hits, driven.VectorHit{RecordID: id, Similarity: float64(1 - distance/2)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of live vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.idMap)
}

// Dimensions returns the vector size, or 0 before the first vector.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimensions
}

// Close releases the graph.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.closed = true
	x.graph = nil
	return nil
}

// normalize returns a unit-length copy of v.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}
