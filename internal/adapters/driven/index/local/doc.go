// Package local is an embedded search index kept in a data directory.
//
// Records live in SQLite, which is the source of truth. A Bleve index serves
// keyword queries and an in-memory HNSW graph, rebuilt from SQLite on open,
// serves vector queries. Hybrid queries merge both rankings with reciprocal
// rank fusion.
package local
