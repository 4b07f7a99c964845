// Package vector provides approximate nearest neighbour search over chunk
// vectors using an in-process HNSW graph (coder/hnsw).
//
// The graph is held in memory only. Owners rebuild it from their record store
// when they open.
package vector
