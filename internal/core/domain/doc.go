// Package domain defines the core business entities for wikisync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDocument: A page read from the wiki, with its attachments
//   - IndexRecord: One chunk of a page or attachment as stored in the index
//   - Changeset: The upsert/remove split of one source snapshot
//   - Pass: The per-pass context carrying diagnostics and caches
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
