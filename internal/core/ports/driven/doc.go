// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for a sync pass to run:
//
//   - SourceProvider: Lists pages and downloads attachments from the wiki
//   - SearchIndex: Persists and queries index records (Azure AI Search, local, memory)
//   - EmbeddingService: Generates the title and chunk vectors stored with each record
//   - Chunker: Splits page markup into ordered text chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - AttachmentRegistry: Extracts text from attachments. Without it, attachments are ignored.
//
// # Building Blocks
//
// Adapters compose these smaller ports:
//
//   - Normaliser: Turns raw markup or file content into text
//   - PostProcessor: Chunking steps chained in a pipeline
//   - SearchEngine: Full-text search used by the local index (Bleve)
//   - VectorIndex: Vector search used by the local index (HNSW)
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driven
