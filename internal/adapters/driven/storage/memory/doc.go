// Package memory provides in-memory implementations of the search index,
// the wiki source and the configuration store. They back the MEMORY search
// type and the service tests.
package memory
