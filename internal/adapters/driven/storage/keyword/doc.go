// Package keyword provides BM25 full-text search over index records using Bleve.
//
// Titles and chunks are analysed with the standard analyser; the space key is
// indexed verbatim so queries can be restricted to one space.
package keyword
