// Package normalisers provides implementations of the Normaliser interface
// for the formats found in a wiki: page storage markup and attachment files.
// Each normaliser knows how to extract text content from specific MIME types.
//
// Normalisers are paired with a chunking pipeline by the attachment registry
// and the page chunker.
package normalisers
