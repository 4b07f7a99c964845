// Package html provides Normaliser implementations for HTML and wiki storage markup.
//
// Normaliser strips tags, scripts and styles, keeps CDATA macro bodies as text
// and turns block elements into paragraph breaks. MarkdownNormaliser converts
// HTML into Markdown so that header sections survive for chunking.
package html
