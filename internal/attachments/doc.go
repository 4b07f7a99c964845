// Package attachments maps attachment media types to text extraction handlers.
//
// The registry is built once from configuration. Each handler kind pairs a
// normaliser with a chunking pipeline:
//
//   - pdf: pdfcpu content extraction, then the recursive splitter
//   - docx: WordprocessingML paragraphs, then the recursive splitter
//   - markdown: header sections, long sections split again
//   - html: converted to Markdown, then as markdown
//   - text: the recursive splitter
//
// Extraction failures are logged and yield no chunks. They never abort a pass.
package attachments
