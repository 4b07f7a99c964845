package domain

import (
	"fmt"
	"os"
)

// RawDocument is content handed to a normaliser before text extraction.
// Either Content or Path is set; Path points at a downloaded file.
type RawDocument struct {
	// URI is the original location, used in log messages.
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Path is a local file holding the content.
	Path string
}

// Bytes returns the content, reading it from Path when Content is empty.
func (r *RawDocument) Bytes() ([]byte, error) {
	if r.Content != nil || r.Path == "" {
		return r.Content, nil
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.Path, err)
	}
	return data, nil
}
