package domain

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a page in the source system.
type Status string

// Page statuses. Confluence reports live pages as "current".
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusTrashed  Status = "trashed"
	StatusDeleted  Status = "deleted"
)

// ParseStatus maps a source status string to a Status.
// Unknown values are treated as active.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "archived":
		return StatusArchived
	case "trashed":
		return StatusTrashed
	case "deleted":
		return StatusDeleted
	default:
		return StatusActive
	}
}

// IsTerminal reports whether documents in this state must be removed from the index.
func (s Status) IsTerminal() bool {
	return s == StatusArchived || s == StatusTrashed || s == StatusDeleted
}

// SourceDocument is a page as listed by the source system.
// It is treated as an immutable snapshot for the duration of one pass.
type SourceDocument struct {
	// ID is unique per source.
	ID string

	// SpaceKey identifies the space the page belongs to.
	SpaceKey string

	// Title is the page title.
	Title string

	// LastModified is the time of the latest page version (UTC).
	LastModified time.Time

	// Status is the lifecycle state.
	Status Status

	// URL is the human-facing link to the page.
	URL string

	// Attachments lists the files attached to the page.
	// Empty when attachment handling is disabled.
	Attachments []Attachment
}

// Attachment is a binary file nested under a page.
type Attachment struct {
	// ID is unique across the source and used as an independent index key.
	ID string

	// PageID links the attachment to its parent page.
	PageID string

	// Title is the file name shown in the wiki.
	Title string

	// MediaType is the MIME type reported by the source.
	MediaType string

	// Comment is the optional comment attached to the upload.
	Comment string

	// DownloadPath is the source-relative download link.
	// Its modificationDate query parameter carries the last-modified time.
	DownloadPath string

	// URL is the human-facing link to the attachment page.
	URL string

	// Version is the attachment version timestamp, used when the
	// download link carries no modification date.
	Version time.Time
}

// LastModified derives the attachment's modification time from its download descriptor.
// Returns false when neither the descriptor nor the version carries a time.
func (a Attachment) LastModified() (time.Time, bool) {
	if t, ok := modificationDate(a.DownloadPath); ok {
		return t, true
	}
	if !a.Version.IsZero() {
		return a.Version.UTC(), true
	}
	return time.Time{}, false
}

// DisplayTitle returns the title with the upload comment appended when present.
func (a Attachment) DisplayTitle() string {
	if a.Comment == "" {
		return a.Title
	}
	return a.Title + " - " + a.Comment
}

func modificationDate(downloadPath string) (time.Time, bool) {
	if downloadPath == "" {
		return time.Time{}, false
	}
	u, err := url.Parse(downloadPath)
	if err != nil {
		return time.Time{}, false
	}
	raw := u.Query().Get("modificationDate")
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Chunk is one ordered text segment produced by a chunker or attachment handler.
type Chunk struct {
	// Content is the chunk text.
	Content string

	// Position is the ordinal position within the source text.
	Position int

	// Metadata contains handler-specific key-value pairs (e.g. section headers).
	Metadata map[string]string
}
