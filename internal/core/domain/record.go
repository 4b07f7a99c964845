package domain

import (
	"strconv"
	"strings"
	"time"
)

// ItemTypePage marks records derived from page bodies.
const ItemTypePage = "page"

// attachmentItemPrefix prefixes the media type on attachment-derived records.
const attachmentItemPrefix = "attachment:"

// PlaceholderChunk is written when a page yields no text, so the chunk-0
// existence probe still finds the page on the next pass.
const PlaceholderChunk = "-------"

// AttachmentItemType returns the item type for records derived from an attachment.
func AttachmentItemType(mediaType string) string {
	return attachmentItemPrefix + mediaType
}

// IsAttachmentItemType reports whether the item type belongs to an attachment record.
func IsAttachmentItemType(itemType string) bool {
	return strings.HasPrefix(itemType, attachmentItemPrefix)
}

// RecordID builds the index key for chunk position of a page or attachment.
func RecordID(itemID string, position int) string {
	return itemID + "_" + strconv.Itoa(position)
}

// IndexRecord is one chunk as persisted in the search index.
// All records sharing a DocumentID belong to one version of one source item.
type IndexRecord struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"document_id"`
	Space             string    `json:"space"`
	ItemType          string    `json:"item_type"`
	AttachmentPageID  string    `json:"attachment_page_id"`
	AttachmentPageURL string    `json:"attachment_page_url"`
	Title             string    `json:"title"`
	TitleVector       []float32 `json:"titleVector"`
	Chunk             string    `json:"chunk"`
	ChunkVector       []float32 `json:"chunkVector"`
	LastModifiedDate  time.Time `json:"last_modified_date"`
	LastIndexedDate   time.Time `json:"last_indexed_date"`
	URL               string    `json:"url"`
}

// IndexMetadata is what the index remembers about the last indexing of an item.
type IndexMetadata struct {
	LastIndexedDate  time.Time
	LastModifiedDate time.Time
}

// RecordFilter selects records in the index. Empty fields are ignored;
// set fields are combined with AND.
type RecordFilter struct {
	DocumentID       string
	AttachmentPageID string
	Space            string

	// ExcludeItemType drops records of this item type.
	ExcludeItemType string
}

// IsEmpty reports whether the filter would match every record.
func (f RecordFilter) IsEmpty() bool {
	return f.DocumentID == "" && f.AttachmentPageID == "" && f.Space == "" && f.ExcludeItemType == ""
}

// Matches reports whether the record satisfies the filter.
func (f RecordFilter) Matches(r IndexRecord) bool {
	if f.DocumentID != "" && r.DocumentID != f.DocumentID {
		return false
	}
	if f.AttachmentPageID != "" && r.AttachmentPageID != f.AttachmentPageID {
		return false
	}
	if f.Space != "" && r.Space != f.Space {
		return false
	}
	if f.ExcludeItemType != "" && r.ItemType == f.ExcludeItemType {
		return false
	}
	return true
}
