package driven

import (
	"context"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// SourceProvider reads pages and attachments from the wiki.
type SourceProvider interface {
	// ListDocuments returns every page of the selected spaces, in any status.
	// An empty filter selects all spaces visible to the credentials.
	// Attachments are populated when the provider was built with attachments enabled.
	ListDocuments(ctx context.Context, spaceFilter []string) ([]domain.SourceDocument, error)

	// FetchBody returns the page body in the wiki's storage markup.
	FetchBody(ctx context.Context, documentID string) (string, error)

	// DownloadAttachment writes the attachment to a temporary file and returns its path.
	// The caller removes the file.
	DownloadAttachment(ctx context.Context, attachment domain.Attachment) (string, error)

	// AttachmentExists reports whether the attachment is still live in the wiki.
	AttachmentExists(ctx context.Context, attachmentID string) (bool, error)
}
