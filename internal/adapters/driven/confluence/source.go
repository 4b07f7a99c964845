package confluence

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.SourceProvider = (*Source)(nil)

// DefaultPageSize is the number of results requested per page of a listing.
const DefaultPageSize = 100

// Source lists and reads Confluence content.
type Source struct {
	client      *Client
	pageSize    int
	attachments bool
	tempDir     string
}

// SourceOption configures the Source.
type SourceOption func(*Source)

// WithPageSize sets the listing page size.
func WithPageSize(size int) SourceOption {
	return func(s *Source) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithAttachments enables listing the attachments of current pages.
func WithAttachments(enabled bool) SourceOption {
	return func(s *Source) {
		s.attachments = enabled
	}
}

// WithTempDir sets the directory attachments are downloaded to.
func WithTempDir(dir string) SourceOption {
	return func(s *Source) {
		s.tempDir = dir
	}
}

// NewSource creates a source provider over the client.
func NewSource(client *Client, opts ...SourceOption) *Source {
	s := &Source{
		client:   client,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDocuments returns every page of the selected spaces in any status.
func (s *Source) ListDocuments(ctx context.Context, spaceFilter []string) ([]domain.SourceDocument, error) {
	spaces, err := s.listSpaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}

	var docs []domain.SourceDocument
	for _, sp := range spaces {
		if len(spaceFilter) > 0 && !slices.Contains(spaceFilter, sp.Key) {
			continue
		}

		pages, err := s.listPages(ctx, sp.Key)
		if err != nil {
			return nil, fmt.Errorf("list pages of %s: %w", sp.Key, err)
		}
		logger.Debug("Space %s: %d pages", sp.Key, len(pages))

		for _, p := range pages {
			doc := s.toDocument(sp.Key, p)
			if s.attachments && !doc.Status.IsTerminal() {
				doc.Attachments, err = s.listAttachments(ctx, p.ID)
				if err != nil {
					return nil, fmt.Errorf("list attachments of %s: %w", p.ID, err)
				}
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// FetchBody returns the page body in storage format.
func (s *Source) FetchBody(ctx context.Context, documentID string) (string, error) {
	var c content
	params := url.Values{"expand": {"body.storage"}}
	if err := s.client.getJSON(ctx, "/rest/api/content/"+url.PathEscape(documentID), params, &c); err != nil {
		return "", fmt.Errorf("get page %s: %w", documentID, err)
	}
	if c.Body == nil {
		return "", nil
	}
	return c.Body.Storage.Value, nil
}

// DownloadAttachment streams the attachment to a temporary file.
func (s *Source) DownloadAttachment(ctx context.Context, attachment domain.Attachment) (string, error) {
	if attachment.DownloadPath == "" {
		return "", fmt.Errorf("%w: attachment %s has no download link", domain.ErrInvalidInput, attachment.ID)
	}

	resp, err := s.client.get(ctx, attachment.DownloadPath)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", attachment.ID, err)
	}
	defer resp.Body.Close()

	name := filepath.Join(s.dir(), "wikisync-"+uuid.NewString()+filepath.Ext(attachment.Title))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

// AttachmentExists reports whether the attachment is live.
// A missing or trashed attachment does not exist.
func (s *Source) AttachmentExists(ctx context.Context, attachmentID string) (bool, error) {
	var c content
	err := s.client.getJSON(ctx, "/rest/api/content/"+url.PathEscape(attachmentID), nil, &c)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get attachment %s: %w", attachmentID, err)
	}
	return !domain.ParseStatus(c.Status).IsTerminal(), nil
}

func (s *Source) dir() string {
	if s.tempDir != "" {
		return s.tempDir
	}
	return os.TempDir()
}

func (s *Source) listSpaces(ctx context.Context) ([]space, error) {
	var spaces []space
	for start := 0; ; {
		var list spaceList
		params := url.Values{
			"start": {strconv.Itoa(start)},
			"limit": {strconv.Itoa(s.pageSize)},
		}
		if err := s.client.getJSON(ctx, "/rest/api/space", params, &list); err != nil {
			return nil, err
		}
		spaces = append(spaces, list.Results...)
		if list.Links.Next == "" || len(list.Results) == 0 {
			return spaces, nil
		}
		start += len(list.Results)
	}
}

func (s *Source) listPages(ctx context.Context, spaceKey string) ([]content, error) {
	return s.listContent(ctx, "/rest/api/content", url.Values{
		"spaceKey": {spaceKey},
		"type":     {"page"},
		"status":   {"any"},
		"expand":   {"history,space,version"},
	})
}

func (s *Source) listAttachments(ctx context.Context, pageID string) ([]domain.Attachment, error) {
	results, err := s.listContent(ctx, "/rest/api/content/"+url.PathEscape(pageID)+"/child/attachment", url.Values{
		"expand": {"version,metadata,extensions"},
	})
	if err != nil {
		return nil, err
	}

	attachments := make([]domain.Attachment, 0, len(results))
	for _, c := range results {
		info := c.fileInfo()
		att := domain.Attachment{
			ID:           c.ID,
			PageID:       pageID,
			Title:        c.Title,
			MediaType:    info.MediaType,
			Comment:      info.Comment,
			DownloadPath: c.Links.Download,
			URL:          s.client.BaseURL() + c.Links.WebUI,
		}
		if c.Version != nil {
			att.Version = c.Version.When.UTC()
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

// listContent follows start/limit pagination until no next link remains.
func (s *Source) listContent(ctx context.Context, apiPath string, params url.Values) ([]content, error) {
	var all []content
	for start := 0; ; {
		params.Set("start", strconv.Itoa(start))
		params.Set("limit", strconv.Itoa(s.pageSize))

		var list contentList
		if err := s.client.getJSON(ctx, apiPath, params, &list); err != nil {
			return nil, err
		}
		all = append(all, list.Results...)
		if list.Links.Next == "" || len(list.Results) == 0 {
			return all, nil
		}
		start += len(list.Results)
	}
}

func (s *Source) toDocument(spaceKey string, c content) domain.SourceDocument {
	if c.Space != nil && c.Space.Key != "" {
		spaceKey = c.Space.Key
	}
	return domain.SourceDocument{
		ID:           c.ID,
		SpaceKey:     spaceKey,
		Title:        c.Title,
		LastModified: c.lastModified(),
		Status:       domain.ParseStatus(c.Status),
		URL:          s.pageURL(spaceKey, c.Links.WebUI),
	}
}

// pageURL builds the display link from the last segment of the web UI path.
func (s *Source) pageURL(spaceKey, webUI string) string {
	webUI = strings.TrimRight(webUI, "/")
	if webUI == "" {
		return ""
	}
	return s.client.BaseURL() + "/display/" + spaceKey + "/" + path.Base(webUI)
}
