package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.SourceProvider = (*Source)(nil)

// Source is an in-memory wiki.
type Source struct {
	mu       sync.RWMutex
	pages    map[string]domain.SourceDocument
	bodies   map[string]string
	files    map[string][]byte
	failures map[string]error
}

// NewSource creates an empty in-memory wiki.
func NewSource() *Source {
	return &Source{
		pages:    make(map[string]domain.SourceDocument),
		bodies:   make(map[string]string),
		files:    make(map[string][]byte),
		failures: make(map[string]error),
	}
}

// PutPage stores or replaces a page and its body. Attachments already added
// to the page are kept when doc carries none.
func (s *Source) PutPage(doc domain.SourceDocument, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.pages[doc.ID]; ok && len(doc.Attachments) == 0 {
		doc.Attachments = prev.Attachments
	}
	s.pages[doc.ID] = doc
	s.bodies[doc.ID] = body
}

// SetStatus changes the status of a page.
func (s *Source) SetStatus(pageID string, status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.pages[pageID]; ok {
		doc.Status = status
		s.pages[pageID] = doc
	}
}

// DeletePage removes a page and its attachments entirely.
func (s *Source) DeletePage(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.pages[pageID]; ok {
		for _, att := range doc.Attachments {
			delete(s.files, att.ID)
		}
	}
	delete(s.pages, pageID)
	delete(s.bodies, pageID)
}

// PutAttachment adds or replaces an attachment on its parent page.
func (s *Source) PutAttachment(att domain.Attachment, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.pages[att.PageID]
	if !ok {
		return fmt.Errorf("page %s: %w", att.PageID, domain.ErrNotFound)
	}
	doc.Attachments = slices.DeleteFunc(slices.Clone(doc.Attachments), func(a domain.Attachment) bool {
		return a.ID == att.ID
	})
	doc.Attachments = append(doc.Attachments, att)
	s.pages[att.PageID] = doc
	s.files[att.ID] = content
	return nil
}

// DeleteAttachment removes an attachment from its page.
func (s *Source) DeleteAttachment(attachmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, doc := range s.pages {
		n := len(doc.Attachments)
		doc.Attachments = slices.DeleteFunc(slices.Clone(doc.Attachments), func(a domain.Attachment) bool {
			return a.ID == attachmentID
		})
		if len(doc.Attachments) != n {
			s.pages[id] = doc
		}
	}
	delete(s.files, attachmentID)
}

// FailOn makes every call naming id return err. A nil err clears the failure.
func (s *Source) FailOn(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, id)
		return
	}
	s.failures[id] = err
}

// ListDocuments returns the pages of the selected spaces ordered by ID.
func (s *Source) ListDocuments(_ context.Context, spaceFilter []string) ([]domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.SourceDocument
	for _, doc := range s.pages {
		if len(spaceFilter) > 0 && !slices.Contains(spaceFilter, doc.SpaceKey) {
			continue
		}
		doc.Attachments = slices.Clone(doc.Attachments)
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// FetchBody returns the stored body of a page.
func (s *Source) FetchBody(_ context.Context, documentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures[documentID]; err != nil {
		return "", err
	}
	body, ok := s.bodies[documentID]
	if !ok {
		return "", fmt.Errorf("page %s: %w", documentID, domain.ErrNotFound)
	}
	return body, nil
}

// DownloadAttachment writes the attachment content to a temporary file.
func (s *Source) DownloadAttachment(_ context.Context, attachment domain.Attachment) (string, error) {
	s.mu.RLock()
	err := s.failures[attachment.ID]
	content, ok := s.files[attachment.ID]
	s.mu.RUnlock()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attachment %s: %w", attachment.ID, domain.ErrNotFound)
	}

	f, err := os.CreateTemp("", "wikisync-*"+filepath.Ext(attachment.Title))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), nil
}

// AttachmentExists reports whether the attachment is still on a page.
func (s *Source) AttachmentExists(_ context.Context, attachmentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures[attachmentID]; err != nil {
		return false, err
	}
	_, ok := s.files[attachmentID]
	return ok, nil
}
