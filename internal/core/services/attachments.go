package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// attachmentRecords reconciles the attachments of a page being created or updated.
// Every attachment is remembered on the pass, even when it cannot be handled.
// dropped holds the attachments whose records were deleted with the page; one
// that cannot be rebuilt is reported. Only index connectivity failures are returned.
func (r *Reconciler) attachmentRecords(
	ctx context.Context,
	pass *domain.Pass,
	doc domain.SourceDocument,
	dropped map[string]bool,
) ([]domain.IndexRecord, error) {
	var records []domain.IndexRecord
	rebuilt := make(map[string]bool)
	defer func() {
		for _, att := range doc.Attachments {
			if dropped[att.ID] && !rebuilt[att.ID] {
				logger.Warn("Attachment %s (%s) of page %s left the index with the page and was not re-indexed",
					att.ID, att.Title, doc.ID)
			}
		}
	}()

	for _, att := range doc.Attachments {
		pass.RememberAttachment(doc.SpaceKey, att.ID)
		if r.attachments == nil || !r.attachments.CanHandle(att.MediaType) {
			continue
		}

		modified, ok := att.LastModified()
		if !ok {
			logger.Warn("Attachment %s (%s) has no modification date, skipping", att.ID, att.Title)
			continue
		}

		meta, err := r.metadata.Read(ctx, att.ID)
		created := errors.Is(err, domain.ErrNotFound)
		if err != nil && !created {
			return nil, err
		}
		if !created && !meta.LastModifiedDate.Before(modified) {
			continue
		}

		recs, err := r.buildAttachmentRecords(ctx, pass, doc, att, modified)
		if err != nil {
			if isFatal(ctx, err) {
				return nil, err
			}
			logger.Warn("Could not index attachment %s (%s): %v", att.ID, att.Title, err)
			continue
		}
		if len(recs) == 0 {
			continue
		}

		if !created {
			// Fewer chunks than before must not leave stale records behind.
			if _, err := r.removeItem(ctx, att.ID); err != nil {
				return nil, err
			}
			pass.Count(domain.CounterAttachmentUpdate, 1)
		} else {
			pass.Count(domain.CounterAttachmentCreate, 1)
		}
		rebuilt[att.ID] = true
		records = append(records, recs...)
	}
	return records, nil
}

// attachmentIDs returns the attachments the records were derived from.
func attachmentIDs(records []domain.IndexRecord) map[string]bool {
	ids := make(map[string]bool)
	for _, rec := range records {
		if domain.IsAttachmentItemType(rec.ItemType) {
			ids[rec.DocumentID] = true
		}
	}
	return ids
}

// buildAttachmentRecords downloads an attachment and turns its chunks into records.
// Returns no records when the handler produced no chunks.
func (r *Reconciler) buildAttachmentRecords(
	ctx context.Context,
	pass *domain.Pass,
	doc domain.SourceDocument,
	att domain.Attachment,
	modified time.Time,
) ([]domain.IndexRecord, error) {
	path, err := r.source.DownloadAttachment(ctx, att)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Debug("Failed to remove %s: %v", path, err)
		}
	}()

	var texts []string
	for _, c := range r.attachments.Extract(ctx, path, att.MediaType) {
		if c.Content != "" {
			texts = append(texts, c.Content)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := r.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]domain.IndexRecord, len(texts))
	for i, text := range texts {
		records[i] = domain.IndexRecord{
			ID:                domain.RecordID(att.ID, i),
			DocumentID:        att.ID,
			Space:             doc.SpaceKey,
			ItemType:          domain.AttachmentItemType(att.MediaType),
			AttachmentPageID:  doc.ID,
			AttachmentPageURL: doc.URL,
			Title:             att.DisplayTitle(),
			Chunk:             text,
			ChunkVector:       vectors[i],
			LastModifiedDate:  modified,
			LastIndexedDate:   pass.StartedAt,
			URL:               att.URL,
		}
	}
	return records, nil
}

// PurgeAttachments deletes attachment records of a space whose attachment is
// neither remembered on the pass nor still present in the wiki. A failed
// existence check keeps the records.
func (r *Reconciler) PurgeAttachments(ctx context.Context, pass *domain.Pass, space string) error {
	records, err := r.index.Search(ctx, domain.RecordFilter{
		Space:           space,
		ExcludeItemType: domain.ItemTypePage,
	})
	if err != nil {
		return fmt.Errorf("%w: search attachments of %s: %w", domain.ErrIndexUnavailable, space, err)
	}

	candidates := make(map[string][]string)
	for _, rec := range records {
		if !domain.IsAttachmentItemType(rec.ItemType) || pass.SeenAttachment(space, rec.DocumentID) {
			continue
		}
		candidates[rec.DocumentID] = append(candidates[rec.DocumentID], rec.ID)
	}

	attachmentIDs := make([]string, 0, len(candidates))
	for id := range candidates {
		attachmentIDs = append(attachmentIDs, id)
	}
	sort.Strings(attachmentIDs)

	var ids []string
	for _, attachmentID := range attachmentIDs {
		exists, err := r.source.AttachmentExists(ctx, attachmentID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Could not check attachment %s, keeping it: %v", attachmentID, err)
			continue
		}
		if exists {
			continue
		}
		ids = append(ids, candidates[attachmentID]...)
	}

	if len(ids) == 0 {
		return nil
	}
	if err := r.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("%w: delete attachments of %s: %w", domain.ErrIndexUnavailable, space, err)
	}
	logger.Info("Purged %d orphan attachment records in space %s", len(ids), space)
	pass.Count(domain.CounterRemove, len(ids))
	return nil
}
