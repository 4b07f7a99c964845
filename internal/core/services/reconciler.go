package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// ReconcilerOptions tunes pass execution.
type ReconcilerOptions struct {
	// Workers is the number of pages created or updated concurrently.
	Workers int

	// EmbedConcurrency is the number of chunks of one item embedded concurrently.
	EmbedConcurrency int
}

// Reconciler brings the index in line with one snapshot of the wiki.
type Reconciler struct {
	source      driven.SourceProvider
	index       driven.SearchIndex
	metadata    *MetadataReader
	chunker     driven.Chunker
	embedder    driven.EmbeddingService
	attachments driven.AttachmentRegistry
	opts        ReconcilerOptions
}

// NewReconciler creates a reconciler.
// The embedder is optional: without it records carry no vectors.
// The attachment registry is optional: without it attachments are ignored.
func NewReconciler(
	source driven.SourceProvider,
	index driven.SearchIndex,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	attachments driven.AttachmentRegistry,
	opts ReconcilerOptions,
) *Reconciler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.EmbedConcurrency < 1 {
		opts.EmbedConcurrency = 1
	}
	return &Reconciler{
		source:      source,
		index:       index,
		metadata:    NewMetadataReader(index),
		chunker:     chunker,
		embedder:    embedder,
		attachments: attachments,
		opts:        opts,
	}
}

// Plan holds the decisions taken for the upsert sequence of a changeset.
type Plan struct {
	// Create holds pages never indexed, most recently modified first.
	Create []domain.SourceDocument

	// Update holds pages whose index copy is outdated, most recently modified first.
	Update []domain.SourceDocument

	// Skipped counts pages found up to date, including those of short-circuited spaces.
	Skipped int
}

// Reconcile runs a pass over the changeset. Counters accumulate on the pass.
// Only index and source connectivity failures are returned; failures local to
// one page or attachment are logged and counted as failed.
func (r *Reconciler) Reconcile(ctx context.Context, pass *domain.Pass, cs domain.Changeset) error {
	plan, err := r.Plan(ctx, pass, cs.Upsert)
	if err != nil {
		return err
	}
	logger.Info("Pass %s: %d to create, %d to update, %d to remove, %d skipped",
		pass.ID, len(plan.Create), len(plan.Update), len(cs.Remove), plan.Skipped)

	return r.Execute(ctx, pass, cs.Remove, plan)
}

// Plan classifies pages as create, update or skip. It runs sequentially over
// the pages sorted by modification time, newest first, and stops probing a
// space once a page of it is known to be indexed after its last change.
func (r *Reconciler) Plan(ctx context.Context, pass *domain.Pass, upsert []domain.SourceDocument) (*Plan, error) {
	docs := make([]domain.SourceDocument, len(upsert))
	copy(docs, upsert)
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].LastModified.After(docs[j].LastModified)
	})

	plan := &Plan{}
	for _, doc := range docs {
		if pass.IsShortCircuited(doc.SpaceKey) {
			plan.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		meta, err := r.metadata.Read(ctx, doc.ID)
		if errors.Is(err, domain.ErrNotFound) {
			plan.Create = append(plan.Create, doc)
			continue
		}
		if err != nil {
			return nil, err
		}

		updated := meta.LastModifiedDate.Before(doc.LastModified) || pass.FullReindex
		if updated {
			plan.Update = append(plan.Update, doc)
		} else {
			plan.Skipped++
		}
		if meta.LastIndexedDate.After(doc.LastModified) && !pass.FullReindex {
			logger.Debug("Space %s is up to date after page %s", doc.SpaceKey, doc.ID)
			pass.ShortCircuit(doc.SpaceKey)
		}
	}
	return plan, nil
}

// Execute applies a plan: removals first, then updates, then creations.
func (r *Reconciler) Execute(ctx context.Context, pass *domain.Pass, remove []domain.SourceDocument, plan *Plan) error {
	for _, doc := range remove {
		removed, err := r.removeItem(ctx, doc.ID)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logger.Debug("Removed %s (%d records)", doc.ID, len(removed))
			pass.Count(domain.CounterRemove, 1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, doc := range plan.Update {
		g.Go(func() error {
			return r.indexDocument(gctx, pass, doc, true)
		})
	}
	for _, doc := range plan.Create {
		g.Go(func() error {
			return r.indexDocument(gctx, pass, doc, false)
		})
	}
	return g.Wait()
}

// indexDocument builds and writes the records of one page and its attachments.
// For an update the old records are only deleted once the new page records exist.
func (r *Reconciler) indexDocument(ctx context.Context, pass *domain.Pass, doc domain.SourceDocument, update bool) error {
	records, err := r.pageRecords(ctx, pass, doc)
	if err != nil {
		if isFatal(ctx, err) {
			return err
		}
		logger.Warn("Could not index page %s (%s): %v", doc.ID, doc.Title, err)
		pass.Count(domain.CounterFailed, 1)
		return nil
	}

	var dropped map[string]bool
	if update {
		removed, err := r.removeItem(ctx, doc.ID)
		if err != nil {
			return err
		}
		dropped = attachmentIDs(removed)
	}

	attachmentRecords, err := r.attachmentRecords(ctx, pass, doc, dropped)
	if err != nil {
		return err
	}

	r.write(ctx, append(attachmentRecords, records...))

	if update {
		pass.Count(domain.CounterUpdate, 1)
	} else {
		pass.Count(domain.CounterCreate, 1)
	}
	return nil
}

// pageRecords fetches, chunks and embeds a page.
// A page without text yields one placeholder record so the chunk-0 probe finds it.
func (r *Reconciler) pageRecords(ctx context.Context, pass *domain.Pass, doc domain.SourceDocument) ([]domain.IndexRecord, error) {
	body, err := r.source.FetchBody(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch body: %w", err)
	}

	chunks, err := r.chunker.Chunk(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		texts = append(texts, c.Content)
	}
	if len(texts) == 0 {
		texts = append(texts, domain.PlaceholderChunk)
	}

	titleVector, err := r.embed(ctx, doc.Title)
	if err != nil {
		return nil, fmt.Errorf("embed title: %w", err)
	}
	vectors, err := r.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]domain.IndexRecord, len(texts))
	for i, text := range texts {
		records[i] = domain.IndexRecord{
			ID:               domain.RecordID(doc.ID, i),
			DocumentID:       doc.ID,
			Space:            doc.SpaceKey,
			ItemType:         domain.ItemTypePage,
			Title:            doc.Title,
			TitleVector:      titleVector,
			Chunk:            text,
			ChunkVector:      vectors[i],
			LastModifiedDate: doc.LastModified,
			LastIndexedDate:  pass.StartedAt,
			URL:              doc.URL,
		}
	}
	return records, nil
}

// removeItem deletes the records of an item and the attachment records of its page.
// Returns the deleted records.
func (r *Reconciler) removeItem(ctx context.Context, itemID string) ([]domain.IndexRecord, error) {
	var removed []domain.IndexRecord
	var ids []string
	seen := make(map[string]bool)
	for _, filter := range []domain.RecordFilter{
		{DocumentID: itemID},
		{AttachmentPageID: itemID},
	} {
		records, err := r.index.Search(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("%w: search records of %s: %w", domain.ErrIndexUnavailable, itemID, err)
		}
		for _, rec := range records {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			ids = append(ids, rec.ID)
			removed = append(removed, rec)
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.index.Delete(ctx, ids); err != nil {
		return nil, fmt.Errorf("%w: delete records of %s: %w", domain.ErrIndexUnavailable, itemID, err)
	}
	return removed, nil
}

// write upserts records one by one. Failures are logged and do not stop the remaining writes.
func (r *Reconciler) write(ctx context.Context, records []domain.IndexRecord) {
	for _, rec := range records {
		if err := r.index.Upsert(ctx, rec); err != nil {
			logger.Warn("Could not index record %s (%s): %v", rec.ID, rec.URL, err)
		}
	}
}

// embed returns nil when no embedder is configured.
func (r *Reconciler) embed(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil {
		return nil, nil
	}
	return r.embedder.Embed(ctx, text)
}

// embedAll embeds texts with up to EmbedConcurrency requests in flight.
// The result is aligned with texts.
func (r *Reconciler) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if r.embedder == nil {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.EmbedConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			v, err := r.embedder.Embed(gctx, text)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// isFatal reports whether an error must abort the pass.
func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, domain.ErrIndexUnavailable) ||
		errors.Is(err, domain.ErrSourceUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
