package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/wikisync/internal/attachments"
	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
)

var (
	errBoom   = errors.New("boom")
	baseClock = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	pageTime  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// fakeIndex wraps the memory index with injectable failures.
type fakeIndex struct {
	*memory.Index

	mu         sync.Mutex
	probeErr   error
	searchErr  error
	deleteErr  error
	schemaErr  error
	queryErr   error
	failUpsert map[string]bool
	lastQuery  domain.Query
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		Index:      memory.NewIndex(),
		failUpsert: make(map[string]bool),
	}
}

func (f *fakeIndex) GetMetadata(ctx context.Context, id string) (*domain.IndexMetadata, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.Index.GetMetadata(ctx, id)
}

func (f *fakeIndex) Search(ctx context.Context, filter domain.RecordFilter) ([]domain.IndexRecord, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Index.Search(ctx, filter)
}

func (f *fakeIndex) Upsert(ctx context.Context, rec domain.IndexRecord) error {
	f.mu.Lock()
	fail := f.failUpsert[rec.ID]
	f.mu.Unlock()
	if fail {
		return errBoom
	}
	return f.Index.Upsert(ctx, rec)
}

func (f *fakeIndex) Delete(ctx context.Context, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Index.Delete(ctx, ids)
}

func (f *fakeIndex) CreateOrUpdateSchema(ctx context.Context) error {
	if f.schemaErr != nil {
		return f.schemaErr
	}
	return f.Index.CreateOrUpdateSchema(ctx)
}

func (f *fakeIndex) Query(ctx context.Context, q domain.Query) ([]domain.SearchHit, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.Index.Query(ctx, q)
}

// fakeEmbedder returns a two-dimensional vector derived from the text length.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	err      error
	failText string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.failText != "" && text == e.failText {
		return nil, errBoom
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int              { return 2 }
func (e *fakeEmbedder) ModelName() string            { return "fake" }
func (e *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (e *fakeEmbedder) Close() error                 { return nil }

func (e *fakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// paragraphChunker splits bodies on blank lines without touching markup.
type paragraphChunker struct{}

func (paragraphChunker) Chunk(_ context.Context, markup string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, p := range strings.Split(markup, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{Content: p, Position: len(chunks)})
	}
	return chunks, nil
}

type harnessConfig struct {
	attachments bool
	purge       bool
	workers     int
	fullReindex bool
}

type harness struct {
	source     *memory.Source
	index      *fakeIndex
	embedder   *fakeEmbedder
	reconciler *Reconciler
	service    *SyncService
	clock      time.Time
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()

	var registry driven.AttachmentRegistry
	if cfg.attachments {
		r, err := attachments.Build(
			[]domain.HandlerSettings{{MediaType: "text/plain", Handler: attachments.KindText}},
			domain.ChunkingSettings{ChunkSize: 50, ChunkOverlap: 0},
		)
		require.NoError(t, err)
		registry = r
	}

	h := &harness{
		source:   memory.NewSource(),
		index:    newFakeIndex(),
		embedder: &fakeEmbedder{},
		clock:    baseClock,
	}
	h.reconciler = NewReconciler(h.source, h.index, paragraphChunker{}, h.embedder, registry, ReconcilerOptions{
		Workers:          cfg.workers,
		EmbedConcurrency: 2,
	})
	h.service = NewSyncService(h.source, h.index, h.reconciler, SyncConfig{
		FullReindex:  cfg.fullReindex,
		PurgeOrphans: cfg.purge,
	})
	h.service.now = h.tick
	return h
}

// tick advances the clock by one hour per pass.
func (h *harness) tick() time.Time {
	h.clock = h.clock.Add(time.Hour)
	return h.clock
}

func (h *harness) newPass() *domain.Pass {
	return domain.NewPass("test", h.tick())
}

func (h *harness) sync(t *testing.T, opts driving.SyncOptions) domain.Diagnostics {
	t.Helper()
	d, err := h.service.Sync(context.Background(), opts)
	require.NoError(t, err)
	return *d
}

func (h *harness) recordIDs(t *testing.T, filter domain.RecordFilter) []string {
	t.Helper()
	recs, err := h.index.Index.Search(context.Background(), filter)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func page(id, space string, modified time.Time) domain.SourceDocument {
	return domain.SourceDocument{
		ID:           id,
		SpaceKey:     space,
		Title:        "Page " + id,
		LastModified: modified,
		Status:       domain.StatusActive,
		URL:          "https://wiki.example.com/display/" + space + "/" + id,
	}
}

func attachment(id, pageID string, modified time.Time) domain.Attachment {
	return domain.Attachment{
		ID:           id,
		PageID:       pageID,
		Title:        id + ".txt",
		MediaType:    "text/plain",
		DownloadPath: "/download/attachments/" + pageID + "/" + id + ".txt?version=1&modificationDate=" + millis(modified),
		URL:          "https://wiki.example.com/pages/viewpageattachments.action?pageId=" + pageID,
	}
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

