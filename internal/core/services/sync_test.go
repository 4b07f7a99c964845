package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
)

func TestSync_CreateUpdateDeleteLifecycle(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx := context.Background()

	h.source.PutPage(page("42", "DEV", pageTime), "Hello world")

	// First pass creates the page.
	d := h.sync(t, driving.SyncOptions{})
	assert.Equal(t, domain.Diagnostics{Create: 1}, d)
	rec, ok := h.index.Get("42_0")
	require.True(t, ok)
	assert.Equal(t, "Hello world", rec.Chunk)
	assert.True(t, h.index.Created())

	// Nothing changed.
	d = h.sync(t, driving.SyncOptions{})
	assert.Equal(t, domain.Diagnostics{}, d)

	// The page is edited.
	h.source.PutPage(page("42", "DEV", pageTime.Add(24*time.Hour)), "New content")
	d = h.sync(t, driving.SyncOptions{})
	assert.Equal(t, domain.Diagnostics{Update: 1}, d)

	hits, err := h.index.Index.Query(ctx, domain.Query{Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, hits)
	hits, err = h.index.Index.Query(ctx, domain.Query{Text: "new content"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "42_0", hits[0].Record.ID)

	// The page is trashed.
	h.source.SetStatus("42", domain.StatusTrashed)
	d = h.sync(t, driving.SyncOptions{})
	assert.Equal(t, domain.Diagnostics{Remove: 1}, d)
	_, err = h.index.GetMetadata(ctx, "42_0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSync_Idempotent(t *testing.T) {
	h := newHarness(t, harnessConfig{workers: 3})
	for i, space := range []string{"DEV", "DEV", "OPS", "HR", "OPS"} {
		id := string(rune('a' + i))
		h.source.PutPage(page(id, space, pageTime.Add(time.Duration(i)*time.Minute)), "body of "+id+"\n\nsecond paragraph")
	}

	d := h.sync(t, driving.SyncOptions{})
	assert.Equal(t, 5, d.Create)
	assert.Equal(t, 10, h.index.Len())

	d = h.sync(t, driving.SyncOptions{})
	assert.Equal(t, domain.Diagnostics{}, d)
	assert.Equal(t, 10, h.index.Len())
}

func TestSync_FullReindex(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.source.PutPage(page("1", "DEV", pageTime), "one")
	h.source.PutPage(page("2", "DEV", pageTime.Add(time.Hour)), "two")
	h.sync(t, driving.SyncOptions{})

	d := h.sync(t, driving.SyncOptions{FullReindex: true})

	assert.Equal(t, domain.Diagnostics{Update: 2}, d)
	rec, ok := h.index.Get("1_0")
	require.True(t, ok)
	assert.Equal(t, h.clock, rec.LastIndexedDate)
}

func TestSync_ConfiguredFullReindex(t *testing.T) {
	h := newHarness(t, harnessConfig{fullReindex: true})
	h.source.PutPage(page("1", "DEV", pageTime), "one")
	h.sync(t, driving.SyncOptions{})

	d := h.sync(t, driving.SyncOptions{})

	assert.Equal(t, domain.Diagnostics{Update: 1}, d)
}

func TestSync_SpaceFilter(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.service.config.SpaceFilter = []string{"DEV"}
	h.source.PutPage(page("1", "DEV", pageTime), "one")
	h.source.PutPage(page("2", "OPS", pageTime), "two")

	d := h.sync(t, driving.SyncOptions{})
	assert.Equal(t, 1, d.Create)
	_, ok := h.index.Get("2_0")
	assert.False(t, ok)

	d = h.sync(t, driving.SyncOptions{Spaces: []string{"OPS"}})
	assert.Equal(t, 1, d.Create)
	_, ok = h.index.Get("2_0")
	assert.True(t, ok)
}

func TestSync_SchemaFailureAborts(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.index.schemaErr = errBoom
	h.source.PutPage(page("1", "DEV", pageTime), "one")

	d, err := h.service.Sync(context.Background(), driving.SyncOptions{})

	assert.Nil(t, d)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Equal(t, 0, h.index.Len())
}

func TestSync_ProbeFailureAborts(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	h.index.probeErr = errBoom
	h.source.PutPage(page("1", "DEV", pageTime), "one")

	d, err := h.service.Sync(context.Background(), driving.SyncOptions{})

	assert.Nil(t, d)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.ErrorIs(t, err, errBoom)
}

func TestSync_PurgesOrphanAttachments(t *testing.T) {
	h := newHarness(t, harnessConfig{attachments: true, purge: true})
	h.source.PutPage(page("1", "DEV", pageTime), "page")
	require.NoError(t, h.source.PutAttachment(attachment("keep", "1", pageTime), []byte("kept file")))
	require.NoError(t, h.source.PutAttachment(attachment("drop", "1", pageTime), []byte("dropped file")))

	d := h.sync(t, driving.SyncOptions{})
	assert.Equal(t, domain.Diagnostics{Create: 1, AttachmentCreate: 2}, d)

	// The attachment disappears without the page changing.
	h.source.DeleteAttachment("drop")
	d = h.sync(t, driving.SyncOptions{})

	assert.Equal(t, domain.Diagnostics{Remove: 1}, d)
	_, ok := h.index.Get("drop_0")
	assert.False(t, ok)
	_, ok = h.index.Get("keep_0")
	assert.True(t, ok)
}

func TestSync_SkipPurge(t *testing.T) {
	h := newHarness(t, harnessConfig{attachments: true, purge: true})
	h.source.PutPage(page("1", "DEV", pageTime), "page")
	require.NoError(t, h.source.PutAttachment(attachment("drop", "1", pageTime), []byte("dropped file")))
	h.sync(t, driving.SyncOptions{})
	h.source.DeleteAttachment("drop")

	d := h.sync(t, driving.SyncOptions{SkipPurge: true})

	assert.Equal(t, domain.Diagnostics{}, d)
	_, ok := h.index.Get("drop_0")
	assert.True(t, ok)
}

func TestSyncService_PurgeAttachments(t *testing.T) {
	h := newHarness(t, harnessConfig{attachments: true})
	h.source.PutPage(page("1", "DEV", pageTime), "page")
	require.NoError(t, h.source.PutAttachment(attachment("drop", "1", pageTime), []byte("dropped file")))
	h.sync(t, driving.SyncOptions{})
	h.source.DeleteAttachment("drop")

	d, err := h.service.PurgeAttachments(context.Background(), "DEV")

	require.NoError(t, err)
	assert.Equal(t, domain.Diagnostics{Remove: 1}, *d)
}

func TestSyncService_PurgeAttachmentsRequiresSpace(t *testing.T) {
	h := newHarness(t, harnessConfig{attachments: true})

	_, err := h.service.PurgeAttachments(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
