package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

func record(id, docID, space, itemType string) domain.IndexRecord {
	return domain.IndexRecord{
		ID:         id,
		DocumentID: docID,
		Space:      space,
		ItemType:   itemType,
	}
}

func TestIndex_GetMetadata(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	indexed := modified.Add(time.Hour)

	rec := record("p1_0", "p1", "DEV", domain.ItemTypePage)
	rec.LastModifiedDate = modified
	rec.LastIndexedDate = indexed
	require.NoError(t, idx.Upsert(ctx, rec))

	meta, err := idx.GetMetadata(ctx, "p1_0")
	require.NoError(t, err)
	assert.Equal(t, modified, meta.LastModifiedDate)
	assert.Equal(t, indexed, meta.LastIndexedDate)

	_, err = idx.GetMetadata(ctx, "p2_0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_SearchFilters(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	att := record("a1_0", "a1", "DEV", domain.AttachmentItemType("application/pdf"))
	att.AttachmentPageID = "p1"
	for _, rec := range []domain.IndexRecord{
		record("p1_0", "p1", "DEV", domain.ItemTypePage),
		record("p1_1", "p1", "DEV", domain.ItemTypePage),
		record("p2_0", "p2", "OPS", domain.ItemTypePage),
		att,
	} {
		require.NoError(t, idx.Upsert(ctx, rec))
	}

	tests := []struct {
		name   string
		filter domain.RecordFilter
		want   []string
	}{
		{"by document", domain.RecordFilter{DocumentID: "p1"}, []string{"p1_0", "p1_1"}},
		{"by parent page", domain.RecordFilter{AttachmentPageID: "p1"}, []string{"a1_0"}},
		{"attachments of space", domain.RecordFilter{Space: "DEV", ExcludeItemType: domain.ItemTypePage}, []string{"a1_0"}},
		{"everything", domain.RecordFilter{}, []string{"a1_0", "p1_0", "p1_1", "p2_0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := idx.Search(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestIndex_DeleteAndDrop(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	require.NoError(t, idx.CreateOrUpdateSchema(ctx))
	require.NoError(t, idx.Upsert(ctx, record("p1_0", "p1", "DEV", domain.ItemTypePage)))
	require.NoError(t, idx.Upsert(ctx, record("p2_0", "p2", "DEV", domain.ItemTypePage)))

	require.NoError(t, idx.Delete(ctx, []string{"p1_0", "unknown"}))
	assert.Equal(t, 1, idx.Len())
	assert.True(t, idx.Created())

	require.NoError(t, idx.Drop(ctx))
	assert.Equal(t, 0, idx.Len())
	assert.False(t, idx.Created())
}

func TestIndex_Query(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	a := record("p1_0", "p1", "DEV", domain.ItemTypePage)
	a.Chunk = "how to deploy the billing service"
	a.ChunkVector = []float32{1, 0}
	b := record("p2_0", "p2", "OPS", domain.ItemTypePage)
	b.Chunk = "deploy checklist"
	b.ChunkVector = []float32{0, 1}
	c := record("p3_0", "p3", "DEV", domain.ItemTypePage)
	c.Chunk = "unrelated"
	for _, rec := range []domain.IndexRecord{a, b, c} {
		require.NoError(t, idx.Upsert(ctx, rec))
	}

	hits, err := idx.Query(ctx, domain.Query{Text: "deploy billing"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p1_0", hits[0].Record.ID)

	hits, err = idx.Query(ctx, domain.Query{Text: "deploy", Vector: []float32{0, 1}})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p2_0", hits[0].Record.ID)

	hits, err = idx.Query(ctx, domain.Query{Text: "deploy", Space: "DEV", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1_0", hits[0].Record.ID)
}
