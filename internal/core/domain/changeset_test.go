package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id, space string, status Status, modified time.Time) SourceDocument {
	return SourceDocument{ID: id, SpaceKey: space, Status: status, LastModified: modified}
}

// TestNewChangeset_ClassifiesByStatus tests the upsert/remove split
func TestNewChangeset_ClassifiesByStatus(t *testing.T) {
	now := time.Now().UTC()
	cs := NewChangeset([]SourceDocument{
		doc("1", "ENG", StatusActive, now),
		doc("2", "ENG", StatusArchived, now),
		doc("3", "HR", StatusTrashed, now),
		doc("4", "HR", StatusDeleted, now),
		doc("5", "HR", StatusActive, now),
	})

	require.Len(t, cs.Upsert, 2)
	require.Len(t, cs.Remove, 3)
	assert.Equal(t, "1", cs.Upsert[0].ID)
	assert.Equal(t, "5", cs.Upsert[1].ID)
	assert.Equal(t, []string{"2", "3", "4"}, []string{cs.Remove[0].ID, cs.Remove[1].ID, cs.Remove[2].ID})
}

// TestNewChangeset_DuplicateKeepsLatest tests duplicate IDs resolve to the newest entry
func TestNewChangeset_DuplicateKeepsLatest(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := old.Add(time.Hour)

	older := doc("1", "ENG", StatusActive, old)
	older.Title = "old"
	latest := doc("1", "ENG", StatusActive, newer)
	latest.Title = "new"

	cs := NewChangeset([]SourceDocument{older, latest})

	require.Len(t, cs.Upsert, 1)
	assert.Equal(t, "new", cs.Upsert[0].Title)
	assert.Empty(t, cs.Remove)
}

// TestNewChangeset_RemoveWins tests an ID never lands in both sequences
func TestNewChangeset_RemoveWins(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cs := NewChangeset([]SourceDocument{
		doc("1", "ENG", StatusTrashed, old),
		doc("1", "ENG", StatusActive, old.Add(time.Hour)),
	})

	assert.Empty(t, cs.Upsert)
	require.Len(t, cs.Remove, 1)
	assert.Equal(t, "1", cs.Remove[0].ID)
	assert.True(t, cs.Remove[0].Status.IsTerminal())
}

// TestNewChangeset_Empty tests an empty snapshot
func TestNewChangeset_Empty(t *testing.T) {
	cs := NewChangeset(nil)

	assert.Empty(t, cs.Upsert)
	assert.Empty(t, cs.Remove)
	assert.Empty(t, cs.Spaces())
}

// TestChangeset_Spaces tests distinct space enumeration
func TestChangeset_Spaces(t *testing.T) {
	now := time.Now()
	cs := NewChangeset([]SourceDocument{
		doc("1", "ENG", StatusActive, now),
		doc("2", "HR", StatusActive, now),
		doc("3", "ENG", StatusActive, now),
		doc("4", "OPS", StatusDeleted, now),
	})

	assert.Equal(t, []string{"ENG", "HR", "OPS"}, cs.Spaces())
}
