package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseSearchType tests search type normalisation
func TestParseSearchType(t *testing.T) {
	assert.Equal(t, SearchTypeAzure, ParseSearchType("azure_cognitive_search"))
	assert.Equal(t, SearchTypeLocal, ParseSearchType(" local "))
	assert.True(t, ParseSearchType("memory").IsValid())
	assert.False(t, ParseSearchType("elastic").IsValid())
}

// TestDefaultSettings tests default values
func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, SearchTypeAzure, s.Index.SearchType)
	assert.Equal(t, DefaultChunkSize, s.Chunking.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, s.Chunking.ChunkOverlap)
	assert.Equal(t, DefaultDimensions, s.Index.Dimensions)
	assert.Equal(t, "warning", s.Log.Level)
	assert.False(t, s.Attachments.Enabled)
	assert.True(t, s.Attachments.PurgeOrphans)
	assert.Equal(t, 1, s.Sync.Workers)
	assert.Equal(t, 1, s.Sync.EmbedConcurrency)
}
