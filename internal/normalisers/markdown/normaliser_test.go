package markdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, New().SupportedMIMETypes())
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\r\n\r\nSome text\r\n"), 0o600))

	result, err := New().Normalise(context.Background(), &domain.RawDocument{Path: path})

	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\nSome text", result.Content)
	assert.Equal(t, driven.FormatMarkdown, result.Format)
}

func TestNormalise_MissingFile(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{Path: filepath.Join(t.TempDir(), "nope.md")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
