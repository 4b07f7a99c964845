package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

func TestIndexCreateCmd(t *testing.T) {
	_, indexMock, _ := setupTestServices(t)

	out, err := execute(t, "index", "create")

	require.NoError(t, err)
	assert.Equal(t, 1, indexMock.created)
	assert.Contains(t, out, "Index is ready.")
}

func TestIndexCreateCmd_Error(t *testing.T) {
	_, indexMock, _ := setupTestServices(t)
	indexMock.err = domain.ErrIndexUnavailable

	_, err := execute(t, "index", "create")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestIndexDropCmd_RequiresConfirmation(t *testing.T) {
	_, indexMock, _ := setupTestServices(t)

	_, err := execute(t, "index", "drop")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Zero(t, indexMock.dropped)
}

func TestIndexDropCmd(t *testing.T) {
	_, indexMock, _ := setupTestServices(t)

	out, err := execute(t, "index", "drop", "--yes")

	require.NoError(t, err)
	assert.Equal(t, 1, indexMock.dropped)
	assert.Contains(t, out, "Index dropped.")
}

func TestIndexCmd_ServiceNotConfigured(t *testing.T) {
	setupTestServices(t)
	indexAdmin = nil

	_, err := execute(t, "index", "create")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index service not configured")
}
