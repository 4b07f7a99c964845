package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
)

// mockSyncService records the calls it receives.
type mockSyncService struct {
	opts        driving.SyncOptions
	purgedSpace string
	diag        *domain.Diagnostics
	err         error
}

func (m *mockSyncService) Sync(_ context.Context, opts driving.SyncOptions) (*domain.Diagnostics, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.diag == nil {
		return &domain.Diagnostics{}, nil
	}
	return m.diag, nil
}

func (m *mockSyncService) PurgeAttachments(_ context.Context, space string) (*domain.Diagnostics, error) {
	m.purgedSpace = space
	if m.err != nil {
		return nil, m.err
	}
	if m.diag == nil {
		return &domain.Diagnostics{}, nil
	}
	return m.diag, nil
}

// mockIndexAdmin counts lifecycle calls.
type mockIndexAdmin struct {
	created int
	dropped int
	err     error
}

func (m *mockIndexAdmin) CreateOrUpdateSchema(_ context.Context) error {
	m.created++
	return m.err
}

func (m *mockIndexAdmin) Drop(_ context.Context) error {
	m.dropped++
	return m.err
}

// mockSearchService returns fixed hits.
type mockSearchService struct {
	query string
	opts  domain.SearchOptions
	hits  []domain.SearchHit
	err   error
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	m.query = query
	m.opts = opts
	return m.hits, m.err
}

// resetFlags restores every flag of the tree to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// setupTestServices installs mocks and returns them with a cleanup function.
func setupTestServices(t *testing.T) (*mockSyncService, *mockIndexAdmin, *mockSearchService) {
	t.Helper()

	oldSync, oldIndex, oldSearch := syncService, indexAdmin, searchService
	oldBootstrap := bootstrap

	syncMock := &mockSyncService{}
	indexMock := &mockIndexAdmin{}
	searchMock := &mockSearchService{}
	syncService, indexAdmin, searchService = syncMock, indexMock, searchMock
	bootstrap = nil

	t.Cleanup(func() {
		syncService, indexAdmin, searchService = oldSync, oldIndex, oldSearch
		bootstrap = oldBootstrap
		closeServices = nil
		resetFlags(rootCmd)
	})
	return syncMock, indexMock, searchMock
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
