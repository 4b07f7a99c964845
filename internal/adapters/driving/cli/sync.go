package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
)

var (
	syncSpaces      []string
	syncFullReindex bool
	syncNoPurge     bool
	syncJSON        bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise Confluence pages into the index",
	Long: `Runs one reconciliation pass. New pages are indexed, changed pages are
rewritten and archived, trashed or deleted pages are removed. When attachments
are enabled, attachments that no longer exist are purged afterwards.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationServices: servicesSource},
	RunE:        runSync,
}

func init() {
	syncCmd.Flags().StringSliceVarP(&syncSpaces, "space", "s", nil, "space key to synchronise (repeatable, overrides the configured filter)")
	syncCmd.Flags().BoolVar(&syncFullReindex, "full-reindex", false, "rewrite every page found in the index")
	syncCmd.Flags().BoolVar(&syncNoPurge, "no-purge", false, "skip the orphan attachment purge")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the diagnostics as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return fmt.Errorf("sync %w", errNotConfigured)
	}

	if !syncJSON {
		cmd.Println("Synchronising...")
	}

	diag, err := syncService.Sync(cmd.Context(), driving.SyncOptions{
		Spaces:      syncSpaces,
		FullReindex: syncFullReindex,
		SkipPurge:   syncNoPurge,
	})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return printDiagnostics(cmd, diag, syncJSON)
}

func printDiagnostics(cmd *cobra.Command, diag *domain.Diagnostics, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(diag, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostics: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cmd.Printf("Created:             %d\n", diag.Create)
	cmd.Printf("Updated:             %d\n", diag.Update)
	cmd.Printf("Removed:             %d\n", diag.Remove)
	cmd.Printf("Attachments created: %d\n", diag.AttachmentCreate)
	cmd.Printf("Attachments updated: %d\n", diag.AttachmentUpdate)
	if diag.Failed > 0 {
		cmd.Printf("Failed:              %d (see log)\n", diag.Failed)
	}
	return nil
}
