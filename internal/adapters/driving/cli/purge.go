package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeJSON bool

var purgeCmd = &cobra.Command{
	Use:   "purge-attachments SPACE",
	Short: "Delete index records of attachments removed from a space",
	Long: `Checks every attachment record of the space against Confluence and
deletes the records of attachments that no longer exist. Records are kept
when Confluence cannot answer.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationServices: servicesSource},
	RunE:        runPurge,
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeJSON, "json", false, "print the diagnostics as JSON")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	if syncService == nil {
		return fmt.Errorf("sync %w", errNotConfigured)
	}

	diag, err := syncService.PurgeAttachments(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if purgeJSON {
		return printDiagnostics(cmd, diag, true)
	}
	cmd.Printf("Removed %d attachment records from %s.\n", diag.Remove, args[0])
	return nil
}
