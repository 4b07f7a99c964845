package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var dropConfirmed bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the search index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the index or update its schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if indexAdmin == nil {
			return fmt.Errorf("index %w", errNotConfigured)
		}
		if err := indexAdmin.CreateOrUpdateSchema(cmd.Context()); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		cmd.Println("Index is ready.")
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the index and all its records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !dropConfirmed {
			return errors.New("refusing to drop the index without --yes")
		}
		if indexAdmin == nil {
			return fmt.Errorf("index %w", errNotConfigured)
		}
		if err := indexAdmin.Drop(cmd.Context()); err != nil {
			return fmt.Errorf("drop index: %w", err)
		}
		cmd.Println("Index dropped.")
		return nil
	},
}

func init() {
	indexDropCmd.Flags().BoolVarP(&dropConfirmed, "yes", "y", false, "confirm the deletion")
	indexCmd.AddCommand(indexCreateCmd, indexDropCmd)
	rootCmd.AddCommand(indexCmd)
}
