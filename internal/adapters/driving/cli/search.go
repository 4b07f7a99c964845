package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// snippetLength is the number of runes of chunk text shown per result.
const snippetLength = 160

var (
	searchLimit       int
	searchSpace       string
	searchKeywordOnly bool
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed pages and attachments",
	Long: `Performs hybrid search across the index.
Combines keyword and semantic (vector) search when an embedding service is
configured, and falls back to keyword search otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchSpace, "space", "s", "", "restrict results to a space")
	searchCmd.Flags().BoolVar(&searchKeywordOnly, "keyword-only", false, "skip the query embedding")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return fmt.Errorf("search %w", errNotConfigured)
	}

	results, err := searchService.Search(cmd.Context(), args[0], domain.SearchOptions{
		Limit:       searchLimit,
		Space:       searchSpace,
		KeywordOnly: searchKeywordOnly,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchHit) error {
	type hit struct {
		ID       string  `json:"id"`
		Space    string  `json:"space"`
		ItemType string  `json:"item_type"`
		Title    string  `json:"title"`
		URL      string  `json:"url"`
		Chunk    string  `json:"chunk"`
		Score    float64 `json:"score"`
	}
	out := make([]hit, len(results))
	for i, r := range results {
		out[i] = hit{
			ID:       r.Record.ID,
			Space:    r.Record.Space,
			ItemType: r.Record.ItemType,
			Title:    r.Record.Title,
			URL:      r.Record.URL,
			Chunk:    r.Record.Chunk,
			Score:    r.Score,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchHit) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] Title (Score)
		record := results[i].Record
		title := record.Title
		if title == "" {
			title = record.ID
		}

		cmd.Printf("  [%d] %s (%.4f)\n", i+1, title, results[i].Score)
		if record.Space != "" {
			cmd.Printf("      Space: %s\n", record.Space)
		}
		if record.URL != "" {
			cmd.Printf("      %s\n", record.URL)
		}
		if s := snippet(record.Chunk); s != "" {
			cmd.Printf("      %s\n", s)
		}
		cmd.Println()
	}
	return nil
}

// snippet returns the chunk on one line, cut to snippetLength runes.
func snippet(chunk string) string {
	if chunk == domain.PlaceholderChunk {
		return ""
	}
	line := strings.Join(strings.Fields(chunk), " ")
	runes := []rune(line)
	if len(runes) <= snippetLength {
		return line
	}
	return string(runes[:snippetLength]) + "..."
}
