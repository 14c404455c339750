package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/casechat/casechat/internal/vectordb"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Semantically search the ingested documents",
	Long:  `Embeds the text and returns the nearest chunks from the configured namespace, without calling the chat model.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 4, "maximum number of results")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryText := args[0]

	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfigWithCredentials()
	if err != nil {
		return err
	}

	chain, store, err := createChainFromConfig(cfg)
	if err != nil {
		return err
	}

	if n, err := store.Count(ctx, cfg.VectorStore.Namespace); err == nil && n == 0 {
		fmt.Println("Namespace is empty. Run `casechat ingest` first.")
		return nil
	}

	results, err := chain.Retrieve(ctx, queryText, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if jsonOutput {
		return printQueryResultsJSON(results)
	}

	printQueryResultsTable(results)
	return nil
}

type queryResultJSON struct {
	Rank       int            `json:"rank"`
	Similarity float64        `json:"similarity"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata"`
	Content    string         `json:"content"`
}

func printQueryResultsJSON(results []vectordb.SearchResult) error {
	var out []queryResultJSON
	for i, r := range results {
		out = append(out, queryResultJSON{
			Rank:       i + 1,
			Similarity: float64(r.Similarity),
			Source:     r.Record.Source(),
			Metadata:   r.Record.Metadata,
			Content:    r.Record.Content,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printQueryResultsTable(results []vectordb.SearchResult) {
	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		location := r.Record.Source()
		if idx, ok := r.Record.Metadata["chunk_index"]; ok {
			location = fmt.Sprintf("%s#%v", location, idx)
		}

		fmt.Printf("  %d. [%.1f%%] %s\n", i+1, r.Similarity*100, location)
		fmt.Printf("     %s\n\n", truncate(strings.Join(strings.Fields(r.Record.Content), " "), 120))
	}
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
