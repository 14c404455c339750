package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/casechat/casechat/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested documents",
	Long:  `Runs the retrieval chain once, streaming the answer to stdout and listing the source documents it was based on.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().Bool("no-sources", false, "do not list source documents")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noSources, _ := cmd.Flags().GetBool("no-sources")

	cfg, err := loadConfigWithCredentials()
	if err != nil {
		return err
	}

	chain, _, err := createChainFromConfig(cfg)
	if err != nil {
		return err
	}

	q := chat.Query{Question: strings.Join(args, " ")}
	res, err := chain.Call(ctx, q, func(tok string) {
		fmt.Print(tok)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	if verbose && res.Question != q.Question {
		fmt.Fprintf(os.Stderr, "Standalone question: %s\n", res.Question)
	}

	if noSources || len(res.SourceDocuments) == 0 {
		return nil
	}
	fmt.Println("\nSources:")
	for i, src := range res.SourceDocuments {
		name, _ := src.Metadata["source"].(string)
		fmt.Printf("  %d. %s\n", i+1, name)
		if verbose {
			fmt.Printf("     %s\n", truncate(strings.Join(strings.Fields(src.PageContent), " "), 120))
		}
	}
	return nil
}
