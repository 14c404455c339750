package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/casechat/casechat/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document search and question answering tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigWithCredentials()
		if err != nil {
			return err
		}

		chain, store, err := createChainFromConfig(cfg)
		if err != nil {
			return err
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		count, _ := store.Count(context.Background(), cfg.VectorStore.Namespace)
		fmt.Fprintf(os.Stderr, "casechat MCP server started on stdio (namespace=%s, chunks=%d)\n", cfg.VectorStore.Namespace, count)
		if count == 0 {
			fmt.Fprintf(os.Stderr, "Search results will be empty. Run `casechat ingest` first.\n")
		}

		return mcpserver.NewServer(chain).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
