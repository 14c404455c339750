package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "casechat",
	Short: "Chat with your legal documents",
	Long: `casechat ingests a directory of PDF and Word documents into a vector
index and answers questions about them with a conversational retrieval
chain, streamed over HTTP, WebSocket, the terminal or MCP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; variables may come from the environment.
		if err := godotenv.Load(); err != nil && verbose && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".casechat.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
