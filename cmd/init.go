package cmd

import (
	"github.com/spf13/cobra"

	"github.com/casechat/casechat/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize casechat configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose providers, models and the vector store, and generates a .casechat.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
