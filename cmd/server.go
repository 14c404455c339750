package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/casechat/casechat/internal/ledger"
	"github.com/casechat/casechat/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the chat API server",
	Long:  `Starts the HTTP server exposing POST /api/chat (server-sent events), /api/chat/ws (WebSocket) and the ingestion history under /api/runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigWithCredentials()
		if err != nil {
			return err
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		chain, store, err := createChainFromConfig(cfg)
		if err != nil {
			return err
		}

		ledgerStore, database, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: cfg.Server.AllowAllOrigins,
		}, chain)
		ledger.RegisterRoutes(srv.Router(), ledgerStore, cfg.VectorStore.Namespace)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		count, err := store.Count(ctx, cfg.VectorStore.Namespace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not count indexed chunks: %v\n", err)
		}

		fmt.Fprintf(os.Stderr, "casechat server v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Model: %s (%s)\n", cfg.LLM.Model, cfg.LLM.Provider)
		fmt.Fprintf(os.Stderr, "  Index: %s/%s (%d chunks)\n", cfg.VectorStore.IndexName, cfg.VectorStore.Namespace, count)
		if count == 0 {
			fmt.Fprintln(os.Stderr, "  The namespace is empty. Run `casechat ingest` first.")
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 3000, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
