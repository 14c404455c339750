package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/casechat/casechat/internal/chunker"
	"github.com/casechat/casechat/internal/ingest"
	"github.com/casechat/casechat/internal/ledger"
	"github.com/casechat/casechat/internal/loader"
	"github.com/casechat/casechat/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load, chunk and embed the corpus into the vector index",
	Long: `Reads every PDF and Word document under the corpus directory, splits
them into overlapping chunks, embeds them and writes them to the configured
namespace. Re-running over an unchanged corpus leaves the index unchanged.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("corpus", "", "corpus directory (overrides config)")
	ingestCmd.Flags().Bool("force-unlock", false, "clear a stale lock left by an interrupted run")
	ingestCmd.Flags().Bool("replace", false, "delete the namespace before writing")
	ingestCmd.Flags().Int("concurrency", 0, "files loaded in parallel")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfigWithCredentials()
	if err != nil {
		return err
	}

	corpusDir, _ := cmd.Flags().GetString("corpus")
	if corpusDir == "" {
		corpusDir = cfg.Ingest.CorpusDir
	}
	forceUnlock, _ := cmd.Flags().GetBool("force-unlock")
	replace, _ := cmd.Flags().GetBool("replace")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	namespace := cfg.VectorStore.Namespace

	ledgerStore, database, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if forceUnlock {
		cleared, err := ledgerStore.ForceUnlock(ctx, namespace)
		if err != nil {
			return fmt.Errorf("clearing lock: %w", err)
		}
		if cleared {
			fmt.Fprintf(os.Stderr, "Cleared stale lock on namespace %s\n", namespace)
		}
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	store, err := openStoreFromConfig(cfg, embedder)
	if err != nil {
		return err
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.Ingest.ChunkSize),
		chunker.WithOverlap(cfg.Ingest.ChunkOverlap),
	)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(loader.DefaultRegistry(), splitter, embedder, store, ledgerStore, ingest.Options{
		Namespace:   namespace,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: concurrency,
		Include:     cfg.Ingest.Include,
		Exclude:     cfg.Ingest.Exclude,
		MaxFileSize: cfg.Ingest.MaxFileSize,
		Replace:     replace,
	})

	tracker := progress.NewTracker(progress.NewReporter())
	pipeline.SetProgressFunc(func(stage ingest.Stage, processed, total int, current string) {
		tracker.Report(string(stage), processed, total, current)
	})

	if verbose {
		fmt.Fprintf(os.Stderr, "Ingesting %s into %s/%s using %s\n", corpusDir, cfg.VectorStore.IndexName, namespace, embedder.Name())
	}

	result, err := pipeline.Run(ctx, corpusDir)
	tracker.Finish()
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			return fmt.Errorf("%w\nIf no other ingestion is running, re-run with --force-unlock", err)
		}
		return err
	}

	fmt.Printf("Ingested %d file(s): %d document(s), %d chunk(s) into namespace %s in %s\n",
		result.Files, result.Documents, result.Chunks, namespace, result.Duration.Round(time.Millisecond))
	if verbose && result.RunID != "" {
		fmt.Fprintf(os.Stderr, "Run ID: %s\n", result.RunID)
	}
	return nil
}
