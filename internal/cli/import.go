package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dverhagen/pharmsync/internal/blob"
	"github.com/dverhagen/pharmsync/internal/checkpoint"
	"github.com/dverhagen/pharmsync/internal/config"
	"github.com/dverhagen/pharmsync/internal/pipeline"
	"github.com/dverhagen/pharmsync/internal/store"
)

var (
	importInput          string
	importTag            string
	importSingleFile     string
	importCheckpointPath string
	importResume         bool
	importHashWorkers    int
	importUploadWorkers  int
	importBatchSize      int
	importTraceCSV       string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import license-search result files into the remote store",
	Long: `Import scans a directory of license-search result files, hashes and
uploads screenshots with content-hash deduplication, and batch-imports
the parsed results with last-writer-wins conflict resolution.

State is checkpointed to a local file after every phase. A crashed or
aborted run continues from its last completed phase with --resume.

Examples:
  pharmsync import --input ./results --tag 2024-q2
  pharmsync import --input ./results --tag 2024-q2 --file ca_acme.json
  pharmsync import --resume --checkpoint work_state.json
  pharmsync import --input ./results --tag 2024-q2 --trace-csv items.csv`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "input directory of result files")
	importCmd.Flags().StringVarP(&importTag, "tag", "t", "", "dataset tag in the remote store")
	importCmd.Flags().StringVar(&importSingleFile, "file", "", "restrict the scan to a single result file")
	importCmd.Flags().StringVar(&importCheckpointPath, "checkpoint", "work_state.json", "checkpoint file path")
	importCmd.Flags().BoolVar(&importResume, "resume", false, "resume from an existing checkpoint")
	importCmd.Flags().IntVar(&importHashWorkers, "hash-workers", 16, "concurrent hashing workers")
	importCmd.Flags().IntVar(&importUploadWorkers, "upload-concurrency", 10, "concurrent uploads in flight")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 25, "records per bulk insert")
	importCmd.Flags().StringVar(&importTraceCSV, "trace-csv", "", "write a per-item trace CSV after the run")
}

func runImport(cmd *cobra.Command, args []string) error {
	// Fail fast on usage errors before touching config or any remote
	// service. Resume needs only the checkpoint; a fresh run needs both
	// the input directory and the dataset tag.
	if !importResume {
		if importInput == "" || importTag == "" {
			return fmt.Errorf("--input and --tag are required unless --resume is set")
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	ctx := context.Background()

	blobs, err := blob.NewStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	records := store.New(cfg.APIURL, cfg.APIToken, cfg.APITimeout)
	ckpt := checkpoint.NewStore(importCheckpointPath)

	pipe := pipeline.New(records, blobs, ckpt, logger, pipeline.Options{
		InputDir:          importInput,
		DatasetTag:        importTag,
		SingleFile:        importSingleFile,
		TraceCSV:          importTraceCSV,
		HashWorkers:       importHashWorkers,
		UploadConcurrency: importUploadWorkers,
		BatchSize:         importBatchSize,
		UploadTimeout:     cfg.APITimeout,
	})

	if importResume {
		_, err = pipe.Resume(ctx)
	} else {
		_, err = pipe.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("import run: %w", err)
	}
	return nil
}
