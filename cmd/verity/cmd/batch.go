package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/batch"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/columns"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/events"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/sheet"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/state"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/web"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer every question in a CSV sheet",
	Long: `Batch walks a CSV file, answers each row's question through the full
attempt loop, and writes accepted answers and their documentation links
back into the sheet. The file is flushed after every completed row, so an
interrupted run loses at most the row in flight.

Question, response, and documentation columns are detected from the
headers; with --agent-columns the agent gets a look at sample values too.
Use --resume to continue an interrupted run without re-answering rows.`,
	RunE: runBatch,
}

var (
	batchImport       string
	batchOutput       string
	batchParallel     int
	batchResume       bool
	batchAgentColumns bool
	batchListen       string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchImport, "import", "", "CSV file with questions (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write answers to this file instead of in place")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", 0, "number of parallel workers")
	batchCmd.Flags().BoolVar(&batchResume, "resume", false, "skip rows completed by an earlier run of the same file")
	batchCmd.Flags().BoolVar(&batchAgentColumns, "agent-columns", false, "let the agent classify ambiguous headers")
	batchCmd.Flags().StringVar(&batchListen, "progress-listen", "", "serve SSE progress events on this address (e.g. :8080)")
	_ = batchCmd.MarkFlagRequired("import")
}

func runBatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sheet.Open(batchImport)
	if err != nil {
		return err
	}
	if batchOutput != "" {
		store.SetPath(batchOutput)
	}

	capability, err := buildAgent(cfg, log)
	if err != nil {
		return err
	}

	mapping, err := resolveMapping(ctx, store, capability, log)
	if err != nil {
		return err
	}

	bus := events.NewBus(256)
	defer bus.Close()

	listen := cfg.Web.Listen
	if batchListen != "" {
		listen = batchListen
	}
	if listen != "" {
		srv := web.New(listen, bus, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("progress server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	checkpoints, runID, err := openCheckpoints(cfg.State.DBPath)
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	validator := buildValidator(cfg, capability, log)
	factory := func() batch.Processor {
		return buildOrchestrator(cfg, capability, validator, log, bus)
	}

	parallelism := cfg.Batch.Parallelism
	if batchParallel > 0 {
		parallelism = batchParallel
	}

	driver := batch.New(store, mapping, factory,
		batch.WithLogger(log),
		batch.WithBus(bus),
		batch.WithParallelism(parallelism),
		batch.WithQuestionDefaults(cfg.Defaults.CharLimit, cfg.Defaults.MaxRetries),
		batch.WithContext(cfg.Defaults.Context),
		batch.WithCheckpoints(checkpoints, runID),
	)

	processed, failed, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Processed %d questions, %d failed.\n", processed, failed)
	if failed > 0 {
		return fmt.Errorf("%d questions could not be answered", failed)
	}
	return nil
}

// resolveMapping detects the question/response/documentation columns,
// creating output columns that don't exist yet.
func resolveMapping(ctx context.Context, store *sheet.CSVStore, capability core.AgentCapability, log *logging.Logger) (columns.Mapping, error) {
	headers := store.Headers()

	id := columns.New(columns.WithAgent(capability), columns.WithLogger(log))
	var mapping columns.Mapping
	if batchAgentColumns {
		mapping = id.IdentifyWithSamples(ctx, headers, sampleValues(store, len(headers)))
	} else {
		mapping = id.Identify(headers)
	}
	if err := mapping.Valid(len(headers)); err != nil {
		return columns.Mapping{}, err
	}

	if mapping.Response == columns.None {
		mapping.Response = store.AddColumn("Response")
	}
	if mapping.Documentation == columns.None {
		mapping.Documentation = store.AddColumn("Documentation")
	}
	return mapping, nil
}

// sampleValues grabs up to three non-empty values per column for the
// agent-assisted classifier.
func sampleValues(store *sheet.CSVStore, numCols int) [][]string {
	samples := make([][]string, numCols)
	for col := 0; col < numCols; col++ {
		for row := 0; row < store.RowCount() && len(samples[col]) < 3; row++ {
			if v := store.Cell(row, col); v != "" {
				samples[col] = append(samples[col], v)
			}
		}
	}
	return samples
}

// openCheckpoints opens the durable store, deriving the run ID from the
// input file for --resume so repeated invocations share progress; without
// --resume each invocation is its own run.
func openCheckpoints(dbPath string) (core.CheckpointStore, string, error) {
	store, err := state.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, "", err
	}
	runID := uuid.NewString()
	if batchResume {
		abs, err := filepath.Abs(batchImport)
		if err != nil {
			abs = batchImport
		}
		runID = "file:" + abs
	}
	return store, runID, nil
}
