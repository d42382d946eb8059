// Package batch answers every question in a sheet: it walks the rows,
// runs the attempt loop per question, writes accepted answers back into the
// sheet, and flushes after every row so completed work survives a crash.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/columns"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/events"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/state"
)

// DefaultParallelism is the worker count used when parallel mode is enabled
// without an explicit N.
const DefaultParallelism = 3

// Processor runs the attempt loop for one question. Satisfied by
// orchestrator.Orchestrator.
type Processor interface {
	Process(ctx context.Context, q core.Question) core.ProcessingResult
}

// Factory builds one Processor per worker, so parallel workers never share
// orchestration state.
type Factory func() Processor

// Driver iterates a sheet and orchestrates each non-blank question exactly
// once.
type Driver struct {
	store       core.SheetStore
	mapping     columns.Mapping
	factory     Factory
	checkpoints core.CheckpointStore
	runID       string
	parallelism int
	charLimit   int
	maxRetries  int
	context     string
	log         *logging.Logger
	bus         *events.Bus
}

// Option configures the driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// WithBus attaches the event bus for row progress events.
func WithBus(bus *events.Bus) Option {
	return func(d *Driver) { d.bus = bus }
}

// WithCheckpoints enables durable progress under the given run ID, so a
// resumed run skips rows that already completed.
func WithCheckpoints(store core.CheckpointStore, runID string) Option {
	return func(d *Driver) {
		d.checkpoints = store
		d.runID = runID
	}
}

// WithParallelism sets the worker count. Values below 1 mean sequential.
func WithParallelism(n int) Option {
	return func(d *Driver) { d.parallelism = n }
}

// WithQuestionDefaults sets the char limit and retry budget applied to every
// question built from the sheet.
func WithQuestionDefaults(charLimit, maxRetries int) Option {
	return func(d *Driver) {
		d.charLimit = charLimit
		d.maxRetries = maxRetries
	}
}

// WithContext sets shared background context text passed to every question.
func WithContext(text string) Option {
	return func(d *Driver) { d.context = text }
}

// New creates a driver. The mapping must have been validated by the caller.
func New(store core.SheetStore, mapping columns.Mapping, factory Factory, opts ...Option) *Driver {
	d := &Driver{
		store:       store,
		mapping:     mapping,
		factory:     factory,
		checkpoints: state.NopStore{},
		parallelism: 1,
		charLimit:   core.MaxCharLimit,
		maxRetries:  core.MaxRetryBudget,
		log:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.parallelism < 1 {
		d.parallelism = 1
	}
	return d
}

// workItem is one pending row. Each item is pulled from the queue by
// exactly one worker.
type workItem struct {
	row      int
	question string
}

// tally is the shared counter set; sheet writes are synchronized by the
// store itself, so this is the only driver-level shared state.
type tally struct {
	mu        sync.Mutex
	processed int
	failed    int
}

func (t *tally) addProcessed() {
	t.mu.Lock()
	t.processed++
	t.mu.Unlock()
}

func (t *tally) addFailed() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

func (t *tally) totals() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed, t.failed
}

// Run processes every row with a non-blank question cell and returns the
// (processed, failed) tallies. A fatal error — bad credentials, broken
// checkpoint storage — aborts the remaining rows and is returned; ordinary
// per-question failures only increment the failed tally.
func (d *Driver) Run(ctx context.Context) (int, int, error) {
	if err := d.checkpoints.BeginRun(ctx, d.runID, "sheet"); err != nil {
		return 0, 0, err
	}
	completed, err := d.checkpoints.CompletedRows(ctx, d.runID)
	if err != nil {
		return 0, 0, err
	}

	var t tally
	items := d.collectWork(completed, &t)
	d.log.Info("batch started",
		"rows", d.store.RowCount(), "pending", len(items),
		"resumed", len(completed), "workers", d.parallelism)

	queue := make(chan workItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	// Cancellation gates new pulls only; the row in flight finishes, is
	// flushed, and is checkpointed, so its work survives the interrupt.
	g, runCtx := errgroup.WithContext(ctx)
	rowCtx := context.WithoutCancel(ctx)
	for w := 0; w < d.parallelism; w++ {
		g.Go(func() error {
			proc := d.factory()
			for item := range queue {
				select {
				case <-runCtx.Done():
					return runCtx.Err()
				default:
				}
				if err := d.processRow(rowCtx, proc, item, &t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	processed, failed := t.totals()
	if err := d.checkpoints.FinishRun(rowCtx, d.runID, processed, failed); err != nil {
		d.log.Warn("finishing checkpoint run failed", "error", err)
	}
	d.publish(events.NewBatchCompletedEvent(processed, failed, runErr != nil))
	d.log.Info("batch finished", "processed", processed, "failed", failed)
	return processed, failed, runErr
}

// collectWork replays completed checkpoints into the sheet and returns the
// rows still to be answered, in row order.
func (d *Driver) collectWork(completed map[int]core.RowCheckpoint, t *tally) []workItem {
	var items []workItem
	for row := 0; row < d.store.RowCount(); row++ {
		question := strings.TrimSpace(d.store.Cell(row, d.mapping.Question))
		if question == "" {
			continue
		}
		if cp, ok := completed[row]; ok {
			d.writeRow(row, cp.Answer, cp.Links)
			t.addProcessed()
			d.log.Debug("row restored from checkpoint", "row", row)
			continue
		}
		items = append(items, workItem{row: row, question: question})
	}
	if len(completed) > 0 {
		if err := d.store.Flush(); err != nil {
			d.log.Warn("flushing restored rows failed", "error", err)
		}
	}
	return items
}

func (d *Driver) processRow(ctx context.Context, proc Processor, item workItem, t *tally) error {
	questionID := fmt.Sprintf("row-%d", item.row)
	d.publish(events.NewRowStartedEvent(questionID, item.row))
	log := d.log.WithRow(item.row)

	q, err := core.NewQuestion(questionID, item.question, d.context, d.charLimit, d.maxRetries)
	if err != nil {
		// A malformed question (too short) can never be answered; count it
		// failed and keep its cells untouched.
		t.addFailed()
		d.publish(events.NewRowFailedEvent(questionID, item.row, err.Error()))
		log.Warn("row skipped, invalid question", "error", err)
		return nil
	}

	result := proc.Process(ctx, q)
	if !result.Success {
		t.addFailed()
		d.publish(events.NewRowFailedEvent(questionID, item.row, result.ErrorMessage))
		log.Warn("row failed", "error", result.ErrorMessage)
		if core.IsFatalForBatch(result.Cause) {
			// No point burning the rest of the sheet against dead
			// credentials or a broken setup.
			return result.Cause
		}
		return nil
	}

	d.writeRow(item.row, result.Answer.Content, result.Answer.Sources)
	if err := d.store.Flush(); err != nil {
		// Durability is the whole point of per-row flushing; losing it is
		// fatal for the batch.
		return err
	}
	if err := d.checkpoints.RecordRow(ctx, d.runID, core.RowCheckpoint{
		Row:         item.row,
		Question:    item.question,
		Answer:      result.Answer.Content,
		Links:       result.Answer.Sources,
		Status:      result.Answer.Status,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	t.addProcessed()
	d.publish(events.NewRowCompletedEvent(questionID, item.row))
	log.Info("row completed", "retries", result.Answer.RetryCount, "links", len(result.Answer.Sources))
	return nil
}

// writeRow fills the response and documentation cells when the mapping has
// columns for them. Links are newline-joined inside the single cell.
func (d *Driver) writeRow(row int, answer string, links []string) {
	if d.mapping.Response != columns.None {
		d.store.SetCell(row, d.mapping.Response, answer)
	}
	if d.mapping.Documentation != columns.None {
		d.store.SetCell(row, d.mapping.Documentation, strings.Join(links, "\n"))
	}
}

func (d *Driver) publish(event events.Event) {
	if d.bus != nil {
		d.bus.Publish(event)
	}
}
