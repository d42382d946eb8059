package core

import (
	"context"
	"time"
)

// =============================================================================
// Agent Port
// =============================================================================

// GenerateRequest carries everything the answering agent needs, including
// the full ordered history of rejected attempts for re-prompting.
type GenerateRequest struct {
	Question  string
	Context   string
	CharLimit int
	History   AttemptHistory
}

// GenerationResult is the raw output of the answering agent. SourceURLs are
// the URLs surfaced by the agent's own citation mechanism, independent of
// any URLs embedded in Text.
type GenerationResult struct {
	Text       string
	SourceURLs []string
	Duration   time.Duration
}

// LinkRelevance is the per-URL judgment produced in agent-assisted link
// checking. A URL counts as valid only when both Reachable and Relevant.
type LinkRelevance struct {
	URL       string
	Reachable bool
	Relevant  bool
	Title     string
}

// AgentCapability is the boundary over the hosted LLM agents. One
// implementation multiplexes the three roles: question answerer, answer
// checker, and link checker.
type AgentCapability interface {
	// Name identifies the binding ("hosted", "mock").
	Name() string

	// Generate produces an answer. A nil result with nil error never occurs;
	// an empty Text signals an unrecoverable generation failure.
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)

	// ValidateContent judges whether an answer is acceptable for a question.
	ValidateContent(ctx context.Context, question, answer string) (approved bool, feedback string, err error)

	// CheckLinkRelevance judges topical relevance of reachable pages.
	// Optional: bindings may return ErrCatInternal when unsupported.
	CheckLinkRelevance(ctx context.Context, question, answer string, urls []string) ([]LinkRelevance, error)
}

// =============================================================================
// Spreadsheet Port
// =============================================================================

// SheetStore is the row/column random-access contract the batch driver
// consumes. Flush commits all writes so far durably; the driver calls it
// after every completed row.
type SheetStore interface {
	Headers() []string
	RowCount() int
	Cell(row, col int) string
	SetCell(row, col int, value string)
	Flush() error
}

// =============================================================================
// Checkpoint Port
// =============================================================================

// RowCheckpoint is the durable record of one completed batch row.
type RowCheckpoint struct {
	Row         int
	Question    string
	Answer      string
	Links       []string
	Status      ValidationStatus
	CompletedAt time.Time
}

// CheckpointStore persists batch progress so an interrupted run can resume
// without re-answering completed rows.
type CheckpointStore interface {
	BeginRun(ctx context.Context, runID, source string) error
	RecordRow(ctx context.Context, runID string, cp RowCheckpoint) error
	CompletedRows(ctx context.Context, runID string) (map[int]RowCheckpoint, error)
	FinishRun(ctx context.Context, runID string, processed, failed int) error
	Close() error
}

// =============================================================================
// Progress Port
// =============================================================================

// ProgressSink receives structured progress and free-text reasoning from
// the orchestrator. Implementations must be safe for concurrent use. A nil
// sink is valid; use EmitProgress/EmitReasoning to guard.
type ProgressSink interface {
	Progress(agent, message string, fraction float64)
	Reasoning(text string)
}

// EmitProgress forwards to the sink when one is registered.
func EmitProgress(sink ProgressSink, agent, message string, fraction float64) {
	if sink != nil {
		sink.Progress(agent, message, fraction)
	}
}

// EmitReasoning forwards to the sink when one is registered.
func EmitReasoning(sink ProgressSink, text string) {
	if sink != nil {
		sink.Reasoning(text)
	}
}
