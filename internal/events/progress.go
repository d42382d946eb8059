package events

// Event type constants.
const (
	TypeQuestionStarted   = "question_started"
	TypeQuestionCompleted = "question_completed"
	TypeAttemptStarted    = "attempt_started"
	TypeAgentProgress     = "agent_progress"
	TypeReasoning         = "reasoning"
	TypeRowStarted        = "row_started"
	TypeRowCompleted      = "row_completed"
	TypeRowFailed         = "row_failed"
	TypeBatchCompleted    = "batch_completed"
)

// QuestionStartedEvent marks the start of one question's attempt loop.
type QuestionStartedEvent struct {
	BaseEvent
	Text       string `json:"text"`
	CharLimit  int    `json:"char_limit"`
	MaxRetries int    `json:"max_retries"`
}

// NewQuestionStartedEvent creates a question_started event.
func NewQuestionStartedEvent(questionID, text string, charLimit, maxRetries int) QuestionStartedEvent {
	return QuestionStartedEvent{
		BaseEvent:  newBase(TypeQuestionStarted, questionID),
		Text:       text,
		CharLimit:  charLimit,
		MaxRetries: maxRetries,
	}
}

// QuestionCompletedEvent marks the end of one question's attempt loop.
type QuestionCompletedEvent struct {
	BaseEvent
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
}

// NewQuestionCompletedEvent creates a question_completed event.
func NewQuestionCompletedEvent(questionID string, success bool, status string, retryCount int, errMsg string) QuestionCompletedEvent {
	return QuestionCompletedEvent{
		BaseEvent:  newBase(TypeQuestionCompleted, questionID),
		Success:    success,
		Status:     status,
		RetryCount: retryCount,
		Error:      errMsg,
	}
}

// AttemptStartedEvent marks the start of one generate/validate cycle.
type AttemptStartedEvent struct {
	BaseEvent
	Attempt int `json:"attempt"`
	Budget  int `json:"budget"`
}

// NewAttemptStartedEvent creates an attempt_started event.
func NewAttemptStartedEvent(questionID string, attempt, budget int) AttemptStartedEvent {
	return AttemptStartedEvent{
		BaseEvent: newBase(TypeAttemptStarted, questionID),
		Attempt:   attempt,
		Budget:    budget,
	}
}

// AgentProgressEvent reports fractional progress from one agent.
type AgentProgressEvent struct {
	BaseEvent
	Agent    string  `json:"agent"`
	Message  string  `json:"message"`
	Fraction float64 `json:"fraction"`
}

// NewAgentProgressEvent creates an agent_progress event. Fraction is
// clamped to [0,1].
func NewAgentProgressEvent(questionID, agent, message string, fraction float64) AgentProgressEvent {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return AgentProgressEvent{
		BaseEvent: newBase(TypeAgentProgress, questionID),
		Agent:     agent,
		Message:   message,
		Fraction:  fraction,
	}
}

// ReasoningEvent carries a free-text reasoning line from the orchestrator.
type ReasoningEvent struct {
	BaseEvent
	Text string `json:"text"`
}

// NewReasoningEvent creates a reasoning event.
func NewReasoningEvent(questionID, text string) ReasoningEvent {
	return ReasoningEvent{
		BaseEvent: newBase(TypeReasoning, questionID),
		Text:      text,
	}
}

// RowEvent reports batch progress for one spreadsheet row.
type RowEvent struct {
	BaseEvent
	Row   int    `json:"row"`
	Error string `json:"error,omitempty"`
}

// NewRowStartedEvent creates a row_started event.
func NewRowStartedEvent(questionID string, row int) RowEvent {
	return RowEvent{BaseEvent: newBase(TypeRowStarted, questionID), Row: row}
}

// NewRowCompletedEvent creates a row_completed event.
func NewRowCompletedEvent(questionID string, row int) RowEvent {
	return RowEvent{BaseEvent: newBase(TypeRowCompleted, questionID), Row: row}
}

// NewRowFailedEvent creates a row_failed event.
func NewRowFailedEvent(questionID string, row int, errMsg string) RowEvent {
	return RowEvent{BaseEvent: newBase(TypeRowFailed, questionID), Row: row, Error: errMsg}
}

// BatchCompletedEvent reports the final tally of a batch run.
type BatchCompletedEvent struct {
	BaseEvent
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

// NewBatchCompletedEvent creates a batch_completed event.
func NewBatchCompletedEvent(processed, failed int, cancelled bool) BatchCompletedEvent {
	return BatchCompletedEvent{
		BaseEvent: newBase(TypeBatchCompleted, ""),
		Processed: processed,
		Failed:    failed,
		Cancelled: cancelled,
	}
}
