package core

import "time"

// ValidationStatus records how an answer left the attempt loop.
type ValidationStatus string

const (
	StatusApproved        ValidationStatus = "approved"
	StatusRejectedContent ValidationStatus = "rejected_content"
	StatusRejectedLinks   ValidationStatus = "rejected_links"
	StatusFailedTimeout   ValidationStatus = "failed_timeout"
)

// Answer is the final output for one question.
type Answer struct {
	Content            string
	Sources            []string
	DocumentationLinks []string
	Status             ValidationStatus
	RetryCount         int
}

// ProcessingResult wraps the outcome of processing one or more questions.
// Invariant: Success implies Answer != nil; !Success implies a non-empty
// ErrorMessage.
type ProcessingResult struct {
	Success            bool
	Answer             *Answer
	ErrorMessage       string
	Cause              error // typed failure cause, when one exists
	ProcessingTime     time.Duration
	QuestionsProcessed int
	QuestionsFailed    int
}

// SuccessResult builds a successful result for a single question.
func SuccessResult(answer *Answer, elapsed time.Duration) ProcessingResult {
	return ProcessingResult{
		Success:            true,
		Answer:             answer,
		ProcessingTime:     elapsed,
		QuestionsProcessed: 1,
	}
}

// FailureResult builds a failed result for a single question.
func FailureResult(message string, elapsed time.Duration) ProcessingResult {
	return ProcessingResult{
		Success:         false,
		ErrorMessage:    message,
		ProcessingTime:  elapsed,
		QuestionsFailed: 1,
	}
}

// Validate checks the result invariants.
func (r ProcessingResult) Validate() error {
	if r.Success && r.Answer == nil {
		return ErrState("RESULT_MISSING_ANSWER", "successful result requires an answer")
	}
	if !r.Success && r.ErrorMessage == "" {
		return ErrState("RESULT_MISSING_ERROR", "failed result requires an error message")
	}
	return nil
}
