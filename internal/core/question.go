package core

import (
	"strings"

	"github.com/google/uuid"
)

// QuestionID uniquely identifies a question.
type QuestionID string

// Bounds enforced by NewQuestion.
const (
	MinQuestionLength = 5
	MinCharLimit      = 100
	MaxCharLimit      = 10000
	MinRetryBudget    = 1
	MaxRetryBudget    = 25
)

// Question is one unit of work for the orchestrator. It is immutable once
// constructed; the orchestrator receives it by value.
type Question struct {
	ID         QuestionID
	Text       string
	Context    string
	CharLimit  int
	MaxRetries int
}

// NewQuestion validates inputs and builds a Question. An empty id gets a
// generated UUID.
func NewQuestion(id, text, context string, charLimit, maxRetries int) (Question, error) {
	text = strings.TrimSpace(text)
	if len(text) < MinQuestionLength {
		return Question{}, ErrValidation(CodeQuestionTooShort,
			"question text must be at least 5 characters")
	}
	if charLimit < MinCharLimit || charLimit > MaxCharLimit {
		return Question{}, ErrValidation(CodeCharLimitRange,
			"char limit must be between 100 and 10000").
			WithDetail("char_limit", charLimit)
	}
	if maxRetries < MinRetryBudget || maxRetries > MaxRetryBudget {
		return Question{}, ErrValidation(CodeMaxRetriesRange,
			"max retries must be between 1 and 25").
			WithDetail("max_retries", maxRetries)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Question{
		ID:         QuestionID(id),
		Text:       text,
		Context:    context,
		CharLimit:  charLimit,
		MaxRetries: maxRetries,
	}, nil
}
