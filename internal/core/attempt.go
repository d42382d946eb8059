package core

import "fmt"

// RejectedBy identifies which gate rejected an attempt.
type RejectedBy string

const (
	RejectedByCharLimit      RejectedBy = "char_limit"
	RejectedByContentChecker RejectedBy = "content_checker"
	RejectedByLinkChecker    RejectedBy = "link_checker"
	// RejectedByLinkCheckerNeedsLinks marks a link-only rejection of an
	// answer the content checker already approved.
	RejectedByLinkCheckerNeedsLinks RejectedBy = "link_checker_needs_links"
)

// SpecialInstruction modifies how the next attempt is prompted.
type SpecialInstruction string

// InstructionKeepAnswerFindLinks tells the generator to return the prior
// approved answer verbatim and supply only new supporting URLs.
const InstructionKeepAnswerFindLinks SpecialInstruction = "keep_answer_find_links"

// AttemptRecord captures one rejected attempt. Records are append-only:
// once added to a history they are never mutated.
type AttemptRecord struct {
	Number      int
	AnswerText  string
	Reason      string
	RejectedBy  RejectedBy
	Instruction SpecialInstruction
}

// String renders the record for logs and prompts.
func (r AttemptRecord) String() string {
	return fmt.Sprintf("attempt %d rejected by %s: %s", r.Number, r.RejectedBy, r.Reason)
}

// KeepAnswer reports whether this record asks the next attempt to reuse
// the already-approved answer text.
func (r AttemptRecord) KeepAnswer() bool {
	return r.Instruction == InstructionKeepAnswerFindLinks
}

// AttemptHistory is the ordered list of rejected attempts for one question.
type AttemptHistory []AttemptRecord

// Append returns the history with a new record added.
func (h AttemptHistory) Append(rec AttemptRecord) AttemptHistory {
	return append(h, rec)
}

// Last returns the most recent record, or false when empty.
func (h AttemptHistory) Last() (AttemptRecord, bool) {
	if len(h) == 0 {
		return AttemptRecord{}, false
	}
	return h[len(h)-1], true
}
