package orchestrator

import "github.com/hugo-lorenzo-mato/verity-ai/internal/core"

// attemptState holds everything that survives between attempts for one
// question. It is built fresh at the top of Process and discarded when the
// question completes or fails, so nothing leaks into the next question.
type attemptState struct {
	history core.AttemptHistory

	// accumulated collects every URL confirmed valid in ANY attempt.
	accumulated *core.LinkSet

	// validatedAnswer is the most recent content-approved answer text,
	// held independently of link status so a content-approved-but-link-less
	// answer is not thrown away while links are still being sought.
	validatedAnswer string
	hasValidated    bool

	// skipContentGate marks keep-answer mode: the next generation reuses
	// validatedAnswer verbatim and the content gate is bypassed.
	skipContentGate bool
}

func newAttemptState() *attemptState {
	return &attemptState{accumulated: core.NewLinkSet()}
}

// record appends a rejection to the ordered history.
func (s *attemptState) record(rec core.AttemptRecord) {
	s.history = s.history.Append(rec)
}

// enterKeepAnswerMode switches the state machine into keep-answer mode and
// records the link-only rejection that triggered it.
func (s *attemptState) enterKeepAnswerMode(attempt int, feedback string) {
	s.skipContentGate = true
	s.record(core.AttemptRecord{
		Number:      attempt,
		AnswerText:  s.validatedAnswer,
		Reason:      feedback,
		RejectedBy:  core.RejectedByLinkCheckerNeedsLinks,
		Instruction: core.InstructionKeepAnswerFindLinks,
	})
}

// approve stores a content-approved answer.
func (s *attemptState) approve(text string) {
	s.validatedAnswer = text
	s.hasValidated = true
}
