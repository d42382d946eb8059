package agent

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
)

// Agent role names used in progress events and prompt routing.
const (
	RoleAnswerer    = "question answerer"
	RoleChecker     = "answer checker"
	RoleLinkChecker = "link checker"
)

// buildGeneratePrompt renders the generation prompt. Two templates exist:
// the standard one feeds back the full ordered rejection history and asks
// for an improved answer; the keep-answer one is used after a
// content-approved answer lacked valid links, and instructs the agent to
// return that exact text unchanged with only new supporting URLs.
func buildGeneratePrompt(req core.GenerateRequest) string {
	if keep, ok := latestKeepAnswer(req.History); ok {
		return buildKeepAnswerPrompt(req, keep)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Answer the following question in at most %d characters.\n\n", req.CharLimit)
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	if req.Context != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", req.Context)
	}
	b.WriteString("\nCite the documentation pages that support your answer as URLs.\n")

	if len(req.History) > 0 {
		b.WriteString("\nEarlier answers were rejected. Do not repeat these mistakes:\n")
		for _, rec := range req.History {
			fmt.Fprintf(&b, "- Attempt %d (rejected by %s): %s\n", rec.Number, rec.RejectedBy, rec.Reason)
			if rec.AnswerText != "" {
				fmt.Fprintf(&b, "  Previous answer: %s\n", rec.AnswerText)
			}
		}
		b.WriteString("\nProvide an improved answer that addresses every rejection above.\n")
	}
	return b.String()
}

// latestKeepAnswer finds the most recent keep-answer record anywhere in the
// history. Keep-answer mode persists once entered, so later rejections (an
// over-long regeneration, say) must not hide the instruction.
func latestKeepAnswer(h core.AttemptHistory) (core.AttemptRecord, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].KeepAnswer() {
			return h[i], true
		}
	}
	return core.AttemptRecord{}, false
}

// buildKeepAnswerPrompt asks only for supporting sources for a fixed text.
func buildKeepAnswerPrompt(req core.GenerateRequest, last core.AttemptRecord) string {
	var b strings.Builder
	b.WriteString("The following answer has already been approved. Return it EXACTLY as written, without any change:\n\n")
	b.WriteString(last.AnswerText)
	b.WriteString("\n\nIt still needs supporting sources. ")
	fmt.Fprintf(&b, "Find documentation URLs that back this answer to the question %q and cite them. ", req.Question)
	b.WriteString("Do not rewrite, shorten, or extend the answer text.\n")
	return b.String()
}

// buildValidatePrompt renders the content checker prompt. The checker
// replies with an approved flag and feedback in a small YAML/JSON object.
func buildValidatePrompt(question, answer string) string {
	var b strings.Builder
	b.WriteString("You are reviewing an answer for factual quality and completeness.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s\n\n", question, answer)
	b.WriteString("Reply with exactly this structure:\n")
	b.WriteString("approved: true or false\nfeedback: one sentence explaining the decision\n")
	return b.String()
}

// buildRelevancePrompt renders the link checker prompt.
func buildRelevancePrompt(question, answer string, urls []string) string {
	var b strings.Builder
	b.WriteString("Judge whether each page is topically relevant to the question and answer below.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s\n\nPages:\n", question, answer)
	for _, u := range urls {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	b.WriteString("\nReply with a YAML list, one item per page:\n")
	b.WriteString("- url: <the url>\n  relevant: true or false\n")
	return b.String()
}
