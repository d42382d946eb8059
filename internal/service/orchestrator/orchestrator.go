// Package orchestrator drives the attempt loop for one question: generate,
// clean, check length, check content, check links, accumulate partial
// successes, and decide between acceptance, retry, and exhaustion.
package orchestrator

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/agent"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/cleaner"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/events"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/links"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
)

// Orchestrator coordinates the three agents across attempts. Safe for
// sequential reuse: all per-question state lives in Process.
type Orchestrator struct {
	agent        core.AgentCapability
	validator    *links.Validator
	log          *logging.Logger
	bus          *events.Bus
	useRelevance bool
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithBus attaches the event bus for progress and reasoning events.
func WithBus(bus *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithRelevanceChecking enables agent-assisted link relevance judgment.
func WithRelevanceChecking() Option {
	return func(o *Orchestrator) { o.useRelevance = true }
}

// New creates an orchestrator.
func New(capability core.AgentCapability, validator *links.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agent:     capability,
		validator: validator,
		log:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the attempt loop for one question to completion.
func (o *Orchestrator) Process(ctx context.Context, q core.Question) core.ProcessingResult {
	start := time.Now()
	log := o.log.WithQuestion(string(q.ID))
	sink := o.sinkFor(q)
	st := newAttemptState()

	o.publish(events.NewQuestionStartedEvent(string(q.ID), q.Text, q.CharLimit, q.MaxRetries))

	for attempt := 1; attempt <= q.MaxRetries; attempt++ {
		o.publish(events.NewAttemptStartedEvent(string(q.ID), attempt, q.MaxRetries))
		alog := log.WithAttempt(attempt)

		answer, terminal, done := o.runAttempt(ctx, q, st, attempt, alog, sink)
		if !done {
			continue
		}
		elapsed := time.Since(start)
		if answer != nil {
			o.publish(events.NewQuestionCompletedEvent(
				string(q.ID), true, string(answer.Status), answer.RetryCount, ""))
			alog.Info("answer accepted", "retries", answer.RetryCount, "links", len(answer.Sources))
			return core.SuccessResult(answer, elapsed)
		}
		// Terminal failure inside the attempt: an empty generation or a
		// non-retryable agent error.
		msg := "failed to generate an answer"
		if terminal != nil {
			msg = terminal.Error()
		}
		o.publish(events.NewQuestionCompletedEvent(string(q.ID), false, string(core.StatusFailedTimeout), attempt-1, msg))
		result := core.FailureResult(msg, elapsed)
		result.Cause = terminal
		return result
	}

	err := core.ErrExhausted(q.MaxRetries)
	core.EmitReasoning(sink, err.Message)
	log.Warn("retry budget exhausted", "attempts", q.MaxRetries)
	o.publish(events.NewQuestionCompletedEvent(
		string(q.ID), false, string(core.StatusFailedTimeout), q.MaxRetries, err.Message))

	result := core.FailureResult(err.Message, time.Since(start))
	result.Cause = err
	result.Answer = &core.Answer{Status: core.StatusFailedTimeout, RetryCount: q.MaxRetries}
	return result
}

// runAttempt executes one full generate→clean→length→content→links cycle.
// It returns (answer, nil, true) on acceptance, (nil, err, true) on
// terminal failure, and (nil, nil, false) when the loop should retry.
func (o *Orchestrator) runAttempt(ctx context.Context, q core.Question, st *attemptState, attempt int, log *logging.Logger, sink core.ProgressSink) (*core.Answer, error, bool) {
	// Generate.
	core.EmitProgress(sink, agent.RoleAnswerer, "generating answer", 0.1)
	gen, err := o.agent.Generate(ctx, core.GenerateRequest{
		Question:  q.Text,
		Context:   q.Context,
		CharLimit: q.CharLimit,
		History:   st.history,
	})
	if err != nil {
		if core.IsRetryable(err) {
			// Timeouts and transient transport failures consume an attempt.
			core.EmitReasoning(sink, fmt.Sprintf("attempt %d: generation failed transiently: %v", attempt, err))
			log.Warn("generation failed, retrying", "error", err)
			return nil, nil, false
		}
		log.Error("generation failed", "error", err)
		return nil, err, true
	}
	if gen.Text == "" {
		// An empty generation is an unrecoverable agent failure for this
		// question, not a content-quality failure to retry against.
		core.EmitReasoning(sink, "agent returned no text; giving up on this question")
		log.Error("empty generation")
		return nil, nil, true
	}

	// Clean, and combine agent-surfaced citations with URLs embedded in
	// the text (set union, duplicates removed).
	cleanText, textURLs := cleaner.Clean(gen.Text)
	combined := core.NewLinkSet(gen.SourceURLs...).Union(textURLs)
	core.EmitProgress(sink, agent.RoleAnswerer, "answer cleaned", 0.3)

	// Length gate, counting characters rather than bytes so multibyte text
	// is not over-penalized. A failure here skips the content and link
	// checks.
	if chars := utf8.RuneCountInString(cleanText); chars > q.CharLimit {
		reason := fmt.Sprintf("exceeds limit (%d>%d)", chars, q.CharLimit)
		st.record(core.AttemptRecord{
			Number:     attempt,
			AnswerText: cleanText,
			Reason:     reason,
			RejectedBy: core.RejectedByCharLimit,
		})
		core.EmitReasoning(sink, fmt.Sprintf("attempt %d: answer %s", attempt, reason))
		log.Info("length gate rejected", "chars", chars, "limit", q.CharLimit)
		return nil, nil, false
	}
	core.EmitProgress(sink, agent.RoleChecker, "length gate passed", 0.4)

	// Content gate, skipped in keep-answer mode: the approved text is
	// already fixed and only links are being sought.
	contentGateRan := false
	if st.skipContentGate && st.hasValidated {
		core.EmitReasoning(sink, fmt.Sprintf("attempt %d: reusing approved answer, checking links only", attempt))
	} else {
		contentGateRan = true
		approved, feedback, err := o.agent.ValidateContent(ctx, q.Text, cleanText)
		if err != nil {
			if core.IsRetryable(err) {
				core.EmitReasoning(sink, fmt.Sprintf("attempt %d: content check failed transiently: %v", attempt, err))
				log.Warn("content check failed, retrying", "error", err)
				return nil, nil, false
			}
			log.Error("content check failed", "error", err)
			return nil, err, true
		}
		if !approved {
			st.record(core.AttemptRecord{
				Number:     attempt,
				AnswerText: cleanText,
				Reason:     feedback,
				RejectedBy: core.RejectedByContentChecker,
			})
			core.EmitReasoning(sink, fmt.Sprintf("attempt %d: content checker rejected: %s", attempt, feedback))
			log.Info("content gate rejected", "feedback", feedback)
			return nil, nil, false
		}
		st.approve(cleanText)
		core.EmitProgress(sink, agent.RoleChecker, "content approved", 0.6)
	}

	// Link gate. Every newly confirmed URL is merged into the running set
	// regardless of the attempt's overall outcome.
	allValid, validURLs, feedback := o.validateLinks(ctx, q.Text, cleanText, combined.URLs(), sink)
	st.accumulated.AddAll(validURLs)
	core.EmitProgress(sink, agent.RoleLinkChecker, "links checked", 0.8)

	// An attempt that confirms any link is accepted on the spot, so under
	// the current any-valid policy both operands rise together. The second
	// operand still decides if link validation ever reports confirmed URLs
	// without overall success.
	accepted := allValid || !st.accumulated.Empty()
	if accepted {
		content := cleanText
		if st.skipContentGate && st.hasValidated {
			// Keep-answer mode: the approved text stands regardless of what
			// the generator actually returned this round.
			content = st.validatedAnswer
		}
		finalLinks := st.accumulated.URLs()
		if !allValid {
			core.EmitReasoning(sink, fmt.Sprintf(
				"attempt %d found no new links; reusing %d accumulated from earlier attempts", attempt, len(finalLinks)))
		}
		core.EmitProgress(sink, agent.RoleLinkChecker, "answer accepted", 1.0)
		return &core.Answer{
			Content:            content,
			Sources:            finalLinks,
			DocumentationLinks: finalLinks,
			Status:             core.StatusApproved,
			RetryCount:         attempt - 1,
		}, nil, true
	}

	// No valid links this attempt and nothing accumulated.
	if st.hasValidated && contentGateRan {
		// The answer is good but unsupported: keep it, and ask the next
		// attempt only for sources.
		st.enterKeepAnswerMode(attempt, feedback)
		core.EmitReasoning(sink, fmt.Sprintf(
			"attempt %d: approved answer lacks valid links; next attempt keeps it and searches for sources", attempt))
		log.Info("entering keep-answer mode", "feedback", feedback)
		return nil, nil, false
	}
	if st.hasValidated && !contentGateRan {
		// Already in keep-answer mode and still no links: stay in it.
		st.enterKeepAnswerMode(attempt, feedback)
		core.EmitReasoning(sink, fmt.Sprintf("attempt %d: still no valid links for the approved answer", attempt))
		return nil, nil, false
	}

	st.record(core.AttemptRecord{
		Number:     attempt,
		AnswerText: cleanText,
		Reason:     feedback,
		RejectedBy: core.RejectedByLinkChecker,
	})
	core.EmitReasoning(sink, fmt.Sprintf("attempt %d: link checker rejected: %s", attempt, feedback))
	log.Info("link gate rejected", "feedback", feedback)
	return nil, nil, false
}

// validateLinks routes to plain reachability or agent-assisted relevance.
func (o *Orchestrator) validateLinks(ctx context.Context, question, answer string, urls []string, sink core.ProgressSink) (bool, []string, string) {
	if o.useRelevance {
		allValid, valid, feedback, reports := o.validator.ValidateWithRelevance(ctx, question, answer, urls)
		for _, rep := range reports {
			core.EmitReasoning(sink, fmt.Sprintf("link %s: reachable=%v relevant=%v title=%q",
				rep.URL, rep.Reachable, rep.Relevant, rep.Title))
		}
		return allValid, valid, feedback
	}
	return o.validator.Validate(ctx, urls)
}

func (o *Orchestrator) sinkFor(q core.Question) core.ProgressSink {
	if o.bus == nil {
		return nil
	}
	return events.NewSink(o.bus, string(q.ID))
}

func (o *Orchestrator) publish(event events.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}
