package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/agent"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/links"
)

// newLinkServer serves /ok with 200 and everything else with 404, so tests
// can hand out reachable and unreachable URLs at will.
func newLinkServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ok") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustQuestion(t *testing.T, text string, charLimit, maxRetries int) core.Question {
	t.Helper()
	q, err := core.NewQuestion("", text, "", charLimit, maxRetries)
	if err != nil {
		t.Fatalf("NewQuestion: %v", err)
	}
	return q
}

func TestProcess_AcceptsFirstAttempt(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"

	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{
			Text:       "Azure AI bundles vision, speech, and language services. See " + goodURL,
			SourceURLs: nil,
		}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 5))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if result.Answer.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", result.Answer.RetryCount)
	}
	if result.Answer.Status != core.StatusApproved {
		t.Errorf("status = %s, want approved", result.Answer.Status)
	}
	if len(result.Answer.Sources) != 1 || result.Answer.Sources[0] != goodURL {
		t.Errorf("sources = %v, want [%s]", result.Answer.Sources, goodURL)
	}
	if strings.Contains(result.Answer.Content, goodURL) {
		t.Error("URL should be stripped from the cleaned content")
	}
	if err := result.Validate(); err != nil {
		t.Errorf("result invariants violated: %v", err)
	}
}

// The full recovery path: an over-long first attempt, a good second answer
// whose only link is dead, and a third attempt that keeps the approved text
// and finally supplies a working link.
func TestProcess_KeepAnswerRecovery(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"
	deadURL := srv.URL + "/gone"

	approvedText := "Azure OpenAI provides managed access to GPT models with enterprise controls."

	mock := agent.NewMock()
	var keepHistorySeen core.AttemptRecord
	mock.GenerateFunc = func(_ context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
		switch len(req.History) {
		case 0:
			return &core.GenerationResult{Text: strings.Repeat("x", 500)}, nil
		case 1:
			return &core.GenerationResult{Text: approvedText, SourceURLs: []string{deadURL}}, nil
		default:
			keepHistorySeen, _ = req.History.Last()
			return &core.GenerationResult{Text: approvedText, SourceURLs: []string{goodURL}}, nil
		}
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure OpenAI?", 200, 5))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if result.Answer.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", result.Answer.RetryCount)
	}
	if result.Answer.Content != approvedText {
		t.Errorf("content = %q, want the attempt-2 approved text verbatim", result.Answer.Content)
	}
	if len(result.Answer.Sources) != 1 || result.Answer.Sources[0] != goodURL {
		t.Errorf("sources = %v, want [%s]", result.Answer.Sources, goodURL)
	}
	if mock.GenerateCalls() != 3 {
		t.Errorf("generate calls = %d, want 3", mock.GenerateCalls())
	}
	// Attempt 1 fails the length gate and attempt 3 reuses the approved
	// answer, so the content checker runs exactly once.
	if mock.ValidateCalls() != 1 {
		t.Errorf("validate calls = %d, want 1", mock.ValidateCalls())
	}
	if keepHistorySeen.Instruction != core.InstructionKeepAnswerFindLinks {
		t.Errorf("attempt 3 history instruction = %q, want keep-answer", keepHistorySeen.Instruction)
	}
	if keepHistorySeen.AnswerText != approvedText {
		t.Errorf("keep-answer record should carry the approved text, got %q", keepHistorySeen.AnswerText)
	}
}

// The limit is a character count, not a byte count: multibyte text inside
// the limit must pass the length gate on the first attempt.
func TestProcess_CharLimitCountsCharactersNotBytes(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"

	// 150 characters, 300 bytes.
	text := strings.Repeat("é", 150)
	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: text, SourceURLs: []string{goodURL}}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 200, 1))

	if !result.Success {
		t.Fatalf("150-character answer rejected under a 200-character limit: %q", result.ErrorMessage)
	}
	if result.Answer.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", result.Answer.RetryCount)
	}
	if result.Answer.Content != text {
		t.Errorf("content = %q, want the multibyte text intact", result.Answer.Content)
	}
}

// Any attempt that confirms at least one link is accepted on that attempt;
// the dead candidates are dropped, not grounds for a retry.
func TestProcess_PartiallyValidLinksAcceptImmediately(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"
	deadURL := srv.URL + "/gone"

	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: "An answer.", SourceURLs: []string{deadURL, goodURL}}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 5))

	if !result.Success {
		t.Fatalf("expected acceptance on the first attempt, got %q", result.ErrorMessage)
	}
	if result.Answer.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", result.Answer.RetryCount)
	}
	if len(result.Answer.Sources) != 1 || result.Answer.Sources[0] != goodURL {
		t.Errorf("sources = %v, want only the reachable URL", result.Answer.Sources)
	}
}

// Keep-answer mode persists across further rejections: an over-long
// regeneration inside keep mode burns an attempt but must not revive the
// content gate or lose the approved text.
func TestProcess_KeepAnswerSurvivesOverlongRegeneration(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"
	deadURL := srv.URL + "/gone"

	approvedText := "Azure Functions runs event-driven code without managing servers."

	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
		switch mock.GenerateCalls() {
		case 1:
			return &core.GenerationResult{Text: approvedText, SourceURLs: []string{deadURL}}, nil
		case 2:
			return &core.GenerationResult{Text: strings.Repeat("x", 500)}, nil
		default:
			return &core.GenerationResult{Text: approvedText, SourceURLs: []string{goodURL}}, nil
		}
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure Functions?", 200, 5))

	if !result.Success {
		t.Fatalf("expected success on attempt 3, got %q", result.ErrorMessage)
	}
	if result.Answer.Content != approvedText {
		t.Errorf("content = %q, want the approved text verbatim", result.Answer.Content)
	}
	if result.Answer.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", result.Answer.RetryCount)
	}
	// Attempt 1's approval stands through the over-long detour.
	if mock.ValidateCalls() != 1 {
		t.Errorf("validate calls = %d, want 1", mock.ValidateCalls())
	}
}

func TestProcess_ExhaustsRetryBudget(t *testing.T) {
	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: strings.Repeat("long ", 100)}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 100, 2))

	if result.Success {
		t.Fatal("expected exhaustion failure")
	}
	if !strings.Contains(result.ErrorMessage, "after 2 attempts") {
		t.Errorf("error message = %q, want attempt count", result.ErrorMessage)
	}
	if !core.IsCategory(result.Cause, core.ErrCatExhausted) {
		t.Errorf("cause = %v, want exhausted category", result.Cause)
	}
	if result.Answer == nil || result.Answer.Status != core.StatusFailedTimeout {
		t.Errorf("answer = %+v, want failed_timeout status", result.Answer)
	}
	if result.Answer.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", result.Answer.RetryCount)
	}
	if mock.GenerateCalls() != 2 {
		t.Errorf("generate calls = %d, want exactly the budget", mock.GenerateCalls())
	}
	// Length-gate failures never reach the content checker.
	if mock.ValidateCalls() != 0 {
		t.Errorf("validate calls = %d, want 0", mock.ValidateCalls())
	}
}

func TestProcess_SingleAttemptBudget(t *testing.T) {
	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: strings.Repeat("over ", 50)}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 100, 1))

	if result.Success {
		t.Fatal("expected failure with a budget of one")
	}
	if mock.GenerateCalls() != 1 || mock.ValidateCalls() != 0 {
		t.Errorf("calls = (%d generate, %d validate), want (1, 0)",
			mock.GenerateCalls(), mock.ValidateCalls())
	}
}

func TestProcess_EmptyGenerationIsTerminal(t *testing.T) {
	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: ""}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 5))

	if result.Success {
		t.Fatal("expected terminal failure")
	}
	if result.ErrorMessage != "failed to generate an answer" {
		t.Errorf("error message = %q", result.ErrorMessage)
	}
	// Empty text must not burn the remaining budget.
	if mock.GenerateCalls() != 1 {
		t.Errorf("generate calls = %d, want 1", mock.GenerateCalls())
	}
}

func TestProcess_NonRetryableErrorIsTerminal(t *testing.T) {
	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return nil, core.ErrAuth("invalid API key")
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 5))

	if result.Success {
		t.Fatal("expected terminal failure")
	}
	if mock.GenerateCalls() != 1 {
		t.Errorf("generate calls = %d, want 1", mock.GenerateCalls())
	}
	if !core.IsCategory(result.Cause, core.ErrCatAuth) {
		t.Errorf("cause = %v, want auth category", result.Cause)
	}
	if !core.IsFatalForBatch(result.Cause) {
		t.Error("auth failure should abort a batch")
	}
}

func TestProcess_TransientErrorConsumesAttemptQuietly(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"

	mock := agent.NewMock()
	var secondHistory core.AttemptHistory
	mock.GenerateFunc = func(_ context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
		if mock.GenerateCalls() == 1 {
			return nil, core.ErrNetwork("connection reset")
		}
		secondHistory = req.History
		return &core.GenerationResult{Text: "A solid answer.", SourceURLs: []string{goodURL}}, nil
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 5))

	if !result.Success {
		t.Fatalf("expected recovery on attempt 2, got %q", result.ErrorMessage)
	}
	if result.Answer.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", result.Answer.RetryCount)
	}
	// Transport failures are not answer feedback and must stay out of the
	// re-prompt history.
	if len(secondHistory) != 0 {
		t.Errorf("history after transient error = %+v, want empty", secondHistory)
	}
}

func TestProcess_ContentFeedbackReachesNextPrompt(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"

	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: "An answer.", SourceURLs: []string{goodURL}}, nil
	}
	var secondHistory core.AttemptHistory
	mock.ValidateFunc = func(_ context.Context, _, _ string) (bool, string, error) {
		if mock.ValidateCalls() == 1 {
			return false, "misses the pricing dimension", nil
		}
		return true, "", nil
	}
	inner := mock.GenerateFunc
	mock.GenerateFunc = func(ctx context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
		if len(req.History) > 0 {
			secondHistory = req.History
		}
		return inner(ctx, req)
	}

	o := New(mock, links.New())
	result := o.Process(context.Background(), mustQuestion(t, "What does Azure AI cost?", 2000, 5))

	if !result.Success {
		t.Fatalf("expected success on attempt 2, got %q", result.ErrorMessage)
	}
	if len(secondHistory) != 1 {
		t.Fatalf("history = %+v, want one rejection", secondHistory)
	}
	rec, _ := secondHistory.Last()
	if rec.RejectedBy != core.RejectedByContentChecker {
		t.Errorf("rejected by = %q, want content checker", rec.RejectedBy)
	}
	if rec.Reason != "misses the pricing dimension" {
		t.Errorf("reason = %q, feedback not propagated", rec.Reason)
	}
}

// Links accumulated for one question must never surface in another.
func TestProcess_QuestionIsolation(t *testing.T) {
	srv := newLinkServer(t)
	goodURL := srv.URL + "/ok"
	deadURL := srv.URL + "/gone"

	mock := agent.NewMock()
	answering := "first"
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		if answering == "first" {
			return &core.GenerationResult{Text: "First answer.", SourceURLs: []string{goodURL}}, nil
		}
		return &core.GenerationResult{Text: "Second answer.", SourceURLs: []string{deadURL}}, nil
	}

	o := New(mock, links.New())

	first := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 3))
	if !first.Success {
		t.Fatalf("first question should succeed: %q", first.ErrorMessage)
	}

	answering = "second"
	second := o.Process(context.Background(), mustQuestion(t, "What is Azure ML?", 2000, 2))
	if second.Success {
		t.Fatal("second question must not inherit the first question's valid links")
	}
	if second.Answer == nil || second.Answer.Status != core.StatusFailedTimeout {
		t.Errorf("second answer = %+v, want failed_timeout", second.Answer)
	}
}

func TestProcess_RelevanceModeFiltersOffTopicLinks(t *testing.T) {
	srv := newLinkServer(t)
	onTopic := srv.URL + "/ok/docs"
	offTopic := srv.URL + "/ok/blog"

	mock := agent.NewMock()
	mock.GenerateFunc = func(_ context.Context, _ core.GenerateRequest) (*core.GenerationResult, error) {
		return &core.GenerationResult{Text: "An answer.", SourceURLs: []string{onTopic, offTopic}}, nil
	}
	mock.RelevanceFunc = func(_ context.Context, _, _ string, urls []string) ([]core.LinkRelevance, error) {
		out := make([]core.LinkRelevance, 0, len(urls))
		for _, u := range urls {
			out = append(out, core.LinkRelevance{URL: u, Reachable: true, Relevant: u == onTopic})
		}
		return out, nil
	}

	validator := links.New(links.WithAgent(mock))
	o := New(mock, validator, WithRelevanceChecking())
	result := o.Process(context.Background(), mustQuestion(t, "What is Azure AI?", 2000, 3))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.ErrorMessage)
	}
	if len(result.Answer.Sources) != 1 || result.Answer.Sources[0] != onTopic {
		t.Errorf("sources = %v, want only the on-topic URL", result.Answer.Sources)
	}
}
