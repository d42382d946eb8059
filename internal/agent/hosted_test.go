package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
)

func newTestAgent(t *testing.T, handler http.HandlerFunc) (*HostedAgent, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewHosted(HostedConfig{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewHosted: %v", err)
	}
	a.retry = RetryPolicy{MaxAttempts: 1}
	return a, srv
}

func TestHosted_Generate(t *testing.T) {
	var gotReq invokeRequest
	a, _ := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(invokeResponse{
			Text:       "Azure AI is a set of services.",
			SourceURLs: []string{"https://learn.microsoft.com/azure/ai-services/"},
		})
	})

	res, err := a.Generate(context.Background(), core.GenerateRequest{
		Question: "What is Azure AI?", CharLimit: 2000,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Azure AI is a set of services." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if len(res.SourceURLs) != 1 {
		t.Errorf("source urls not surfaced: %v", res.SourceURLs)
	}
	if gotReq.Agent != RoleAnswerer {
		t.Errorf("expected answerer role, got %q", gotReq.Agent)
	}
	if !strings.Contains(gotReq.Prompt, "What is Azure AI?") {
		t.Error("prompt missing question")
	}
}

func TestHosted_GenerateEmbedsHistory(t *testing.T) {
	var gotReq invokeRequest
	a, _ := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(invokeResponse{Text: "retry answer"})
	})

	history := core.AttemptHistory{
		{Number: 1, RejectedBy: core.RejectedByCharLimit, Reason: "exceeds limit (2500>2000)"},
	}
	_, err := a.Generate(context.Background(), core.GenerateRequest{
		Question: "What is Azure AI?", CharLimit: 2000, History: history,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(gotReq.Prompt, "exceeds limit (2500>2000)") {
		t.Errorf("history not embedded in prompt:\n%s", gotReq.Prompt)
	}
	if !strings.Contains(gotReq.Prompt, "improved answer") {
		t.Error("standard retry template expected")
	}
}

func TestHosted_GenerateKeepAnswerTemplate(t *testing.T) {
	var gotReq invokeRequest
	a, _ := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(invokeResponse{Text: "same answer"})
	})

	history := core.AttemptHistory{
		{Number: 1, RejectedBy: core.RejectedByContentChecker, Reason: "too vague"},
		{
			Number:      2,
			RejectedBy:  core.RejectedByLinkCheckerNeedsLinks,
			Reason:      "needs supporting links",
			AnswerText:  "The approved answer text.",
			Instruction: core.InstructionKeepAnswerFindLinks,
		},
	}
	_, err := a.Generate(context.Background(), core.GenerateRequest{
		Question: "What is Azure AI?", CharLimit: 2000, History: history,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(gotReq.Prompt, "EXACTLY as written") {
		t.Errorf("keep-answer template expected:\n%s", gotReq.Prompt)
	}
	if !strings.Contains(gotReq.Prompt, "The approved answer text.") {
		t.Error("approved answer missing from prompt")
	}
	if strings.Contains(gotReq.Prompt, "improved answer") {
		t.Error("standard template must not be used for keep-answer retries")
	}
}

func TestHosted_ValidateContentParsesReply(t *testing.T) {
	replies := []string{
		"approved: true\nfeedback: looks complete",
		"```yaml\napproved: false\nfeedback: misses the pricing tier\n```",
	}
	var call int32
	a, _ := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt32(&call, 1) - 1
		_ = json.NewEncoder(w).Encode(invokeResponse{Text: replies[i]})
	})

	approved, feedback, err := a.ValidateContent(context.Background(), "q", "a")
	if err != nil || !approved {
		t.Fatalf("first reply should approve: %v %v", approved, err)
	}
	if feedback != "looks complete" {
		t.Errorf("feedback: %q", feedback)
	}

	approved, feedback, err = a.ValidateContent(context.Background(), "q", "a")
	if err != nil || approved {
		t.Fatalf("fenced reply should reject: %v %v", approved, err)
	}
	if feedback != "misses the pricing tier" {
		t.Errorf("feedback: %q", feedback)
	}
}

func TestHosted_CheckLinkRelevance(t *testing.T) {
	a, _ := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		var req invokeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Agent != RoleLinkChecker {
			t.Errorf("expected link checker role, got %q", req.Agent)
		}
		_ = json.NewEncoder(w).Encode(invokeResponse{Text: strings.Join([]string{
			"- url: https://a.example",
			"  relevant: true",
			"  title: Overview",
			"- url: https://b.example",
			"  relevant: false",
		}, "\n")})
	})

	got, err := a.CheckLinkRelevance(context.Background(), "q", "a",
		[]string{"https://a.example", "https://b.example"})
	if err != nil {
		t.Fatalf("CheckLinkRelevance: %v", err)
	}
	if len(got) != 2 || !got[0].Relevant || got[1].Relevant {
		t.Errorf("unexpected judgments: %+v", got)
	}
	if got[0].Title != "Overview" {
		t.Errorf("title not parsed: %+v", got[0])
	}
}

func TestHosted_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		cat    core.ErrorCategory
	}{
		{http.StatusUnauthorized, core.ErrCatAuth},
		{http.StatusForbidden, core.ErrCatAuth},
		{http.StatusTooManyRequests, core.ErrCatRateLimit},
		{http.StatusBadGateway, core.ErrCatNetwork},
	}
	for _, tt := range tests {
		a, _ := newTestAgent(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := a.Generate(context.Background(), core.GenerateRequest{Question: "q?"})
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if got := core.GetCategory(err); got != tt.cat {
			t.Errorf("status %d: expected category %s, got %s", tt.status, tt.cat, got)
		}
	}
}

func TestHosted_RetriesTransientErrors(t *testing.T) {
	var calls int32
	a, _ := newTestAgent(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(invokeResponse{Text: "recovered"})
	})
	a.retry = RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	res, err := a.Generate(context.Background(), core.GenerateRequest{Question: "q?"})
	if err != nil {
		t.Fatalf("expected recovery after retry: %v", err)
	}
	if res.Text != "recovered" || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("unexpected result %q after %d calls", res.Text, calls)
	}
}

func TestHosted_DoesNotRetryAuth(t *testing.T) {
	var calls int32
	a, _ := newTestAgent(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	a.retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := a.Generate(context.Background(), core.GenerateRequest{Question: "q?"})
	if err == nil {
		t.Fatal("expected auth error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("auth failure must not be retried, got %d calls", calls)
	}
}

func TestNewHosted_RequiresEndpoint(t *testing.T) {
	_, err := NewHosted(HostedConfig{}, nil)
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeInvalidConfig {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"```yaml\napproved: true\n```", "approved: true"},
		{"```\nbody\n```", "body"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
