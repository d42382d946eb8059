package agent

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
)

// MockAgent is the deterministic test binding. Behavior can be scripted
// per call through the function fields; unset fields fall back to canned
// output that always approves.
type MockAgent struct {
	GenerateFunc  func(ctx context.Context, req core.GenerateRequest) (*core.GenerationResult, error)
	ValidateFunc  func(ctx context.Context, question, answer string) (bool, string, error)
	RelevanceFunc func(ctx context.Context, question, answer string, urls []string) ([]core.LinkRelevance, error)

	generateCalls int
	validateCalls int
}

// NewMock creates a mock with canned defaults.
func NewMock() *MockAgent { return &MockAgent{} }

// Name identifies the binding.
func (m *MockAgent) Name() string { return "mock" }

// Generate returns scripted or canned text.
func (m *MockAgent) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
	m.generateCalls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &core.GenerationResult{
		Text: fmt.Sprintf("This is a canned answer to %q produced by the mock agent binding.", req.Question),
		SourceURLs: []string{
			"https://learn.microsoft.com/azure/ai-services/",
		},
	}, nil
}

// ValidateContent approves unless scripted otherwise.
func (m *MockAgent) ValidateContent(ctx context.Context, question, answer string) (bool, string, error) {
	m.validateCalls++
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, question, answer)
	}
	return true, "answer addresses the question", nil
}

// CheckLinkRelevance marks everything relevant unless scripted otherwise.
func (m *MockAgent) CheckLinkRelevance(ctx context.Context, question, answer string, urls []string) ([]core.LinkRelevance, error) {
	if m.RelevanceFunc != nil {
		return m.RelevanceFunc(ctx, question, answer, urls)
	}
	out := make([]core.LinkRelevance, 0, len(urls))
	for _, u := range urls {
		out = append(out, core.LinkRelevance{URL: u, Reachable: true, Relevant: true})
	}
	return out, nil
}

// GenerateCalls reports how many times Generate ran.
func (m *MockAgent) GenerateCalls() int { return m.generateCalls }

// ValidateCalls reports how many times ValidateContent ran.
func (m *MockAgent) ValidateCalls() int { return m.validateCalls }
