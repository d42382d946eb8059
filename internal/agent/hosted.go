// Package agent binds the orchestration core to the hosted LLM agents. One
// HostedAgent multiplexes the three roles (answerer, checker, link checker)
// over the same service endpoint; MockAgent provides the deterministic test
// binding.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
)

// HostedConfig configures the hosted agent binding.
type HostedConfig struct {
	Endpoint string
	APIKey   string
	// Models maps role → model deployment name.
	Models  map[string]string
	Timeout time.Duration
}

// HostedAgent talks JSON-over-HTTP to the hosted agent service.
type HostedAgent struct {
	cfg    HostedConfig
	client *http.Client
	retry  RetryPolicy
	log    *logging.Logger
}

// NewHosted creates the hosted binding.
func NewHosted(cfg HostedConfig, log *logging.Logger) (*HostedAgent, error) {
	if cfg.Endpoint == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "agent endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &HostedAgent{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry:  DefaultRetryPolicy(),
		log:    log,
	}, nil
}

// Name identifies the binding.
func (a *HostedAgent) Name() string { return "hosted" }

// invokeRequest is the wire request for one agent invocation.
type invokeRequest struct {
	Agent  string `json:"agent"`
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

// invokeResponse is the wire response. SourceURLs carries the URLs surfaced
// by the agent's citation mechanism, separate from any URLs in Text.
type invokeResponse struct {
	Text       string   `json:"text"`
	SourceURLs []string `json:"source_urls"`
}

// Generate produces an answer from the question answerer agent.
func (a *HostedAgent) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
	start := time.Now()
	resp, err := a.invoke(ctx, RoleAnswerer, buildGeneratePrompt(req))
	if err != nil {
		return nil, err
	}
	return &core.GenerationResult{
		Text:       resp.Text,
		SourceURLs: resp.SourceURLs,
		Duration:   time.Since(start),
	}, nil
}

// checkerReply is the structure the answer checker is prompted to emit.
type checkerReply struct {
	Approved bool   `yaml:"approved"`
	Feedback string `yaml:"feedback"`
}

// ValidateContent asks the answer checker agent to judge an answer.
func (a *HostedAgent) ValidateContent(ctx context.Context, question, answer string) (bool, string, error) {
	resp, err := a.invoke(ctx, RoleChecker, buildValidatePrompt(question, answer))
	if err != nil {
		return false, "", err
	}

	var reply checkerReply
	if err := yaml.Unmarshal([]byte(stripFences(resp.Text)), &reply); err != nil {
		return false, "", (&core.DomainError{
			Category: core.ErrCatInternal,
			Code:     core.CodeParseFailed,
			Message:  "answer checker reply was not parseable",
		}).WithCause(err).WithDetail("reply", resp.Text)
	}
	if reply.Feedback == "" {
		reply.Feedback = "no feedback provided"
	}
	return reply.Approved, reply.Feedback, nil
}

// relevanceReply is one item of the link checker's YAML list reply.
type relevanceReply struct {
	URL      string `yaml:"url"`
	Relevant bool   `yaml:"relevant"`
	Title    string `yaml:"title"`
}

// CheckLinkRelevance asks the link checker agent to judge page relevance.
func (a *HostedAgent) CheckLinkRelevance(ctx context.Context, question, answer string, urls []string) ([]core.LinkRelevance, error) {
	resp, err := a.invoke(ctx, RoleLinkChecker, buildRelevancePrompt(question, answer, urls))
	if err != nil {
		return nil, err
	}

	var replies []relevanceReply
	if err := yaml.Unmarshal([]byte(stripFences(resp.Text)), &replies); err != nil {
		return nil, (&core.DomainError{
			Category: core.ErrCatInternal,
			Code:     core.CodeParseFailed,
			Message:  "link checker reply was not parseable",
		}).WithCause(err).WithDetail("reply", resp.Text)
	}

	out := make([]core.LinkRelevance, 0, len(replies))
	for _, r := range replies {
		out = append(out, core.LinkRelevance{URL: r.URL, Relevant: r.Relevant, Title: r.Title})
	}
	return out, nil
}

// invoke posts one prompt to the service, retrying transient failures.
func (a *HostedAgent) invoke(ctx context.Context, role, prompt string) (*invokeResponse, error) {
	var out *invokeResponse
	err := a.retry.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.post(ctx, role, prompt)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	return out, err
}

func (a *HostedAgent) post(ctx context.Context, role, prompt string) (*invokeResponse, error) {
	body, err := json.Marshal(invokeRequest{
		Agent:  role,
		Model:  a.cfg.Models[role],
		Prompt: prompt,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.cfg.Endpoint, "/")+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	a.log.WithAgent(role).Debug("invoking hosted agent", "bytes", len(body))
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.ErrTimeout(fmt.Sprintf("%s call timed out", role)).WithCause(err)
		}
		return nil, core.ErrNetwork(fmt.Sprintf("%s call failed", role)).WithCause(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, core.ErrNetwork("reading agent response").WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, core.ErrAuth(fmt.Sprintf("agent service rejected credentials (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, core.ErrRateLimit("agent service rate limited the call")
	case resp.StatusCode >= 500:
		return nil, core.ErrNetwork(fmt.Sprintf("agent service unavailable (status %d)", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, &core.DomainError{
			Category: core.ErrCatInternal,
			Code:     core.CodeAgentUnavailable,
			Message:  fmt.Sprintf("unexpected agent status %d", resp.StatusCode),
		}
	}

	var out invokeResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, (&core.DomainError{
			Category: core.ErrCatInternal,
			Code:     core.CodeParseFailed,
			Message:  "agent response was not valid JSON",
		}).WithCause(err)
	}
	return &out, nil
}

// stripFences removes a surrounding markdown code fence, which hosted
// agents add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
