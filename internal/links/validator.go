// Package links checks whether candidate documentation URLs are usable:
// reachable over HTTP, and optionally topically relevant as judged by the
// link checker agent.
package links

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
)

// DefaultProbeTimeout bounds one reachability probe.
const DefaultProbeTimeout = 10 * time.Second

// Validator probes URL reachability. When an agent is attached, a URL must
// be both reachable and relevant to count as valid.
type Validator struct {
	client  *http.Client
	agent   core.AgentCapability
	log     *logging.Logger
	timeout time.Duration
}

// Option configures the validator.
type Option func(*Validator)

// WithTimeout sets the per-URL probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) { v.timeout = d }
}

// WithHTTPClient replaces the probe client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Validator) { v.client = c }
}

// WithAgent enables agent-assisted relevance judgment.
func WithAgent(agent core.AgentCapability) Option {
	return func(v *Validator) { v.agent = agent }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// New creates a validator. The probe client follows redirects.
func New(opts ...Option) *Validator {
	v := &Validator{
		log:     logging.NewNop(),
		timeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = &http.Client{Timeout: v.timeout}
	}
	return v
}

// Validate probes every URL. It returns allValid=true when at least one
// URL is valid: invalid URLs are dropped from the output, not treated as a
// blocking failure. Empty input is a hard failure — an answer without any
// candidate link can never pass link validation.
func (v *Validator) Validate(ctx context.Context, urls []string) (bool, []string, string) {
	if len(urls) == 0 {
		return false, nil, "no documentation URLs provided"
	}

	valid := make([]string, 0, len(urls))
	var feedback []string
	for _, url := range urls {
		status, err := v.probe(ctx, url)
		switch {
		case err != nil:
			feedback = append(feedback, fmt.Sprintf("%s: %v", url, err))
		case status == http.StatusOK:
			valid = append(valid, url)
		default:
			feedback = append(feedback, fmt.Sprintf("%s: status %d", url, status))
		}
	}

	if len(valid) == 0 {
		if len(feedback) == 0 {
			feedback = append(feedback, "no reachable documentation URLs")
		}
		return false, nil, strings.Join(feedback, "; ")
	}
	v.log.Debug("link validation passed", "valid", len(valid), "checked", len(urls))
	return true, valid, strings.Join(feedback, "; ")
}

// probe issues a HEAD request and reports the final status after redirects.
func (v *Validator) probe(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// ValidateWithRelevance additionally asks the link checker agent whether
// each reachable page is on-topic for the question and answer. A URL is
// valid only when reachable AND relevant. Per-URL reports are returned for
// observability regardless of the outcome.
func (v *Validator) ValidateWithRelevance(ctx context.Context, question, answer string, urls []string) (bool, []string, string, []core.LinkRelevance) {
	if len(urls) == 0 {
		return false, nil, "no documentation URLs provided", nil
	}
	if v.agent == nil {
		ok, valid, feedback := v.Validate(ctx, urls)
		return ok, valid, feedback, nil
	}

	reports := make([]core.LinkRelevance, 0, len(urls))
	reachable := make([]string, 0, len(urls))
	for _, url := range urls {
		status, err := v.probe(ctx, url)
		rep := core.LinkRelevance{URL: url, Reachable: err == nil && status == http.StatusOK}
		if rep.Reachable {
			rep.Title = v.fetchTitle(ctx, url)
			reachable = append(reachable, url)
		}
		reports = append(reports, rep)
	}

	if len(reachable) > 0 {
		judged, err := v.agent.CheckLinkRelevance(ctx, question, answer, reachable)
		if err != nil {
			v.log.Warn("relevance check failed, falling back to reachability", "error", err)
			for i := range reports {
				reports[i].Relevant = reports[i].Reachable
			}
		} else {
			relevant := make(map[string]bool, len(judged))
			for _, j := range judged {
				relevant[j.URL] = j.Relevant
			}
			for i := range reports {
				reports[i].Relevant = reports[i].Reachable && relevant[reports[i].URL]
			}
		}
	}

	valid := make([]string, 0, len(reports))
	var feedback []string
	for _, rep := range reports {
		switch {
		case rep.Reachable && rep.Relevant:
			valid = append(valid, rep.URL)
		case !rep.Reachable:
			feedback = append(feedback, fmt.Sprintf("%s: unreachable", rep.URL))
		default:
			feedback = append(feedback, fmt.Sprintf("%s: not relevant to the question", rep.URL))
		}
	}

	if len(valid) == 0 {
		if len(feedback) == 0 {
			feedback = append(feedback, "no usable documentation URLs")
		}
		return false, nil, strings.Join(feedback, "; "), reports
	}
	return true, valid, strings.Join(feedback, "; "), reports
}
