// Package columns classifies spreadsheet headers into the three roles the
// batch driver needs: where to read questions, where to write answers, and
// where to write documentation links.
package columns

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
)

// None marks a role with no matching column.
const None = -1

// Mapping assigns 0-based column indices to roles. Question is mandatory;
// Response and Documentation may be None.
type Mapping struct {
	Question      int
	Response      int
	Documentation int
}

// Valid reports whether the mapping satisfies the structural invariants:
// a question column exists, all indices are in range, and the question and
// response columns differ.
func (m Mapping) Valid(numHeaders int) error {
	if m.Question == None {
		return core.ErrValidation(core.CodeInvalidMapping, "no question column identified")
	}
	for _, idx := range []int{m.Question, m.Response, m.Documentation} {
		if idx != None && (idx < 0 || idx >= numHeaders) {
			return core.ErrValidation(core.CodeInvalidMapping,
				fmt.Sprintf("column index %d out of range [0,%d)", idx, numHeaders))
		}
	}
	if m.Response != None && m.Response == m.Question {
		return core.ErrValidation(core.CodeInvalidMapping,
			"question and response cannot share a column")
	}
	return nil
}

// Keyword tiers for the question column, strongest first. Bare "q" only
// counts as a whole token so headers like "Quarter" or "Q#" don't shadow a
// real "Question" column.
var questionTiers = [][]string{
	{"question"},
	{"query", "ask", "prompt"},
}

// Priority-ordered terms for the response and documentation columns. The
// scan tries each term against every header before moving to the next term,
// and within one term the leftmost header wins.
var (
	responseTerms = []string{"response", "answer", "reply", "result", "output"}
	docTerms      = []string{"documentation", "docs", "reference", "link", "url", "source"}
)

// Identifier classifies headers. The zero value is not usable; call New.
type Identifier struct {
	agent core.AgentCapability
	log   *logging.Logger
}

// Option configures the identifier.
type Option func(*Identifier)

// WithAgent enables the agent-assisted path. Heuristics remain the fallback.
func WithAgent(agent core.AgentCapability) Option {
	return func(id *Identifier) { id.agent = agent }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(id *Identifier) { id.log = log }
}

// New creates an identifier.
func New(opts ...Option) *Identifier {
	id := &Identifier{log: logging.NewNop()}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// Identify classifies headers using keyword heuristics. The returned mapping
// may be structurally invalid (Question == None) when no header resembles a
// question column; callers decide whether that means "skip the sheet".
func (id *Identifier) Identify(headers []string) Mapping {
	m := Mapping{
		Question:      id.findQuestion(headers),
		Response:      findByTerms(headers, responseTerms),
		Documentation: findByTerms(headers, docTerms),
	}
	if m.Response == m.Question {
		m.Response = None
	}
	id.log.Debug("heuristic column mapping",
		"question", m.Question, "response", m.Response, "documentation", m.Documentation)
	return m
}

// IdentifyWithSamples asks the agent to classify the headers, showing it up
// to three sample values per column. Malformed replies and mappings that
// fail validation fall back to the heuristic path.
func (id *Identifier) IdentifyWithSamples(ctx context.Context, headers []string, samples [][]string) Mapping {
	if id.agent == nil {
		return id.Identify(headers)
	}

	gen, err := id.agent.Generate(ctx, core.GenerateRequest{
		Question: buildMappingPrompt(headers, samples),
	})
	if err != nil {
		id.log.Warn("agent column mapping failed, using heuristics", "error", err)
		return id.Identify(headers)
	}

	m, err := parseMappingReply(gen.Text)
	if err != nil {
		id.log.Warn("agent column mapping unparseable, using heuristics", "error", err)
		return id.Identify(headers)
	}
	if err := m.Valid(len(headers)); err != nil {
		id.log.Warn("agent column mapping invalid, using heuristics", "error", err)
		return id.Identify(headers)
	}
	return m
}

// findQuestion scans the tiers strongest-first, then falls back to a fuzzy
// match so close misspellings ("Qestion") still resolve. Fuzzy matching only
// runs when every exact tier came up empty.
func (id *Identifier) findQuestion(headers []string) int {
	for _, tier := range questionTiers {
		if idx := findByTerms(headers, tier); idx != None {
			return idx
		}
	}
	for i, h := range headers {
		if hasToken(h, "q") {
			return i
		}
	}
	return fuzzyQuestion(headers)
}

// findByTerms returns the leftmost header containing any term, trying terms
// in priority order: all headers are scanned for terms[0] before terms[1]
// is considered at all.
func findByTerms(headers []string, terms []string) int {
	for _, term := range terms {
		for i, h := range headers {
			if strings.Contains(normalize(h), term) {
				return i
			}
		}
	}
	return None
}

// fuzzyQuestion accepts a header whose letters form a subsequence of
// "question", catching dropped-letter misspellings. Short headers are
// excluded so stray abbreviations don't win.
func fuzzyQuestion(headers []string) int {
	best, bestScore := None, 0
	for i, h := range headers {
		n := normalize(h)
		if len(n) < 4 {
			continue
		}
		matches := fuzzy.Find(n, []string{"question"})
		if len(matches) > 0 && matches[0].Score > bestScore {
			best, bestScore = i, matches[0].Score
		}
	}
	return best
}

func normalize(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// hasToken reports whether the header contains term as a whole token,
// delimited by any non-letter, non-digit rune.
func hasToken(header, term string) bool {
	tokens := strings.FieldsFunc(normalize(header), func(r rune) bool {
		return !isAlnum(r)
	})
	for _, tok := range tokens {
		if tok == term {
			return true
		}
	}
	return false
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// buildMappingPrompt lays out headers with up to three sample values each
// and asks for a strict JSON reply.
func buildMappingPrompt(headers []string, samples [][]string) string {
	var b strings.Builder
	b.WriteString("Classify these spreadsheet columns. Reply with ONLY a JSON object ")
	b.WriteString(`of the form {"question": <index or null>, "response": <index or null>, `)
	b.WriteString(`"documentation": <index or null>} using 0-based column indices.`)
	b.WriteString("\n\nColumns:\n")
	for i, h := range headers {
		fmt.Fprintf(&b, "%d. %q", i, h)
		if i < len(samples) && len(samples[i]) > 0 {
			vals := samples[i]
			if len(vals) > 3 {
				vals = vals[:3]
			}
			fmt.Fprintf(&b, " (samples: %s)", strings.Join(vals, " | "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type mappingReply struct {
	Question      *int `json:"question"`
	Response      *int `json:"response"`
	Documentation *int `json:"documentation"`
}

func parseMappingReply(text string) (Mapping, error) {
	text = stripFences(text)
	var reply mappingReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return Mapping{}, core.ErrValidation(core.CodeParseFailed,
			fmt.Sprintf("column mapping reply is not valid JSON: %v", err))
	}
	return Mapping{
		Question:      deref(reply.Question),
		Response:      deref(reply.Response),
		Documentation: deref(reply.Documentation),
	}, nil
}

func deref(p *int) int {
	if p == nil {
		return None
	}
	return *p
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
