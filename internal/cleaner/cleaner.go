// Package cleaner strips URLs, citation artifacts, and markdown decoration
// from agent-generated answers before the answer runs the validation gates.
package cleaner

import (
	"regexp"
	"strings"
)

var (
	// A URL runs until whitespace or a character that cannot appear in one.
	urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

	// [3] and [3:0†source]-style citation markers.
	bracketCitation = regexp.MustCompile(`\[\d+(?::\d+[^\]]*)?\]`)
	parenCitation   = regexp.MustCompile(`\(\d+\)`)
	// Full-width bracket source markers emitted by some hosted agents.
	wideSourceMarker = regexp.MustCompile(`【[^】]*】|〔[^〕]*〕`)

	boldMarker   = regexp.MustCompile(`\*{1,3}([^*\n]+)\*{1,3}`)
	underMarker  = regexp.MustCompile(`_{1,3}([^_\n]+)_{1,3}`)
	codeMarker   = regexp.MustCompile("`([^`\n]*)`")
	headingHash  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	listPrefix   = regexp.MustCompile(`(?m)^[ \t]*(?:\d+[.)]|[-*+•])\s+`)
	blankLineRun = regexp.MustCompile(`\n[ \t]*\n+`)
	spaceRun     = regexp.MustCompile(`\s+`)
	dangledStop  = regexp.MustCompile(`\s+\.$`)

	// Trailing call-to-action boilerplate, matched only at the end of the
	// text, one line at a time.
	trailingBoilerplate = regexp.MustCompile(
		`(?i)^(?:references?|sources?|learn more|read more|see also|` +
			`for more (?:information|details)(?:,? see)?|more info(?:rmation)?)\s*:?\s*$`)
)

// Clean extracts URLs from raw text and strips citation and markdown
// artifacts. URLs come back in first-seen order with duplicates preserved;
// duplicate suppression happens later, when they are combined with the
// agent-surfaced source URLs. Clean never fails: text without URLs or
// citations passes through with only whitespace normalization.
func Clean(raw string) (string, []string) {
	urls := urlPattern.FindAllString(raw, -1)

	text := urlPattern.ReplaceAllString(raw, "")
	text = bracketCitation.ReplaceAllString(text, "")
	text = parenCitation.ReplaceAllString(text, "")
	text = wideSourceMarker.ReplaceAllString(text, "")

	text = boldMarker.ReplaceAllString(text, "$1")
	text = underMarker.ReplaceAllString(text, "$1")
	text = codeMarker.ReplaceAllString(text, "$1")
	text = headingHash.ReplaceAllString(text, "")
	text = listPrefix.ReplaceAllString(text, "")

	text = stripTrailingBoilerplate(text)

	text = blankLineRun.ReplaceAllString(text, " ")
	text = spaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = dangledStop.ReplaceAllString(text, ".")

	return text, urls
}

// stripTrailingBoilerplate drops call-to-action lines anchored at the end
// of the text. Interior occurrences are left alone.
func stripTrailingBoilerplate(text string) string {
	lines := strings.Split(text, "\n")
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line == "" || trailingBoilerplate.MatchString(line) {
			end--
			continue
		}
		break
	}
	return strings.Join(lines[:end], "\n")
}
