package links

import (
	"context"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// maxTitleBytes caps how much of a page is read looking for the title.
const maxTitleBytes = 64 * 1024

// fetchTitle retrieves the page <title> for relevance reporting. Failures
// are non-fatal; an empty title is returned.
func (v *Validator) fetchTitle(ctx context.Context, url string) string {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	return extractTitle(io.LimitReader(resp.Body, maxTitleBytes))
}

// extractTitle walks the HTML token stream until the first <title>.
func extractTitle(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			inTitle = string(name) == "title"
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}
