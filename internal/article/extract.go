// Package article fetches news articles and reduces them to plain text
// suitable for a script-writer prompt.
package article

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxBodyBytes        = 2 << 20
	maxTextChars        = 4000
)

// Whole elements whose text content is navigation or code, not article body.
var blockPatterns = func() []*regexp.Regexp {
	tags := []string{"script", "style", "nav", "footer", "aside"}
	patterns := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		patterns = append(patterns, regexp.MustCompile(`(?is)<`+tag+`[^>]*>.*?</`+tag+`>`))
	}
	return patterns
}()

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Fetcher downloads article pages over HTTP.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{client: client}
}

// Extract downloads url and returns its visible text, truncated to a bounded
// length. Any transport or HTTP failure is returned to the caller; fetch
// failures are fatal for a job unless it already carries article text.
func (f *Fetcher) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch article: status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("fetch article: read body: %w", err)
	}
	return ExtractText(string(body)), nil
}

// ExtractText strips markup from an HTML document and collapses whitespace.
func ExtractText(html string) string {
	for _, p := range blockPatterns {
		html = p.ReplaceAllString(html, "")
	}
	text := tagPattern.ReplaceAllString(html, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) > maxTextChars {
		text = text[:maxTextChars]
	}
	return text
}
