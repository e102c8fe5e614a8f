// Package enrich derives best-effort metadata (page title, favicon
// url) for a site at creation time. Failures never reach the caller;
// they degrade to a placeholder.
package enrich

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// TitlePlaceholder is returned whenever a page title cannot be
// obtained, for any reason.
const TitlePlaceholder = "No Title"

// Pages larger than this are cut off before parsing; the <title>
// element lives in the head anyway.
const maxBodyBytes = 1 << 20

type Fetcher struct {
	client *http.Client
	cache  *Cache
}

// NewFetcher creates a title fetcher with a bounded timeout. cache may
// be nil when Redis is not configured.
func NewFetcher(timeout time.Duration, cache *Cache) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache,
	}
}

// Title fetches the page title for rawURL. It never returns an error:
// network failures, non-2xx statuses, and pages without a <title>
// element all yield TitlePlaceholder.
func (f *Fetcher) Title(ctx context.Context, rawURL string) string {
	if f.cache != nil {
		if title, ok := f.cache.GetTitle(ctx, rawURL); ok {
			return title
		}
	}

	title := f.fetchTitle(ctx, rawURL)
	if f.cache != nil && title != TitlePlaceholder {
		f.cache.SetTitle(ctx, rawURL, title)
	}
	return title
}

func (f *Fetcher) fetchTitle(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return TitlePlaceholder
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return TitlePlaceholder
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TitlePlaceholder
	}

	title := extractTitle(io.LimitReader(resp.Body, maxBodyBytes))
	if title == "" {
		return TitlePlaceholder
	}
	return title
}

// extractTitle returns the text of the first <title> element.
func extractTitle(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	inTitle := false
	var title strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" && inTitle {
				return strings.TrimSpace(title.String())
			}
		case html.TextToken:
			if inTitle {
				title.Write(tokenizer.Text())
			}
		}
	}
}
