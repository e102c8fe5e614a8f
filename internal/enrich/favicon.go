package enrich

import (
	"fmt"
	"net/url"
)

const faviconTemplate = "https://www.google.com/s2/favicons?domain=%s&sz=32"

// FaviconURL derives a favicon url from the site url's host. Returns
// nil when the url has no parseable host; a favicon is never required.
func FaviconURL(rawURL string) *string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := parsed.Hostname()
	if host == "" {
		return nil
	}
	favicon := fmt.Sprintf(faviconTemplate, host)
	return &favicon
}
