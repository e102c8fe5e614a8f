package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	FaviconURL   *string `json:"favicon_url"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
}

// Query describes a search request, always scoped to one owner.
type Query struct {
	OwnerID string
	Text    string
	Limit   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// SiteRecord is the data we index for a site.
type SiteRecord struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"ownerId"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	FaviconURL   *string `json:"faviconUrl"`
}
