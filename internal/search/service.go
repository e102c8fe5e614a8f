package search

import (
	"context"
	"log"

	"linkboard/api/internal/store"
)

// Fallback is the Postgres FTS path used when Meilisearch is absent or
// unhealthy. The store implements it.
type Fallback interface {
	SearchSites(ctx context.Context, ownerID, query string, limit int) ([]store.SiteHit, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// Postgres FTS. Results are always scoped to the querying owner.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, fallback Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	hits, err := s.fallback.SearchSites(ctx, q.OwnerID, q.Text, q.Limit)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:           hit.ID,
			Title:        hit.Title,
			URL:          hit.URL,
			FaviconURL:   hit.FaviconURL,
			CategoryID:   hit.CategoryID,
			CategoryName: hit.CategoryName,
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text}
}

// IndexSite indexes a site (fire-and-forget to Meilisearch).
func (s *Service) IndexSite(rec SiteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSite(rec); err != nil {
			log.Printf("search: index site %s: %v", rec.ID, err)
		}
	}()
}

// RemoveSite removes a site from the index (fire-and-forget).
func (s *Service) RemoveSite(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSite(id); err != nil {
			log.Printf("search: delete site %s: %v", id, err)
		}
	}()
}

// RemoveCategorySites drops all indexed sites of a deleted category
// (fire-and-forget).
func (s *Service) RemoveCategorySites(categoryID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteCategorySites(categoryID); err != nil {
			log.Printf("search: delete category sites %s: %v", categoryID, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
