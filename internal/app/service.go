package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"linkboard/api/internal/auth"
	"linkboard/api/internal/config"
	"linkboard/api/internal/enrich"
	"linkboard/api/internal/googleid"
	"linkboard/api/internal/search"
	"linkboard/api/internal/store"
	"linkboard/api/internal/util"
)

// Session is the authenticated owner a request executes on behalf of.
type Session struct {
	Token     string
	OwnerID   string
	Email     string
	ExpiresAt time.Time
}

// OrderPair is one element of a batch reorder request body.
type OrderPair struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

type dataStore interface {
	EnsureOwner(ctx context.Context, id, googleSub, email string) (store.Owner, error)
	GetOwner(ctx context.Context, ownerID string) (store.Owner, error)
	CreateCategory(ctx context.Context, id, ownerID, name string) (store.Category, error)
	ListCategories(ctx context.Context, ownerID string) ([]store.Category, error)
	GetCategory(ctx context.Context, ownerID, categoryID string) (store.Category, error)
	UpdateCategory(ctx context.Context, ownerID, categoryID, name string) (store.Category, error)
	DeleteCategory(ctx context.Context, ownerID, categoryID string) error
	CreateSite(ctx context.Context, id, ownerID, categoryID, title, url string, faviconURL *string) (store.Site, error)
	GetSite(ctx context.Context, ownerID, siteID string) (store.Site, error)
	UpdateSiteTitle(ctx context.Context, ownerID, siteID, title string) (store.Site, error)
	DeleteSite(ctx context.Context, ownerID, siteID string) error
	ReorderCategories(ctx context.Context, ownerID string, updates []store.OrderUpdate) error
	ReorderSites(ctx context.Context, ownerID string, updates []store.OrderUpdate) error
	MoveSite(ctx context.Context, ownerID, siteID, newCategoryID string) error
	SearchSites(ctx context.Context, ownerID, query string, limit int) ([]store.SiteHit, error)
	Ping(ctx context.Context) error
}

type credentialVerifier interface {
	Verify(ctx context.Context, rawToken string) (googleid.Identity, error)
}

type titleFetcher interface {
	Title(ctx context.Context, rawURL string) string
}

type Service struct {
	cfg      config.Config
	store    dataStore
	verifier credentialVerifier
	fetcher  titleFetcher
	search   *search.Service
}

func New(cfg config.Config, dataStore dataStore, verifier credentialVerifier, fetcher titleFetcher, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		verifier: verifier,
		fetcher:  fetcher,
		search:   searchService,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// LoginWithGoogle exchanges a Google ID token for an owner session,
// provisioning the owner on first login.
func (s *Service) LoginWithGoogle(ctx context.Context, rawToken string) (Session, error) {
	if strings.TrimSpace(s.cfg.GoogleClientID) == "" {
		return Session{}, misconfigured("Google client id is not configured")
	}

	identity, err := s.verifier.Verify(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		if errors.Is(err, googleid.ErrInvalidCredential) {
			return Session{}, invalidCredential()
		}
		return Session{}, fmt.Errorf("verify credential: %w", err)
	}

	owner, err := s.store.EnsureOwner(ctx, util.NewID("own"), identity.Sub, identity.Email)
	if err != nil {
		return Session{}, fmt.Errorf("ensure owner: %w", err)
	}

	return s.issueSession(owner)
}

func (s *Service) issueSession(owner store.Owner) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   owner.ID,
		Email: owner.Email,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{
		Token:     token,
		OwnerID:   owner.ID,
		Email:     owner.Email,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token and resolves its owner. A
// valid signature over an unknown subject is still unauthenticated.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	owner, err := s.store.GetOwner(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, fmt.Errorf("resolve owner: %w", err)
	}
	return Session{
		Token:     token,
		OwnerID:   owner.ID,
		Email:     owner.Email,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) ListCategories(ctx context.Context, session Session) ([]map[string]any, error) {
	categories, err := s.store.ListCategories(ctx, session.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	payload := make([]map[string]any, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, categoryPayload(category))
	}
	return payload, nil
}

func (s *Service) CreateCategory(ctx context.Context, session Session, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	category, err := s.store.CreateCategory(ctx, util.NewID("cat"), session.OwnerID, name)
	if err != nil {
		return nil, mapStoreError(err, "create category")
	}
	return categoryPayload(category), nil
}

func (s *Service) UpdateCategory(ctx context.Context, session Session, categoryID, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	category, err := s.store.UpdateCategory(ctx, session.OwnerID, categoryID, name)
	if err != nil {
		return nil, mapStoreError(err, "update category")
	}
	return categoryPayload(category), nil
}

func (s *Service) DeleteCategory(ctx context.Context, session Session, categoryID string) error {
	if err := s.store.DeleteCategory(ctx, session.OwnerID, categoryID); err != nil {
		return mapStoreError(err, "delete category")
	}
	if s.search != nil {
		s.search.RemoveCategorySites(categoryID)
	}
	return nil
}

// CreateSite enriches the site before persisting it: the title fetch
// may take up to the configured timeout, so it happens strictly before
// the store transaction opens. A failed fetch degrades to a
// placeholder title, never to an error.
func (s *Service) CreateSite(ctx context.Context, session Session, categoryID, url, title string) (map[string]any, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, validationError("url is required")
	}

	category, err := s.store.GetCategory(ctx, session.OwnerID, categoryID)
	if err != nil {
		return nil, mapStoreError(err, "resolve category")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = s.fetcher.Title(ctx, url)
	}
	faviconURL := enrich.FaviconURL(url)

	site, err := s.store.CreateSite(ctx, util.NewID("site"), session.OwnerID, categoryID, title, url, faviconURL)
	if err != nil {
		return nil, mapStoreError(err, "create site")
	}

	s.indexSite(session.OwnerID, site, category.Name)
	return sitePayload(site), nil
}

func (s *Service) UpdateSiteTitle(ctx context.Context, session Session, siteID, title string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}
	site, err := s.store.UpdateSiteTitle(ctx, session.OwnerID, siteID, title)
	if err != nil {
		return nil, mapStoreError(err, "update site title")
	}
	s.reindexSite(ctx, session.OwnerID, site)
	return sitePayload(site), nil
}

func (s *Service) DeleteSite(ctx context.Context, session Session, siteID string) error {
	if err := s.store.DeleteSite(ctx, session.OwnerID, siteID); err != nil {
		return mapStoreError(err, "delete site")
	}
	if s.search != nil {
		s.search.RemoveSite(siteID)
	}
	return nil
}

// ReorderCategories and ReorderSites share one contract: every id in
// the batch must be the caller's, or nothing is applied.
func (s *Service) ReorderCategories(ctx context.Context, session Session, pairs []OrderPair) error {
	if err := s.store.ReorderCategories(ctx, session.OwnerID, orderUpdates(pairs)); err != nil {
		return mapStoreError(err, "reorder categories")
	}
	return nil
}

func (s *Service) ReorderSites(ctx context.Context, session Session, pairs []OrderPair) error {
	if err := s.store.ReorderSites(ctx, session.OwnerID, orderUpdates(pairs)); err != nil {
		return mapStoreError(err, "reorder sites")
	}
	return nil
}

func (s *Service) MoveSite(ctx context.Context, session Session, siteID, newCategoryID string) error {
	if err := s.store.MoveSite(ctx, session.OwnerID, siteID, newCategoryID); err != nil {
		return mapStoreError(err, "move site")
	}
	if site, err := s.store.GetSite(ctx, session.OwnerID, siteID); err == nil {
		s.reindexSite(ctx, session.OwnerID, site)
	}
	return nil
}

func (s *Service) Search(ctx context.Context, session Session, query string, limit int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}, nil
	}
	return s.search.Search(ctx, search.Query{
		OwnerID: session.OwnerID,
		Text:    query,
		Limit:   limit,
	}), nil
}

func (s *Service) indexSite(ownerID string, site store.Site, categoryName string) {
	if s.search == nil {
		return
	}
	s.search.IndexSite(search.SiteRecord{
		ID:           site.ID,
		OwnerID:      ownerID,
		CategoryID:   site.CategoryID,
		CategoryName: categoryName,
		Title:        site.Title,
		URL:          site.URL,
		FaviconURL:   site.FaviconURL,
	})
}

func (s *Service) reindexSite(ctx context.Context, ownerID string, site store.Site) {
	if s.search == nil {
		return
	}
	categoryName := ""
	if category, err := s.store.GetCategory(ctx, ownerID, site.CategoryID); err == nil {
		categoryName = category.Name
	}
	s.indexSite(ownerID, site, categoryName)
}

func orderUpdates(pairs []OrderPair) []store.OrderUpdate {
	updates := make([]store.OrderUpdate, 0, len(pairs))
	for _, pair := range pairs {
		updates = append(updates, store.OrderUpdate{ID: pair.ID, Order: pair.Order})
	}
	return updates
}

func mapStoreError(err error, operation string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound()
	case errors.Is(err, store.ErrForbidden):
		return permissionDenied()
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func categoryPayload(category store.Category) map[string]any {
	sites := make([]map[string]any, 0, len(category.Sites))
	for _, site := range category.Sites {
		sites = append(sites, sitePayload(site))
	}
	return map[string]any{
		"id":            category.ID,
		"name":          category.Name,
		"display_order": category.DisplayOrder,
		"sites":         sites,
	}
}

func sitePayload(site store.Site) map[string]any {
	return map[string]any{
		"id":            site.ID,
		"title":         site.Title,
		"url":           site.URL,
		"favicon_url":   site.FaviconURL,
		"display_order": site.DisplayOrder,
		"category_id":   site.CategoryID,
	}
}
