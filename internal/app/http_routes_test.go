package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"linkboard/api/internal/enrich"
	"linkboard/api/internal/store"
)

func TestCreateAndListCategories(t *testing.T) {
	fs := &fakeStore{
		listCategoriesFn: func(context.Context, string) ([]store.Category, error) {
			return []store.Category{
				{ID: "cat_1", OwnerID: "own_1", Name: "Dev", DisplayOrder: 0, Sites: []store.Site{
					{ID: "site_1", CategoryID: "cat_1", Title: "Example", URL: "http://example.com", DisplayOrder: 0},
				}},
				{ID: "cat_2", OwnerID: "own_1", Name: "News", DisplayOrder: 1, Sites: []store.Site{}},
			}, nil
		},
	}
	server := newTestServer(fs)
	token := validToken(t)

	recorder := doRequest(t, server, http.MethodPost, "/api/categories", token, `{"name":"Dev"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	created := decodeJSONBody(t, recorder)
	if created["name"] != "Dev" {
		t.Fatalf("unexpected created name: %v", created["name"])
	}

	recorder = doRequest(t, server, http.MethodGet, "/api/categories", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", recorder.Code)
	}
	var listed []map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(listed))
	}
	if listed[0]["name"] != "Dev" || listed[1]["name"] != "News" {
		t.Fatalf("unexpected category order: %v", listed)
	}
	sites, ok := listed[0]["sites"].([]any)
	if !ok || len(sites) != 1 {
		t.Fatalf("expected one nested site, got %v", listed[0]["sites"])
	}
}

func TestCreateCategoryEmptyNameIs422(t *testing.T) {
	server := newTestServer(&fakeStore{})

	recorder := doRequest(t, server, http.MethodPost, "/api/categories", validToken(t), `{"name":"  "}`)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	payload := decodeJSONBody(t, recorder)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestUpdateForeignCategoryIs404(t *testing.T) {
	fs := &fakeStore{
		updateCategoryFn: func(context.Context, string, string, string) (store.Category, error) {
			return store.Category{}, store.ErrNotFound
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodPut, "/api/categories/cat_theirs", validToken(t), `{"name":"Mine Now"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a category owned by someone else, got %d", recorder.Code)
	}
	payload := decodeJSONBody(t, recorder)
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", payload["code"])
	}
}

func TestDeleteCategoryIs204(t *testing.T) {
	var deletedID string
	fs := &fakeStore{
		deleteCategoryFn: func(_ context.Context, _ string, categoryID string) error {
			deletedID = categoryID
			return nil
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodDelete, "/api/categories/cat_1", validToken(t), "")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if deletedID != "cat_1" {
		t.Fatalf("expected delete of cat_1, got %q", deletedID)
	}
}

func TestCreateSiteFallsBackToPlaceholderTitle(t *testing.T) {
	fs := &fakeStore{}
	server := newTestServer(fs)
	// Real fetcher pointed at a closed port, so the title fetch fails fast.
	server.service.fetcher = enrich.NewFetcher(200*time.Millisecond, nil)

	recorder := doRequest(t, server, http.MethodPost, "/api/sites", validToken(t),
		`{"url":"http://127.0.0.1:1/page","category_id":"cat_1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeJSONBody(t, recorder)
	if payload["title"] != enrich.TitlePlaceholder {
		t.Fatalf("expected placeholder title %q, got %v", enrich.TitlePlaceholder, payload["title"])
	}
	if payload["url"] != "http://127.0.0.1:1/page" {
		t.Fatalf("unexpected url: %v", payload["url"])
	}
}

func TestCreateSiteWithoutURLIs422(t *testing.T) {
	server := newTestServer(&fakeStore{})

	recorder := doRequest(t, server, http.MethodPost, "/api/sites", validToken(t), `{"category_id":"cat_1"}`)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
}

func TestDeleteSiteIs204AndForeignSiteIs404(t *testing.T) {
	fs := &fakeStore{
		deleteSiteFn: func(_ context.Context, _ string, siteID string) error {
			if siteID == "site_theirs" {
				return store.ErrNotFound
			}
			return nil
		},
	}
	server := newTestServer(fs)
	token := validToken(t)

	recorder := doRequest(t, server, http.MethodDelete, "/api/sites/site_1", token, "")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}

	recorder = doRequest(t, server, http.MethodDelete, "/api/sites/site_theirs", token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a site owned by someone else, got %d", recorder.Code)
	}
}

func TestReorderSitesForeignIDIs403(t *testing.T) {
	fs := &fakeStore{
		reorderSitesFn: func(context.Context, string, []store.OrderUpdate) error {
			return store.ErrForbidden
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodPost, "/api/update-order/sites", validToken(t),
		`[{"id":"site_mine","order":0},{"id":"site_theirs","order":1}]`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
	payload := decodeJSONBody(t, recorder)
	if payload["code"] != "PERMISSION_DENIED" {
		t.Fatalf("expected PERMISSION_DENIED, got %v", payload["code"])
	}
}

func TestReorderCategoriesAcknowledges(t *testing.T) {
	var gotUpdates []store.OrderUpdate
	fs := &fakeStore{
		reorderCategoriesFn: func(_ context.Context, _ string, updates []store.OrderUpdate) error {
			gotUpdates = updates
			return nil
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodPost, "/api/update-order/categories", validToken(t),
		`[{"id":"cat_2","order":0},{"id":"cat_1","order":1}]`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(gotUpdates) != 2 || gotUpdates[0].ID != "cat_2" || gotUpdates[0].Order != 0 {
		t.Fatalf("unexpected updates: %v", gotUpdates)
	}
}

func TestMoveSiteForeignDestinationIs404(t *testing.T) {
	fs := &fakeStore{
		moveSiteFn: func(context.Context, string, string, string) error {
			return store.ErrNotFound
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodPost, "/api/move-site", validToken(t),
		`{"site_id":"site_1","new_category_id":"cat_theirs"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestMoveSiteAcknowledges(t *testing.T) {
	var gotSiteID, gotCategoryID string
	fs := &fakeStore{
		moveSiteFn: func(_ context.Context, _ string, siteID, newCategoryID string) error {
			gotSiteID = siteID
			gotCategoryID = newCategoryID
			return nil
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodPost, "/api/move-site", validToken(t),
		`{"site_id":"site_1","new_category_id":"cat_2"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if gotSiteID != "site_1" || gotCategoryID != "cat_2" {
		t.Fatalf("unexpected move: site=%q category=%q", gotSiteID, gotCategoryID)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(&fakeStore{})

	recorder := doRequest(t, server, http.MethodGet, "/api/nope", validToken(t), "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	server := newTestServer(&fakeStore{})

	recorder := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", recorder.Code)
	}

	recorder = doRequest(t, server, http.MethodGet, "/api/ready", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", recorder.Code)
	}
	payload := decodeJSONBody(t, recorder)
	if payload["status"] != "ready" {
		t.Fatalf("expected status ready, got %v", payload["status"])
	}
}
