package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestTitleReturnsPageTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>  Example Page </title></head><body></body></html>`)
	}))
	defer server.Close()

	fetcher := NewFetcher(2*time.Second, nil)
	if got := fetcher.Title(context.Background(), server.URL); got != "Example Page" {
		t.Fatalf("expected Example Page, got %q", got)
	}
}

func TestTitleFallsBackWhenElementMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head></head><body>no title here</body></html>`)
	}))
	defer server.Close()

	fetcher := NewFetcher(2*time.Second, nil)
	if got := fetcher.Title(context.Background(), server.URL); got != TitlePlaceholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestTitleFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewFetcher(2*time.Second, nil)
	if got := fetcher.Title(context.Background(), server.URL); got != TitlePlaceholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestTitleFallsBackOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `<html><head><title>Too Late</title></head></html>`)
	}))
	defer server.Close()

	fetcher := NewFetcher(50*time.Millisecond, nil)
	if got := fetcher.Title(context.Background(), server.URL); got != TitlePlaceholder {
		t.Fatalf("expected placeholder on timeout, got %q", got)
	}
}

func TestTitleFallsBackOnUnreachableHost(t *testing.T) {
	fetcher := NewFetcher(200*time.Millisecond, nil)
	if got := fetcher.Title(context.Background(), "http://127.0.0.1:1/nothing"); got != TitlePlaceholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestTitleUsesCacheOnSecondFetch(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `<html><head><title>Cached Page</title></head></html>`)
	}))
	defer server.Close()

	mini := miniredis.RunT(t)
	cache := NewCacheWithClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	defer cache.Close()

	fetcher := NewFetcher(2*time.Second, cache)
	ctx := context.Background()

	if got := fetcher.Title(ctx, server.URL); got != "Cached Page" {
		t.Fatalf("expected Cached Page, got %q", got)
	}
	if got := fetcher.Title(ctx, server.URL); got != "Cached Page" {
		t.Fatalf("expected Cached Page from cache, got %q", got)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits)
	}
}

func TestTitlePlaceholderIsNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	mini := miniredis.RunT(t)
	cache := NewCacheWithClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	defer cache.Close()

	fetcher := NewFetcher(2*time.Second, cache)
	if got := fetcher.Title(context.Background(), server.URL); got != TitlePlaceholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
	if _, ok := cache.GetTitle(context.Background(), server.URL); ok {
		t.Fatal("placeholder must not be cached")
	}
}
