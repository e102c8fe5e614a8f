package store

import (
	"errors"
	"time"
)

// ErrNotFound covers both "absent" and "owned by someone else" so that
// lookups never reveal whether a foreign id exists.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned by batch reorders when any id in the batch
// is not owned by the caller. Nothing is applied in that case.
var ErrForbidden = errors.New("forbidden")

type Owner struct {
	ID        string
	GoogleSub string
	Email     string
	CreatedAt time.Time
}

type Category struct {
	ID           string
	OwnerID      string
	Name         string
	DisplayOrder int
	Sites        []Site
	CreatedAt    time.Time
}

type Site struct {
	ID           string
	CategoryID   string
	Title        string
	URL          string
	FaviconURL   *string
	DisplayOrder int
	CreatedAt    time.Time
}

// OrderUpdate is one (id, order) pair of a batch reorder.
type OrderUpdate struct {
	ID    string
	Order int
}

// SiteHit is a scored search result from the FTS fallback.
type SiteHit struct {
	ID           string
	Title        string
	URL          string
	FaviconURL   *string
	CategoryID   string
	CategoryName string
	Rank         float64
}
