package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore owns categories and sites and their per-scope display
// order. Every mutation runs inside a single transaction so ownership
// checks and the writes that depend on them cannot race a concurrent
// delete.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// EnsureOwner looks an owner up by Google subject and provisions one on
// first login. Idempotent; the email is refreshed on every login.
func (s *PostgresStore) EnsureOwner(ctx context.Context, id, googleSub, email string) (Owner, error) {
	var owner Owner
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO owners (id, google_sub, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (google_sub) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, google_sub, email, created_at
	`, id, googleSub, email).Scan(&owner.ID, &owner.GoogleSub, &owner.Email, &owner.CreatedAt)
	if err != nil {
		return Owner{}, fmt.Errorf("ensure owner: %w", err)
	}
	return owner, nil
}

func (s *PostgresStore) GetOwner(ctx context.Context, ownerID string) (Owner, error) {
	var owner Owner
	err := s.db.QueryRowContext(ctx, `
		SELECT id, google_sub, email, created_at FROM owners WHERE id = $1
	`, ownerID).Scan(&owner.ID, &owner.GoogleSub, &owner.Email, &owner.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Owner{}, ErrNotFound
	}
	if err != nil {
		return Owner{}, fmt.Errorf("get owner: %w", err)
	}
	return owner, nil
}

// CreateCategory appends a category at the end of the owner's order.
// The owner row is locked so two concurrent creates cannot pick the
// same display_order.
func (s *PostgresStore) CreateCategory(ctx context.Context, id, ownerID, name string) (Category, error) {
	var category Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var lockedID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM owners WHERE id = $1 FOR UPDATE`, ownerID).Scan(&lockedID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock owner: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO categories (id, owner_id, name, display_order)
			VALUES ($1, $2, $3, (SELECT COUNT(*) FROM categories WHERE owner_id = $2))
			RETURNING id, owner_id, name, display_order, created_at
		`, id, ownerID, name).Scan(&category.ID, &category.OwnerID, &category.Name, &category.DisplayOrder, &category.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
		return nil
	})
	if err != nil {
		return Category{}, err
	}
	category.Sites = []Site{}
	return category, nil
}

// ListCategories returns the owner's categories with their sites, both
// ascending by display_order. Equal orders fall back to insertion
// order, which keeps listings stable while gaps and ties accumulate.
func (s *PostgresStore) ListCategories(ctx context.Context, ownerID string) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, display_order, created_at
		FROM categories
		WHERE owner_id = $1
		ORDER BY display_order, created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	index := make(map[string]int)
	for rows.Next() {
		var category Category
		if err := rows.Scan(&category.ID, &category.OwnerID, &category.Name, &category.DisplayOrder, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		category.Sites = []Site{}
		index[category.ID] = len(categories)
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	siteRows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.category_id, s.title, s.url, s.favicon_url, s.display_order, s.created_at
		FROM sites s
		JOIN categories c ON c.id = s.category_id
		WHERE c.owner_id = $1
		ORDER BY s.display_order, s.created_at, s.id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer siteRows.Close()

	for siteRows.Next() {
		var site Site
		if err := siteRows.Scan(&site.ID, &site.CategoryID, &site.Title, &site.URL, &site.FaviconURL, &site.DisplayOrder, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		if i, ok := index[site.CategoryID]; ok {
			categories[i].Sites = append(categories[i].Sites, site)
		}
	}
	if err := siteRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}

	return categories, nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, ownerID, categoryID string) (Category, error) {
	var category Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, display_order, created_at
		FROM categories
		WHERE id = $1 AND owner_id = $2
	`, categoryID, ownerID).Scan(&category.ID, &category.OwnerID, &category.Name, &category.DisplayOrder, &category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	category.Sites = []Site{}
	return category, nil
}

func (s *PostgresStore) GetSite(ctx context.Context, ownerID, siteID string) (Site, error) {
	var site Site
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.category_id, s.title, s.url, s.favicon_url, s.display_order, s.created_at
		FROM sites s
		JOIN categories c ON c.id = s.category_id
		WHERE s.id = $1 AND c.owner_id = $2
	`, siteID, ownerID).Scan(&site.ID, &site.CategoryID, &site.Title, &site.URL, &site.FaviconURL, &site.DisplayOrder, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrNotFound
	}
	if err != nil {
		return Site{}, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, ownerID, categoryID, name string) (Category, error) {
	var category Category
	err := s.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $1
		WHERE id = $2 AND owner_id = $3
		RETURNING id, owner_id, name, display_order, created_at
	`, name, categoryID, ownerID).Scan(&category.ID, &category.OwnerID, &category.Name, &category.DisplayOrder, &category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	category.Sites = []Site{}
	return category, nil
}

// DeleteCategory removes a category and all of its sites. The cascade
// is explicit — sites first, then the category — inside one
// transaction, so no orphaned site can survive a partial failure.
func (s *PostgresStore) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var lockedID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM categories WHERE id = $1 AND owner_id = $2 FOR UPDATE
		`, categoryID, ownerID).Scan(&lockedID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock category: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE category_id = $1`, categoryID); err != nil {
			return fmt.Errorf("delete category sites: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, categoryID); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
}

// CreateSite appends a site at the end of its category's order. The
// display_order is scoped to the category, not to the owner's total
// site count.
func (s *PostgresStore) CreateSite(ctx context.Context, id, ownerID, categoryID, title, url string, faviconURL *string) (Site, error) {
	var site Site
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var lockedID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM categories WHERE id = $1 AND owner_id = $2 FOR UPDATE
		`, categoryID, ownerID).Scan(&lockedID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock category: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO sites (id, category_id, title, url, favicon_url, display_order)
			VALUES ($1, $2, $3, $4, $5, (SELECT COUNT(*) FROM sites WHERE category_id = $2))
			RETURNING id, category_id, title, url, favicon_url, display_order, created_at
		`, id, categoryID, title, url, faviconURL).Scan(&site.ID, &site.CategoryID, &site.Title, &site.URL, &site.FaviconURL, &site.DisplayOrder, &site.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert site: %w", err)
		}
		return nil
	})
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

func (s *PostgresStore) UpdateSiteTitle(ctx context.Context, ownerID, siteID, title string) (Site, error) {
	var site Site
	err := s.db.QueryRowContext(ctx, `
		UPDATE sites SET title = $1
		WHERE id = $2
		  AND category_id IN (SELECT id FROM categories WHERE owner_id = $3)
		RETURNING id, category_id, title, url, favicon_url, display_order, created_at
	`, title, siteID, ownerID).Scan(&site.ID, &site.CategoryID, &site.Title, &site.URL, &site.FaviconURL, &site.DisplayOrder, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrNotFound
	}
	if err != nil {
		return Site{}, fmt.Errorf("update site title: %w", err)
	}
	return site, nil
}

func (s *PostgresStore) DeleteSite(ctx context.Context, ownerID, siteID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sites
		WHERE id = $1
		  AND category_id IN (SELECT id FROM categories WHERE owner_id = $2)
	`, siteID, ownerID)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete site rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderCategories applies a batch of (id, order) pairs. Any pair
// referencing a category the caller does not own aborts the whole
// batch; the transaction rollback guarantees nothing was applied.
func (s *PostgresStore) ReorderCategories(ctx context.Context, ownerID string, updates []OrderUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, update := range updates {
			result, err := tx.ExecContext(ctx, `
				UPDATE categories SET display_order = $1
				WHERE id = $2 AND owner_id = $3
			`, update.Order, update.ID, ownerID)
			if err != nil {
				return fmt.Errorf("reorder category %s: %w", update.ID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("reorder category rows: %w", err)
			}
			if affected == 0 {
				return ErrForbidden
			}
		}
		return nil
	})
}

// ReorderSites is the same all-or-nothing contract as
// ReorderCategories, with ownership checked through each site's
// category.
func (s *PostgresStore) ReorderSites(ctx context.Context, ownerID string, updates []OrderUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, update := range updates {
			result, err := tx.ExecContext(ctx, `
				UPDATE sites SET display_order = $1
				WHERE id = $2
				  AND category_id IN (SELECT id FROM categories WHERE owner_id = $3)
			`, update.Order, update.ID, ownerID)
			if err != nil {
				return fmt.Errorf("reorder site %s: %w", update.ID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("reorder site rows: %w", err)
			}
			if affected == 0 {
				return ErrForbidden
			}
		}
		return nil
	})
}

// MoveSite reparents a site into another of the owner's categories.
// Only the category reference changes; the site keeps its
// display_order value in the destination.
func (s *PostgresStore) MoveSite(ctx context.Context, ownerID, siteID, newCategoryID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var lockedID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM categories WHERE id = $1 AND owner_id = $2 FOR UPDATE
		`, newCategoryID, ownerID).Scan(&lockedID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock destination category: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE sites SET category_id = $1
			WHERE id = $2
			  AND category_id IN (SELECT id FROM categories WHERE owner_id = $3)
		`, newCategoryID, siteID, ownerID)
		if err != nil {
			return fmt.Errorf("move site: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("move site rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SearchSites is the Postgres FTS path, always filtered to the owner.
func (s *PostgresStore) SearchSites(ctx context.Context, ownerID, query string, limit int) ([]SiteHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.url, s.favicon_url, s.category_id, c.name,
			ts_rank(s.fts, plainto_tsquery('simple', $2)) AS rank
		FROM sites s
		JOIN categories c ON c.id = s.category_id
		WHERE c.owner_id = $1
		  AND s.fts @@ plainto_tsquery('simple', $2)
		ORDER BY rank DESC, s.created_at DESC
		LIMIT $3
	`, ownerID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search sites: %w", err)
	}
	defer rows.Close()

	hits := make([]SiteHit, 0)
	for rows.Next() {
		var hit SiteHit
		if err := rows.Scan(&hit.ID, &hit.Title, &hit.URL, &hit.FaviconURL, &hit.CategoryID, &hit.CategoryName, &hit.Rank); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return hits, nil
}
