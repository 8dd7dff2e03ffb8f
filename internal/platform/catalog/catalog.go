package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"desktour/internal/core/match"
	"desktour/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads the product catalog from Postgres. The reconciliation engine
// only ever reads; writes happen in the admin layer outside this service.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog ping: %w", err)
	}
	return &Store{pool: pool, log: logger.New("Catalog")}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName collapses casing, spacing and punctuation so "HHKB
// Professional-HYBRID" and "hhkb professional hybrid" compare equal.
func normalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

const recordColumns = `id, name, COALESCE(brand, ''), COALESCE(category, ''), COALESCE(tags, '{}'),
	COALESCE(asin, ''), COALESCE(amazon_url, ''), COALESCE(amazon_title, ''),
	COALESCE(amazon_image_url, ''), amazon_price, COALESCE(product_source, ''), updated_at`

// FindByName returns stored rows matching the name exactly or after
// normalization, most recently updated first.
func (s *Store) FindByName(ctx context.Context, name string) ([]match.CatalogRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM products
		WHERE lower(name) = lower($1)
		   OR lower(regexp_replace(name, '[^a-zA-Z0-9]+', '', 'g')) = $2
		ORDER BY updated_at DESC`,
		name, normalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Brands returns the distinct brand strings present in the catalog.
func (s *Store) Brands(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT brand FROM products
		WHERE brand IS NOT NULL AND brand <> ''
		ORDER BY brand`)
	if err != nil {
		return nil, fmt.Errorf("brands: %w", err)
	}
	defer rows.Close()

	var brands []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("brands scan: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// Search is the fuzzy lookup behind the catalog search endpoint.
func (s *Store) Search(ctx context.Context, query, brand, category string, limit int) ([]match.CatalogRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR brand ILIKE $2)
		  AND ($3 = '' OR category ILIKE $3)
		ORDER BY updated_at DESC
		LIMIT $4`,
		query, brand, category, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]match.CatalogRecord, error) {
	var out []match.CatalogRecord
	for rows.Next() {
		var r match.CatalogRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Brand, &r.Category, &r.Tags,
			&r.ASIN, &r.AmazonURL, &r.AmazonTitle, &r.AmazonImageURL,
			&r.AmazonPrice, &r.ProductSource, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("record scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
