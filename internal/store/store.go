package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no product carries the requested barcode.
var ErrNotFound = errors.New("product not found")

// Product is one catalog entry, keyed by the payload printed on the item.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Barcode     string    `json:"barcode"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Image       string    `json:"image,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store manages the PostgreSQL connection pool for the product catalog.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// initSchema creates the products table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			barcode TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			price NUMERIC(10, 2) NOT NULL DEFAULT 0,
			image TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

const productColumns = `id::text, barcode, name, price::float8, image, description, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var id string
	err := row.Scan(&id, &p.Barcode, &p.Name, &p.Price, &p.Image, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.ID, err = uuid.Parse(id)
	return p, err
}

// FindByBarcode looks a product up by its exact barcode.
func (s *Store) FindByBarcode(ctx context.Context, barcode string) (Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// UpsertProduct inserts p, or updates the existing row with the same barcode.
// The stored row is returned; its ID is kept stable across updates.
func (s *Store) UpsertProduct(ctx context.Context, p Product) (Product, error) {
	if p.Barcode == "" {
		return Product{}, errors.New("barcode is required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (id, barcode, name, price, image, description)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		ON CONFLICT (barcode) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING `+productColumns,
		p.ID.String(), p.Barcode, p.Name, p.Price, p.Image, p.Description)
	return scanProduct(row)
}

// ListProducts returns the whole catalog ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, barcode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct removes the product with the given barcode.
func (s *Store) DeleteProduct(ctx context.Context, barcode string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM products WHERE barcode = $1", barcode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS products CASCADE;`)
	return err
}
