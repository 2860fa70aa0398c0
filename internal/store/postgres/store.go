// Package postgres provides the Postgres-backed project and product stores.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salescout/discovery/internal/discovery"
)

// Postgres error codes mapped to store sentinels.
const (
	codeUniqueViolation     = "23505"
	codeInsufficientPrivile = "42501"
)

// DB is the pgx surface the store needs. *pgxpool.Pool satisfies it, as does
// the pgxmock pool in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements discovery.ProductStore and discovery.ProjectStore over
// Postgres.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// New connects a pooled store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// NewWithDB wraps an existing pgx connection surface, used by tests.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// Close releases the pool when the store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Get loads one project or returns discovery.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (discovery.Project, error) {
	query := `
		SELECT id, name, description, target_product_name, target_product_category,
		       target_budget, currency, status
		FROM projects
		WHERE id = $1;
	`
	var p discovery.Project
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.TargetProductName,
		&p.TargetProductCategory,
		&p.TargetBudget,
		&p.Currency,
		&p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discovery.Project{}, discovery.ErrNotFound
		}
		return discovery.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// FindByProjectURL answers the import dedup lookup, matching on the
// normalized URL stored at import time.
func (s *Store) FindByProjectURL(ctx context.Context, projectID uuid.UUID, normalizedURL string) (discovery.Product, error) {
	query := `
		SELECT id, project_id, name, brand, platform, url, current_price,
		       currency, data_source, created_by, created_at
		FROM products
		WHERE project_id = $1 AND url = $2;
	`
	var p discovery.Product
	err := s.db.QueryRow(ctx, query, projectID, normalizedURL).Scan(
		&p.ID,
		&p.ProjectID,
		&p.Name,
		&p.Brand,
		&p.Platform,
		&p.URL,
		&p.CurrentPrice,
		&p.Currency,
		&p.DataSource,
		&p.CreatedBy,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discovery.Product{}, discovery.ErrNotFound
		}
		return discovery.Product{}, fmt.Errorf("find product by url: %w", err)
	}
	return p, nil
}

// Create inserts one product and returns its generated id. Unique and
// privilege violations map to the store sentinels so the importer can count
// duplicates and abort on permission failures.
func (s *Store) Create(ctx context.Context, product discovery.Product) (uuid.UUID, error) {
	query := `
		INSERT INTO products (project_id, name, brand, platform, url, current_price,
		                      currency, data_source, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`
	var id uuid.UUID
	err := s.db.QueryRow(ctx, query,
		product.ProjectID,
		product.Name,
		product.Brand,
		product.Platform,
		product.URL,
		product.CurrentPrice,
		product.Currency,
		product.DataSource,
		product.CreatedBy,
		product.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case codeUniqueViolation:
				return uuid.Nil, discovery.ErrDuplicate
			case codeInsufficientPrivile:
				return uuid.Nil, discovery.ErrPermission
			}
		}
		return uuid.Nil, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}
