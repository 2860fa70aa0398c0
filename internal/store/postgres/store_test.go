package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithDB(mock), mock
}

// TestGetProject scans one project row.
func TestGetProject(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	id := uuid.New()
	budget := 500000.0
	mock.ExpectQuery("SELECT id, name, description, target_product_name").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "target_product_name",
			"target_product_category", "target_budget", "currency", "status",
		}).AddRow(id, "Tumbler sourcing", "kitchenware", "stainless tumbler", "kitchen", &budget, "VND", "active"))

	p, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Tumbler sourcing", p.Name)
	require.Equal(t, "stainless tumbler", p.TargetProductName)
	require.NotNil(t, p.TargetBudget)
	require.InDelta(t, 500000, *p.TargetBudget, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetProjectNotFound maps an empty result to the not-found sentinel.
func TestGetProjectNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT id, name, description, target_product_name").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "target_product_name",
			"target_product_category", "target_budget", "currency", "status",
		}))

	_, err := store.Get(context.Background(), id)
	require.ErrorIs(t, err, discovery.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestFindByProjectURLNotFound answers the dedup miss with the sentinel.
func TestFindByProjectURLNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	projectID := uuid.New()
	url := "https://www.lazada.vn/products/tumbler-i1.html"
	mock.ExpectQuery("SELECT id, project_id, name, brand, platform").
		WithArgs(projectID, url).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "project_id", "name", "brand", "platform", "url",
			"current_price", "currency", "data_source", "created_by", "created_at",
		}))

	_, err := store.FindByProjectURL(context.Background(), projectID, url)
	require.ErrorIs(t, err, discovery.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestFindByProjectURLHit scans a matching product.
func TestFindByProjectURLHit(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	productID := uuid.New()
	projectID := uuid.New()
	createdBy := uuid.New()
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	url := "https://www.lazada.vn/products/tumbler-i1.html"
	mock.ExpectQuery("SELECT id, project_id, name, brand, platform").
		WithArgs(projectID, url).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "project_id", "name", "brand", "platform", "url",
			"current_price", "currency", "data_source", "created_by", "created_at",
		}).AddRow(productID, projectID, "Lock&Lock Tumbler", (*string)(nil), "lazada", url,
			250000.0, "VND", "auto_discovery", createdBy, createdAt))

	p, err := store.FindByProjectURL(context.Background(), projectID, url)
	require.NoError(t, err)
	require.Equal(t, productID, p.ID)
	require.Equal(t, "Lock&Lock Tumbler", p.Name)
	require.Nil(t, p.Brand)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateProduct inserts and returns the generated id.
func TestCreateProduct(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	newID := uuid.New()
	product := discovery.Product{
		ProjectID:    uuid.New(),
		Name:         "Lock&Lock Tumbler",
		Platform:     "lazada",
		URL:          "https://www.lazada.vn/products/tumbler-i1.html",
		CurrentPrice: 250000,
		Currency:     "VND",
		DataSource:   "auto_discovery",
		CreatedBy:    uuid.New(),
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	mock.ExpectQuery("INSERT INTO products").
		WithArgs(product.ProjectID, product.Name, product.Brand, product.Platform,
			product.URL, product.CurrentPrice, product.Currency, product.DataSource,
			product.CreatedBy, product.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(newID))

	id, err := store.Create(context.Background(), product)
	require.NoError(t, err)
	require.Equal(t, newID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateProductDuplicate maps a unique violation to the duplicate
// sentinel.
func TestCreateProductDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO products").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.Create(context.Background(), discovery.Product{})
	require.ErrorIs(t, err, discovery.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateProductPermission maps a privilege violation to the permission
// sentinel.
func TestCreateProductPermission(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO products").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "42501"})

	_, err := store.Create(context.Background(), discovery.Product{})
	require.ErrorIs(t, err, discovery.ErrPermission)
	require.NoError(t, mock.ExpectationsWereMet())
}
