package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/store/memory"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func listing(name, url string) discovery.ScrapedListing {
	return discovery.ScrapedListing{
		Platform: discovery.PlatformLazada,
		Name:     name,
		URL:      url,
		Price:    150000,
	}
}

// TestImportPersistsListings writes each listing as a product with the
// discovery provenance fields set.
func TestImportPersistsListings(t *testing.T) {
	t.Parallel()

	store := memory.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	im := New(store, fixedClock{at: now}, nil)

	projectID := uuid.New()
	userID := uuid.New()
	out, err := im.Import(context.Background(), projectID, userID, []discovery.ScrapedListing{
		listing("Tumbler A", "https://www.lazada.vn/products/a-i1.html?spm=x"),
		listing("Tumbler B", "https://www.lazada.vn/products/b-i2.html"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Imported)
	require.Zero(t, out.Duplicates)
	require.Zero(t, out.Failed)
	require.Len(t, out.ImportedIDs, 2)

	products := store.Products()
	require.Len(t, products, 2)
	for _, p := range products {
		require.Equal(t, projectID, p.ProjectID)
		require.Equal(t, userID, p.CreatedBy)
		require.Equal(t, DataSource, p.DataSource)
		require.Equal(t, "VND", p.Currency)
		require.Equal(t, now, p.CreatedAt)
		require.NotContains(t, p.URL, "?", "tracking query is stripped before persisting")
	}
}

// TestImportSkipsExistingURLs counts a listing whose normalized URL is already
// in the project as a duplicate.
func TestImportSkipsExistingURLs(t *testing.T) {
	t.Parallel()

	store := memory.New()
	projectID := uuid.New()
	_, err := store.Create(context.Background(), discovery.Product{
		ProjectID: projectID,
		Name:      "Tumbler A",
		URL:       "https://www.lazada.vn/products/a-i1.html",
	})
	require.NoError(t, err)

	im := New(store, nil, nil)
	out, err := im.Import(context.Background(), projectID, uuid.New(), []discovery.ScrapedListing{
		listing("Tumbler A", "https://www.lazada.vn/products/a-i1.html?spm=tracking"),
		listing("Tumbler B", "https://www.lazada.vn/products/b-i2.html"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Imported)
	require.Equal(t, 1, out.Duplicates)
	require.Len(t, store.Products(), 2)
}

// TestImportCountsCreateDuplicates treats a duplicate-key insert as a
// duplicate, not a failure.
func TestImportCountsCreateDuplicates(t *testing.T) {
	t.Parallel()

	store := &scriptedStore{
		findErr:   discovery.ErrNotFound,
		createErr: discovery.ErrDuplicate,
	}
	im := New(store, nil, nil)
	out, err := im.Import(context.Background(), uuid.New(), uuid.New(), []discovery.ScrapedListing{
		listing("Tumbler A", "https://www.lazada.vn/products/a-i1.html"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Duplicates)
	require.Zero(t, out.Imported)
}

// TestImportCountsPermissionDenials counts a denied insert as a failure and
// keeps processing the remaining listings.
func TestImportCountsPermissionDenials(t *testing.T) {
	t.Parallel()

	store := &scriptedStore{
		findErr:   discovery.ErrNotFound,
		createErr: discovery.ErrPermission,
	}
	im := New(store, nil, nil)
	out, err := im.Import(context.Background(), uuid.New(), uuid.New(), []discovery.ScrapedListing{
		listing("Tumbler A", "https://www.lazada.vn/products/a-i1.html"),
		listing("Tumbler B", "https://www.lazada.vn/products/b-i2.html"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Failed)
	require.Equal(t, 2, store.creates, "every listing gets its attempt")
	require.Zero(t, out.Imported)
}

// TestImportCountsOtherFailures logs and counts unexpected create errors
// without stopping the pass.
func TestImportCountsOtherFailures(t *testing.T) {
	t.Parallel()

	store := &scriptedStore{
		findErr:   discovery.ErrNotFound,
		createErr: fmt.Errorf("connection reset"),
	}
	im := New(store, nil, nil)
	out, err := im.Import(context.Background(), uuid.New(), uuid.New(), []discovery.ScrapedListing{
		listing("Tumbler A", "https://www.lazada.vn/products/a-i1.html"),
		listing("Tumbler B", "https://www.lazada.vn/products/b-i2.html"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Failed)
	require.Equal(t, 2, store.creates)
}

type scriptedStore struct {
	findErr   error
	createErr error
	creates   int
}

func (s *scriptedStore) FindByProjectURL(context.Context, uuid.UUID, string) (discovery.Product, error) {
	return discovery.Product{}, s.findErr
}

func (s *scriptedStore) Create(context.Context, discovery.Product) (uuid.UUID, error) {
	s.creates++
	if s.createErr != nil {
		return uuid.Nil, s.createErr
	}
	return uuid.New(), nil
}
