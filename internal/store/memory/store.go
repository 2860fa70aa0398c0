// Package memory provides in-memory project and product stores for local
// development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/salescout/discovery/internal/discovery"
)

// Store implements discovery.ProductStore and discovery.ProjectStore in
// process memory. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]discovery.Project
	products map[uuid.UUID]discovery.Product
	// byURL indexes products by (project, normalized URL) for the dedup lookup.
	byURL map[urlKey]uuid.UUID
}

type urlKey struct {
	projectID uuid.UUID
	url       string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		projects: make(map[uuid.UUID]discovery.Project),
		products: make(map[uuid.UUID]discovery.Product),
		byURL:    make(map[urlKey]uuid.UUID),
	}
}

// PutProject inserts or replaces a project, assigning an id when absent.
func (s *Store) PutProject(p discovery.Project) discovery.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.projects[p.ID] = p
	return p
}

// Get loads one project or returns discovery.ErrNotFound.
func (s *Store) Get(_ context.Context, id uuid.UUID) (discovery.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return discovery.Project{}, discovery.ErrNotFound
	}
	return p, nil
}

// FindByProjectURL answers the import dedup lookup.
func (s *Store) FindByProjectURL(_ context.Context, projectID uuid.UUID, normalizedURL string) (discovery.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[urlKey{projectID: projectID, url: normalizedURL}]
	if !ok {
		return discovery.Product{}, discovery.ErrNotFound
	}
	return s.products[id], nil
}

// Create inserts one product, returning discovery.ErrDuplicate when the
// project already holds the URL.
func (s *Store) Create(_ context.Context, product discovery.Product) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := urlKey{projectID: product.ProjectID, url: product.URL}
	if _, exists := s.byURL[key]; exists {
		return uuid.Nil, discovery.ErrDuplicate
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	s.products[product.ID] = product
	s.byURL[key] = product.ID
	return product.ID, nil
}

// Products snapshots all stored products, for tests.
func (s *Store) Products() []discovery.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]discovery.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}
