package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryCatalogStorage implements CatalogStorage in memory. Useful for
// testing and local development.
type InMemoryCatalogStorage struct {
	catalogs map[string]*StoredCatalog
	mu       sync.RWMutex
}

// NewInMemoryCatalogStorage creates an empty in-memory backend.
func NewInMemoryCatalogStorage() *InMemoryCatalogStorage {
	return &InMemoryCatalogStorage{catalogs: make(map[string]*StoredCatalog)}
}

func catalogKey(name, version string) string {
	return name + ":" + version
}

// StoreCatalog stores or replaces one catalog version.
func (m *InMemoryCatalogStorage) StoreCatalog(ctx context.Context, catalog *StoredCatalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if catalog.ID == "" {
		catalog.ID = uuid.NewString()
	}
	now := time.Now()
	if catalog.CreatedAt.IsZero() {
		catalog.CreatedAt = now
	}
	catalog.UpdatedAt = now

	stored := *catalog
	if catalog.Document != nil {
		stored.Document = catalog.Document.Clone()
	}
	m.catalogs[catalogKey(catalog.Name, catalog.Version)] = &stored
	return nil
}

// GetCatalog retrieves one catalog version.
func (m *InMemoryCatalogStorage) GetCatalog(ctx context.Context, name, version string) (*StoredCatalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.catalogs[catalogKey(name, version)]
	if !ok {
		return nil, fmt.Errorf("catalog not found: %s:%s", name, version)
	}
	out := *stored
	if stored.Document != nil {
		out.Document = stored.Document.Clone()
	}
	return &out, nil
}

// ListCatalogs lists catalog metadata matching the filters.
func (m *InMemoryCatalogStorage) ListCatalogs(ctx context.Context, filters *CatalogFilters) ([]*CatalogMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*CatalogMetadata
	for _, catalog := range m.catalogs {
		if matchesFilters(catalog, filters) {
			results = append(results, metadataOf(catalog))
		}
	}
	return results, nil
}

// DeleteCatalog removes one catalog version.
func (m *InMemoryCatalogStorage) DeleteCatalog(ctx context.Context, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := catalogKey(name, version)
	if _, ok := m.catalogs[key]; !ok {
		return fmt.Errorf("catalog not found: %s:%s", name, version)
	}
	delete(m.catalogs, key)
	return nil
}

// HealthCheck always succeeds for the in-memory backend.
func (m *InMemoryCatalogStorage) HealthCheck(ctx context.Context) error {
	return nil
}
