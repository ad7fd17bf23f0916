// Package store persists catalog documents for the builder-facing
// collaborators. The core engines never touch storage; they are handed
// documents that came from here or anywhere else.
package store

import (
	"context"
	"time"

	servicegraph "github.com/servicegraph/servicegraph-go"
)

// StoredCatalog is one versioned catalog document at rest.
type StoredCatalog struct {
	ID        string                  `json:"id" yaml:"id"`
	Name      string                  `json:"name" yaml:"name"`
	Version   string                  `json:"version" yaml:"version"`
	Document  *servicegraph.Document  `json:"document" yaml:"document"`
	CreatedAt time.Time               `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time               `json:"updated_at" yaml:"updated_at"`
	CreatedBy string                  `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	Labels    []string                `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// CatalogMetadata summarizes a stored catalog without its document body.
type CatalogMetadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	TagCount   int       `json:"tag_count"`
	FieldCount int       `json:"field_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedBy  string    `json:"created_by,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
}

// CatalogFilters narrows a listing.
type CatalogFilters struct {
	Names  []string
	Labels []string
}

// CatalogStorage stores and retrieves versioned catalog documents.
type CatalogStorage interface {
	StoreCatalog(ctx context.Context, catalog *StoredCatalog) error
	GetCatalog(ctx context.Context, name, version string) (*StoredCatalog, error)
	ListCatalogs(ctx context.Context, filters *CatalogFilters) ([]*CatalogMetadata, error)
	DeleteCatalog(ctx context.Context, name, version string) error
	HealthCheck(ctx context.Context) error
}

func metadataOf(catalog *StoredCatalog) *CatalogMetadata {
	meta := &CatalogMetadata{
		ID:        catalog.ID,
		Name:      catalog.Name,
		Version:   catalog.Version,
		CreatedAt: catalog.CreatedAt,
		UpdatedAt: catalog.UpdatedAt,
		CreatedBy: catalog.CreatedBy,
		Labels:    catalog.Labels,
	}
	if catalog.Document != nil {
		meta.TagCount = len(catalog.Document.Filters)
		meta.FieldCount = len(catalog.Document.Fields)
	}
	return meta
}

func matchesFilters(catalog *StoredCatalog, filters *CatalogFilters) bool {
	if filters == nil {
		return true
	}
	if len(filters.Names) > 0 {
		found := false
		for _, name := range filters.Names {
			if catalog.Name == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filters.Labels) > 0 {
		found := false
		for _, want := range filters.Labels {
			for _, label := range catalog.Labels {
				if label == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
