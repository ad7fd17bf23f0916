package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	servicegraph "github.com/servicegraph/servicegraph-go"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStorageConfig configures the PostgreSQL backend.
type PostgresStorageConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConnections  int32         `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// PostgresCatalogStorage implements CatalogStorage on PostgreSQL using
// pgx, with goose running the embedded migrations.
type PostgresCatalogStorage struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresCatalogStorage connects, optionally migrates, and returns
// the backend.
func NewPostgresCatalogStorage(ctx context.Context, config *PostgresStorageConfig, logger *zap.Logger) (*PostgresCatalogStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	if config.MaxConnections > 0 {
		poolConfig.MaxConns = config.MaxConnections
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if config.AutoMigrate {
		if err := runMigrations(config.DSN); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("catalog schema migrated")
	}

	return &PostgresCatalogStorage{pool: pool, logger: logger}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresCatalogStorage) Close() {
	p.pool.Close()
}

// StoreCatalog upserts one catalog version.
func (p *PostgresCatalogStorage) StoreCatalog(ctx context.Context, catalog *StoredCatalog) error {
	if catalog.ID == "" {
		catalog.ID = uuid.NewString()
	}
	now := time.Now()
	if catalog.CreatedAt.IsZero() {
		catalog.CreatedAt = now
	}
	catalog.UpdatedAt = now

	document, err := json.Marshal(catalog.Document)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO catalogs (id, name, version, document, created_at, updated_at, created_by, labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name, version) DO UPDATE
		SET document = EXCLUDED.document,
		    updated_at = EXCLUDED.updated_at,
		    labels = EXCLUDED.labels`,
		catalog.ID, catalog.Name, catalog.Version, document,
		catalog.CreatedAt, catalog.UpdatedAt, catalog.CreatedBy, catalog.Labels,
	)
	if err != nil {
		return fmt.Errorf("storing catalog %s:%s: %w", catalog.Name, catalog.Version, err)
	}

	p.logger.Debug("catalog stored",
		zap.String("name", catalog.Name),
		zap.String("version", catalog.Version),
	)
	return nil
}

// GetCatalog retrieves one catalog version.
func (p *PostgresCatalogStorage) GetCatalog(ctx context.Context, name, version string) (*StoredCatalog, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, version, document, created_at, updated_at, created_by, labels
		FROM catalogs WHERE name = $1 AND version = $2`,
		name, version,
	)

	var catalog StoredCatalog
	var document []byte
	err := row.Scan(&catalog.ID, &catalog.Name, &catalog.Version, &document,
		&catalog.CreatedAt, &catalog.UpdatedAt, &catalog.CreatedBy, &catalog.Labels)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catalog not found: %s:%s", name, version)
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s:%s: %w", name, version, err)
	}

	catalog.Document = &servicegraph.Document{}
	if err := json.Unmarshal(document, catalog.Document); err != nil {
		return nil, fmt.Errorf("decoding document of %s:%s: %w", name, version, err)
	}
	return &catalog, nil
}

// ListCatalogs lists catalog metadata matching the filters.
func (p *PostgresCatalogStorage) ListCatalogs(ctx context.Context, filters *CatalogFilters) ([]*CatalogMetadata, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, version, document, created_at, updated_at, created_by, labels
		FROM catalogs ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("listing catalogs: %w", err)
	}
	defer rows.Close()

	var results []*CatalogMetadata
	for rows.Next() {
		var catalog StoredCatalog
		var document []byte
		if err := rows.Scan(&catalog.ID, &catalog.Name, &catalog.Version, &document,
			&catalog.CreatedAt, &catalog.UpdatedAt, &catalog.CreatedBy, &catalog.Labels); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		catalog.Document = &servicegraph.Document{}
		if err := json.Unmarshal(document, catalog.Document); err != nil {
			return nil, fmt.Errorf("decoding document of %s:%s: %w", catalog.Name, catalog.Version, err)
		}
		if matchesFilters(&catalog, filters) {
			results = append(results, metadataOf(&catalog))
		}
	}
	return results, rows.Err()
}

// DeleteCatalog removes one catalog version.
func (p *PostgresCatalogStorage) DeleteCatalog(ctx context.Context, name, version string) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM catalogs WHERE name = $1 AND version = $2`, name, version)
	if err != nil {
		return fmt.Errorf("deleting catalog %s:%s: %w", name, version, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("catalog not found: %s:%s", name, version)
	}
	return nil
}

// HealthCheck pings the pool.
func (p *PostgresCatalogStorage) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
