// Package catalogstore selects between the two CatalogStore backends: the
// default embedded SQLite file, or Postgres for deployments that already run
// it and would rather not manage a separate file per host.
package catalogstore

import (
	"context"
	"fmt"

	"epsteindata/internal/infra/catalogstore/postgres"
	"epsteindata/internal/infra/catalogstore/sqlite"
	"epsteindata/internal/repository"
	"epsteindata/pkg/config"
)

// Open returns the configured CatalogStore backend. Postgres is selected
// when DATABASE_URL is set in the environment; otherwise the engine falls
// back to the SQLite file at sqlitePath.
func Open(ctx context.Context, sqlitePath string) (repository.CatalogStore, error) {
	if dsn := config.GetEnvString("DATABASE_URL", ""); dsn != "" {
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres catalog store: %w", err)
		}
		return store, nil
	}

	store, err := sqlite.Open(ctx, sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog store: %w", err)
	}
	return store, nil
}
