package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/database/mariadb"
	"github.com/kozaktomas/facemood/internal/database/postgres"
	"github.com/kozaktomas/facemood/internal/database/sqlite"
)

// openStore connects to the backend selected by DATABASE_URL and pins the
// deployment's embedding dimensionality.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	var store database.Store

	switch cfg.Database.Backend() {
	case config.BackendPostgres:
		pg, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		store = pg
	case config.BackendMariaDB:
		maria, err := mariadb.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		store = maria
	default:
		lite, err := sqlite.Open(ctx, cfg.Database.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database %s: %w", cfg.Database.SQLitePath(), err)
		}
		store = lite
	}

	if err := store.EnsureEmbeddingDim(ctx, cfg.Embedding.Dim); err != nil {
		store.Close()
		return nil, fmt.Errorf("EMBEDDING_DIM=%d does not match this database: %w", cfg.Embedding.Dim, err)
	}
	return store, nil
}
