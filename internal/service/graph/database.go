package graph

import (
	"context"
	"fmt"

	"logsift/internal/apperr"
	"logsift/internal/config"

	"go.uber.org/zap"
)

// GraphDatabase runs Cypher against an embedded or remote graph store.
// Records come back as column name to value maps.
type GraphDatabase interface {
	VerifyConnectivity(ctx context.Context) error
	ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// Open connects to the backend named in cfg and verifies the connection
func Open(ctx context.Context, cfg config.GraphConfig, logger *zap.Logger) (GraphDatabase, error) {
	var (
		db  GraphDatabase
		err error
	)
	switch cfg.Backend {
	case config.GraphBackendKuzu, "":
		db, err = NewKuzuDatabase(cfg.Kuzu.Path, logger)
	case config.GraphBackendNeo4j:
		db, err = NewNeo4jDatabase(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, logger)
	default:
		return nil, fmt.Errorf("unknown graph backend %q: %w", cfg.Backend, apperr.ErrConfiguration)
	}
	if err != nil {
		return nil, err
	}

	if err := db.VerifyConnectivity(ctx); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to verify database connectivity: %w", err)
	}
	return db, nil
}
