package graph

import (
	"context"
	"fmt"

	"logsift/internal/apperr"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const neo4jConstraint = "CREATE CONSTRAINT token_name IF NOT EXISTS FOR (t:Token) REQUIRE t.name IS UNIQUE"

// Neo4jDatabase implements GraphDatabase on a Neo4j server
type Neo4jDatabase struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jDatabase creates a driver for uri. No connection is made until
// VerifyConnectivity or the first query.
func NewNeo4jDatabase(uri, username, password string, logger *zap.Logger) (*Neo4jDatabase, error) {
	if uri == "" {
		return nil, fmt.Errorf("neo4j uri not set: %w", apperr.ErrConfiguration)
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %v: %w", err, apperr.ErrConfiguration)
	}
	return &Neo4jDatabase{driver: driver, logger: logger}, nil
}

// VerifyConnectivity checks the server is reachable and creates the
// uniqueness constraint MERGE relies on.
func (db *Neo4jDatabase) VerifyConnectivity(ctx context.Context) error {
	if err := db.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to reach Neo4j: %v: %w", err, apperr.ErrIO)
	}
	_, err := db.ExecuteWrite(ctx, neo4jConstraint, nil)
	return err
}

// ExecuteRead runs query in a managed read transaction
func (db *Neo4jDatabase) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := db.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, query, params)
	})
	if err != nil {
		db.logger.Error("Failed to execute Neo4j read", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return records.([]map[string]any), nil
}

// ExecuteWrite runs query in a managed write transaction
func (db *Neo4jDatabase) ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := db.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	records, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, query, params)
	})
	if err != nil {
		db.logger.Error("Failed to execute Neo4j write", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return records.([]map[string]any), nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]map[string]any, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	records := []map[string]any{}
	for result.Next(ctx) {
		records = append(records, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the driver
func (db *Neo4jDatabase) Close(ctx context.Context) error {
	return db.driver.Close(ctx)
}
