package graph

import (
	"context"
	"fmt"
	"sync"

	"logsift/internal/apperr"

	"github.com/kuzudb/go-kuzu"
	"go.uber.org/zap"
)

// InMemory selects an in-memory Kuzu database
const InMemory = ":memory:"

var kuzuSchema = []string{
	"CREATE NODE TABLE IF NOT EXISTS Token(name STRING, freq INT64, PRIMARY KEY (name))",
	"CREATE REL TABLE IF NOT EXISTS FOLLOWS(FROM Token TO Token, freq INT64, prob DOUBLE)",
}

// KuzuDatabase implements GraphDatabase on an embedded Kuzu database
type KuzuDatabase struct {
	mu     sync.Mutex
	db     *kuzu.Database
	conn   *kuzu.Connection
	logger *zap.Logger
}

// NewKuzuDatabase opens the database at path, or an in-memory one for
// ":memory:" and the empty path, and creates the bigram schema.
func NewKuzuDatabase(path string, logger *zap.Logger) (*KuzuDatabase, error) {
	var db *kuzu.Database
	var err error

	if path == InMemory || path == "" {
		db, err = kuzu.OpenInMemoryDatabase(kuzu.DefaultSystemConfig())
	} else {
		db, err = kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Kuzu database: %v: %w", err, apperr.ErrIO)
	}

	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create Kuzu connection: %v: %w", err, apperr.ErrIO)
	}

	kdb := &KuzuDatabase{db: db, conn: conn, logger: logger}
	if err := kdb.initializeSchema(); err != nil {
		kdb.Close(context.Background())
		return nil, err
	}
	return kdb, nil
}

func (db *KuzuDatabase) initializeSchema() error {
	for _, schema := range kuzuSchema {
		result, err := db.conn.Query(schema)
		if err != nil {
			db.logger.Error("Failed to create Kuzu table", zap.String("schema", schema), zap.Error(err))
			return fmt.Errorf("failed to initialize Kuzu schema: %v: %w", err, apperr.ErrIO)
		}
		result.Close()
	}
	return nil
}

// VerifyConnectivity runs a trivial query
func (db *KuzuDatabase) VerifyConnectivity(ctx context.Context) error {
	_, err := db.ExecuteRead(ctx, "RETURN 1 AS ok", nil)
	return err
}

// ExecuteRead runs a read query
func (db *KuzuDatabase) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return db.execute(ctx, query, params)
}

// ExecuteWrite runs a write query. Kuzu wraps each statement in its own
// transaction.
func (db *KuzuDatabase) ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return db.execute(ctx, query, params)
}

func (db *KuzuDatabase) execute(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	var result *kuzu.QueryResult
	var err error
	if len(params) > 0 {
		stmt, perr := db.conn.Prepare(query)
		if perr != nil {
			db.logger.Error("Failed to prepare Kuzu query", zap.String("query", query), zap.Error(perr))
			return nil, fmt.Errorf("failed to prepare query: %w", perr)
		}
		defer stmt.Close()
		result, err = db.conn.Execute(stmt, params)
	} else {
		result, err = db.conn.Query(query)
	}
	if err != nil {
		db.logger.Error("Failed to execute Kuzu query", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer result.Close()

	var records []map[string]any
	for result.HasNext() {
		tuple, err := result.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next result row: %w", err)
		}
		record, err := tuple.GetAsMap()
		if err != nil {
			return nil, fmt.Errorf("failed to convert tuple to map: %w", err)
		}
		for key, value := range record {
			if node, ok := value.(kuzu.Node); ok {
				record[key] = node.Properties
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// Close releases the connection and database
func (db *KuzuDatabase) Close(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn != nil {
		db.conn.Close()
		db.conn = nil
	}
	if db.db != nil {
		db.db.Close()
		db.db = nil
	}
	return nil
}
