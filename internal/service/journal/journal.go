package journal

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"logsift/internal/apperr"
	"logsift/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit
const DefaultRecentLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS anomalies (
	id         TEXT PRIMARY KEY,
	line_no    INTEGER NOT NULL,
	line       TEXT NOT NULL,
	nll        REAL NOT NULL,
	z          REAL NOT NULL,
	source     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomalies_created_at ON anomalies(created_at);
`

// Entry is one recorded anomaly
type Entry struct {
	ID        string    `db:"id" json:"id"`
	LineNo    int       `db:"line_no" json:"line_no"`
	Line      string    `db:"line" json:"line"`
	NLL       float64   `db:"nll" json:"nll"`
	Z         float64   `db:"z" json:"z"`
	Source    string    `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Journal persists anomalies to SQLite. IDs are ULIDs, so ordering by id is
// ordering by insertion time.
type Journal struct {
	db     *sqlx.DB
	logger *zap.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens or creates the journal at path
func Open(ctx context.Context, path string, logger *zap.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path not set: %w", apperr.ErrConfiguration)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %v: %w", path, err, apperr.ErrIO)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %v: %w", pragma, err, apperr.ErrIO)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %v: %w", err, apperr.ErrIO)
	}

	logger.Info("Opened anomaly journal", zap.String("path", path))
	return &Journal{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func (j *Journal) newID(t time.Time) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), j.entropy).String()
}

// Record stores lines as anomalies from source in one transaction
func (j *Journal) Record(ctx context.Context, source string, lines []model.ScoredLine) ([]Entry, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin journal transaction: %v: %w", err, apperr.ErrIO)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO anomalies (id, line_no, line, nll, z, source, created_at)
		VALUES (:id, :line_no, :line, :nll, :z, :source, :created_at)
	`
	now := time.Now().UTC()
	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		e := Entry{
			ID:        j.newID(now),
			LineNo:    l.LineNo,
			Line:      l.Line,
			NLL:       l.NLL,
			Z:         l.Z,
			Source:    source,
			CreatedAt: now,
		}
		if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
			return nil, fmt.Errorf("failed to record anomaly: %v: %w", err, apperr.ErrIO)
		}
		entries = append(entries, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit journal: %v: %w", err, apperr.ErrIO)
	}

	j.logger.Debug("Recorded anomalies", zap.String("source", source), zap.Int("count", len(entries)))
	return entries, nil
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	entries := []Entry{}
	query := `
		SELECT id, line_no, line, nll, z, source, created_at
		FROM anomalies
		ORDER BY id DESC
		LIMIT ?
	`
	if err := j.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query journal: %v: %w", err, apperr.ErrIO)
	}
	return entries, nil
}

// Count returns the number of recorded anomalies
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM anomalies"); err != nil {
		return 0, fmt.Errorf("failed to count journal: %v: %w", err, apperr.ErrIO)
	}
	return n, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}
