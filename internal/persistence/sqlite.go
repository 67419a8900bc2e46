package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
)

// SQLiteStore keeps messages in the local SQLite database.
type SQLiteStore struct {
	cfg        config.DatabaseConfig
	migrations database.Source
	settings

	mu sync.RWMutex
	db *database.DB
}

var _ hub.Persistence = (*SQLiteStore)(nil)

// NewSQLiteStore returns a store that opens cfg.Path on Connect.
func NewSQLiteStore(cfg config.DatabaseConfig, migrations database.Source, opts ...Option) *SQLiteStore {
	return &SQLiteStore{cfg: cfg, migrations: migrations, settings: newSettings(opts)}
}

// Connect opens the database and applies pending migrations.
func (s *SQLiteStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := database.Open(ctx, s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, s.migrations); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("migrating %s: %w", s.cfg.Path, err)
	}
	s.db = db
	return nil
}

// Disconnect closes the database.
func (s *SQLiteStore) Disconnect() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	return db.Close()
}

// Store writes msgs to collection in a single transaction.
func (s *SQLiteStore) Store(ctx context.Context, collection string, qos byte, msgs ...envelope.Message) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	db, err := s.conn()
	if err != nil {
		return err
	}
	rows, err := s.encode(collection, msgs)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO envelopes (collection, kind, name, type_id, ts_unix_nano, qos, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, collection, string(r.kind), r.name, r.typeID, r.ts.UnixNano(), int(qos), r.payload); err != nil {
			return fmt.Errorf("inserting %s into %s: %w", r.name, collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing store: %w", err)
	}
	return nil
}

// Query returns the messages of collection stored between start and end
// inclusive, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, collection string, start, end time.Time) ([]envelope.Message, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var q strings.Builder
	q.WriteString("SELECT kind, payload FROM envelopes WHERE collection = ?")
	args := []any{collection}
	if !start.IsZero() {
		q.WriteString(" AND ts_unix_nano >= ?")
		args = append(args, start.UnixNano())
	}
	if !end.IsZero() {
		q.WriteString(" AND ts_unix_nano <= ?")
		args = append(args, end.UnixNano())
	}
	q.WriteString(" ORDER BY ts_unix_nano, id")

	rows, err := db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []envelope.Message
	for rows.Next() {
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scanning envelope: %w", err)
		}
		msg, err := s.codec.Decode(envelope.Kind(kind), payload)
		if err != nil {
			return nil, fmt.Errorf("decoding stored %s: %w", kind, err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating envelopes: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) conn() (*database.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotConnected
	}
	return s.db, nil
}
