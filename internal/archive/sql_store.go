package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"uiagent/internal/types"
)

const table = "turn_events"

const createTable = `CREATE TABLE IF NOT EXISTS turn_events (
	session_id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	kind TEXT NOT NULL,
	turns INTEGER NOT NULL,
	payload TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (session_id, seq)
)`

// SQLStore keeps events in Postgres or SQLite. Queries are built with the
// ent SQL builder so placeholders match the dialect.
type SQLStore struct {
	drv     *entsql.Driver
	dialect string
	now     func() time.Time

	schemaOnce sync.Once
	schemaErr  error
}

// Open connects to driver ("postgres" or "sqlite") at dsn.
func Open(driver, dsn string) (*SQLStore, error) {
	var sqlDriver, d string
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		sqlDriver, d = "pgx", dialect.Postgres
	case "sqlite", "sqlite3":
		sqlDriver, d = "sqlite", dialect.SQLite
	default:
		return nil, fmt.Errorf("archive: unsupported driver %q", driver)
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open db: %w", err)
	}
	if d == dialect.SQLite {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	return NewSQLStore(db, d), nil
}

// NewSQLStore wraps an open database. d is an ent dialect name.
func NewSQLStore(db *sql.DB, d string) *SQLStore {
	return &SQLStore{drv: entsql.OpenDB(d, db), dialect: d, now: time.Now}
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		s.schemaErr = s.drv.Exec(ctx, createTable, []any{}, nil)
	})
	return s.schemaErr
}

func (s *SQLStore) Record(ctx context.Context, e Event) (Event, error) {
	if strings.TrimSpace(e.SessionID) == "" {
		return Event{}, fmt.Errorf("archive: session id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Event{}, fmt.Errorf("archive: ensure schema: %w", err)
	}
	payload := []byte("null")
	if e.Turn != nil {
		b, err := json.Marshal(e.Turn)
		if err != nil {
			return Event{}, fmt.Errorf("archive: encode turn: %w", err)
		}
		payload = b
	}

	b := entsql.Dialect(s.dialect)
	q, args := b.Select(entsql.Max("seq")).
		From(b.Table(table)).
		Where(entsql.EQ("session_id", e.SessionID)).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return Event{}, fmt.Errorf("archive: next seq: %w", err)
	}
	var last sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&last); err != nil {
			rows.Close()
			return Event{}, fmt.Errorf("archive: next seq: %w", err)
		}
	}
	rows.Close()

	e.Seq = last.Int64 + 1
	e.CreatedAt = s.now().UTC()
	q, args = b.Insert(table).
		Columns("session_id", "seq", "kind", "turns", "payload", "created_at").
		Values(e.SessionID, e.Seq, string(e.Kind), e.Turns, string(payload), e.CreatedAt.UnixMilli()).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return Event{}, fmt.Errorf("archive: insert: %w", err)
	}
	return e, nil
}

func (s *SQLStore) Events(ctx context.Context, sessionID string) ([]Event, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("archive: ensure schema: %w", err)
	}
	b := entsql.Dialect(s.dialect)
	q, args := b.Select("seq", "kind", "turns", "payload", "created_at").
		From(b.Table(table)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Asc("seq")).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e := Event{SessionID: sessionID}
		var kind, payload string
		var createdAt int64
		if err := rows.Scan(&e.Seq, &kind, &e.Turns, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		e.Kind = Kind(kind)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		if payload != "null" {
			var t types.Turn
			if err := json.Unmarshal([]byte(payload), &t); err != nil {
				return nil, fmt.Errorf("archive: decode turn %d: %w", e.Seq, err)
			}
			e.Turn = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.drv.Close() }
