package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"world-state-engine/internal/core/domain"

	_ "modernc.org/sqlite"
)

// Index is a queryable sqlite copy of the audit trail. Writes are queued and
// applied by a single goroutine; when the queue is full events are dropped
// because the journal remains complete.
type Index struct {
	db *sql.DB

	ch     chan domain.Event
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty index path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initIndex(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	idx := &Index{db: db, ch: make(chan domain.Event, 4096)}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.loop()
	}()
	return idx, nil
}

func initIndex(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS events (
			audit_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			trace_id TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS events_kind_idx ON events(kind, occurred_at);`,
		`CREATE INDEX IF NOT EXISTS events_aggregate_idx ON events(aggregate_id, occurred_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) Name() string { return "sqlite_index" }

func (i *Index) Publish(ctx context.Context, event domain.Event) error {
	if i == nil || i.closed.Load() {
		return nil
	}
	select {
	case i.ch <- event:
	default:
		slog.Warn("Audit index queue full, dropping event", "audit_id", event.AuditID, "kind", event.Kind)
	}
	return nil
}

func (i *Index) Close() error {
	var err error
	i.once.Do(func() {
		i.closed.Store(true)
		close(i.ch)
		i.wg.Wait()
		err = i.db.Close()
	})
	return err
}

func (i *Index) loop() {
	insert, err := i.db.Prepare(`INSERT OR REPLACE INTO events(audit_id,kind,aggregate_id,occurred_at,trace_id,payload) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		slog.Error("Failed to prepare audit index insert", "error", err)
		for range i.ch {
		}
		return
	}
	defer insert.Close()

	for event := range i.ch {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			slog.Error("Failed to encode audit payload", "audit_id", event.AuditID, "error", err)
			continue
		}
		if _, err := insert.Exec(
			event.AuditID.String(),
			string(event.Kind),
			event.AggregateID,
			event.OccurredAt.UTC().Format(time.RFC3339Nano),
			event.TraceID,
			string(payload),
		); err != nil {
			slog.Error("Failed to index audit event", "audit_id", event.AuditID, "error", err)
		}
	}
}

type Filter struct {
	Kind        string
	AggregateID string
	Since       time.Time
	Limit       int
}

type IndexedEvent struct {
	AuditID     string          `json:"auditId"`
	Kind        string          `json:"kind"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  string          `json:"occurredAt"`
	TraceID     string          `json:"traceId,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// Query returns indexed events matching f, oldest first.
func (i *Index) Query(ctx context.Context, f Filter) ([]IndexedEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.AggregateID != "" {
		where = append(where, "aggregate_id = ?")
		args = append(args, f.AggregateID)
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}

	query := `SELECT audit_id,kind,aggregate_id,occurred_at,trace_id,payload FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at, audit_id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexedEvent
	for rows.Next() {
		var (
			e       IndexedEvent
			payload string
		)
		if err := rows.Scan(&e.AuditID, &e.Kind, &e.AggregateID, &e.OccurredAt, &e.TraceID, &payload); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}
