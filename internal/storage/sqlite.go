package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	logx "remindd/pkg/logx"
)

//go:embed migrations.sql
var migrationsSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutPending(ctx context.Context, r PendingRecord) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending(handle, title, body, fire_at, payload) VALUES(?,?,?,?,?)
		 ON CONFLICT(handle) DO UPDATE SET title=excluded.title, body=excluded.body,
		   fire_at=excluded.fire_at, payload=excluded.payload`,
		r.Handle, r.Title, r.Body, r.FireAt.UnixMilli(), string(payload),
	)
	return err
}

func (s *sqliteStore) DeletePending(ctx context.Context, handles ...int32) error {
	if len(handles) == 0 {
		return nil
	}
	args := make([]any, len(handles))
	for i, h := range handles {
		args[i] = h
	}
	q := `DELETE FROM pending WHERE handle IN (?` + strings.Repeat(",?", len(handles)-1) + `)`
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *sqliteStore) ListPending(ctx context.Context) ([]PendingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, title, body, fire_at, payload FROM pending ORDER BY fire_at, handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingRecord
	for rows.Next() {
		var (
			r       PendingRecord
			ms      int64
			payload string
		)
		if err := rows.Scan(&r.Handle, &r.Title, &r.Body, &ms, &payload); err != nil {
			return nil, err
		}
		r.FireAt = time.UnixMilli(ms)
		if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
			s.log.Warn("pending payload unreadable", logx.Int32("handle", r.Handle), logx.Err(err))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(id, at, event, task_id, scheduled, canceled, detail) VALUES(?,?,?,?,?,?,?)`,
		e.ID, e.At.UnixMilli(), e.Event, nullStr(e.TaskID), e.Scheduled, e.Canceled, nullStr(e.Detail),
	)
	return err
}

func (s *sqliteStore) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit WHERE at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
