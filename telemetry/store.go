package telemetry

// This file contains the sqlite telemetry event store. The unique
// (event_name, idempotency_key) constraint makes ingestion idempotent.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
)

// SQLiteStore persists telemetry events.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn and creates the schema if needed.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to an in-memory database is a separate database.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS telemetry_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telemetry_schema_version TEXT NOT NULL,
			event_name TEXT NOT NULL,
			ts TEXT NOT NULL,
			request_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			surface TEXT NOT NULL,
			arm TEXT NOT NULL,
			anchor_book_id TEXT,
			is_synthetic INTEGER NOT NULL,
			idempotency_key TEXT NOT NULL,
			algo_id TEXT,
			recs_version TEXT,
			shown_book_ids TEXT,
			positions TEXT,
			clicked_book_id TEXT,
			position INTEGER,
			UNIQUE (event_name, idempotency_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_events_run ON telemetry_events(run_id, id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertBatch stores events, ignoring duplicates of an already stored
// (event_name, idempotency_key).
func (s *SQLiteStore) InsertBatch(ctx context.Context, events []model.IngestEvent) (inserted, duplicates int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO telemetry_events (
		telemetry_schema_version, event_name, ts, request_id, run_id, surface, arm,
		anchor_book_id, is_synthetic, idempotency_key, algo_id, recs_version,
		shown_book_ids, positions, clicked_book_id, position
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		shown, err := nullableJSON(ev.ShownIDs)
		if err != nil {
			return 0, 0, err
		}
		positions, err := nullableJSON(ev.Positions)
		if err != nil {
			return 0, 0, err
		}
		var position sql.NullInt64
		if ev.Position != nil {
			position = sql.NullInt64{Int64: int64(*ev.Position), Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			ev.TelemetrySchemaVersion, string(ev.EventName), ev.TS.UTC().Format(time.RFC3339Nano),
			ev.RequestID, ev.RunID, ev.Surface, ev.Arm,
			nullString(ev.AnchorID), ev.IsSynthetic, ev.IdempotencyKey, nullString(ev.AlgoID),
			nullString(ev.RecsVersion), shown, positions, nullString(ev.ClickedID), position,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert event %s: %w", ev.IdempotencyKey, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, err
		}
		if n == 0 {
			duplicates++
		} else {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit events: %w", err)
	}
	return inserted, duplicates, nil
}

// EventsForRun returns the events of runID in insertion order, in extract
// form.
func (s *SQLiteStore) EventsForRun(ctx context.Context, runID string) ([]model.TelemetryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_name, run_id, is_synthetic, ts, request_id,
		idempotency_key, anchor_book_id, clicked_book_id, position, shown_book_ids, positions, surface, arm
		FROM telemetry_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []model.TelemetryEvent
	for rows.Next() {
		var (
			ev               model.TelemetryEvent
			ts               string
			anchor, clicked  sql.NullString
			shown, positions sql.NullString
			position         sql.NullInt64
		)
		if err := rows.Scan(&ev.Kind, &ev.RunID, &ev.IsSynthetic, &ts, &ev.Payload.RequestID,
			&ev.Payload.IdempotencyKey, &anchor, &clicked, &position, &shown, &positions,
			&ev.Payload.Surface, &ev.Payload.Arm); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.ExtractSchemaVersion = model.ExtractSchemaVersion
		if ev.TS, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp %q: %w", ts, err)
		}
		ev.Payload.AnchorID = anchor.String
		ev.Payload.ClickedID = clicked.String
		if position.Valid {
			p := int(position.Int64)
			ev.Payload.Position = &p
		}
		if shown.Valid {
			if err := json.Unmarshal([]byte(shown.String), &ev.Payload.ShownIDs); err != nil {
				return nil, fmt.Errorf("failed to decode shown_book_ids: %w", err)
			}
		}
		if positions.Valid {
			if err := json.Unmarshal([]byte(positions.String), &ev.Payload.Positions); err != nil {
				return nil, fmt.Errorf("failed to decode positions: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ExportRun writes the events of runID to an extract file and returns
// how many were written.
func (s *SQLiteStore) ExportRun(ctx context.Context, runID, path string) (int, error) {
	events, err := s.EventsForRun(ctx, runID)
	if err != nil {
		return 0, err
	}
	w, err := artifacts.CreateJSONL(path)
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		if err := w.Append(ev); err != nil {
			w.Close()
			return 0, fmt.Errorf("failed to write extract: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to write extract: %w", err)
	}
	return len(events), nil
}

func nullableJSON[T any](v []T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
