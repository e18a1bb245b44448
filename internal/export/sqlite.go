package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// Store checkpoints runs into a SQLite database. Each record is stored as a
// JSON object keyed by export column name, next to the keys needed to find
// it again.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the checkpoint database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		records INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS tax_units (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		year INTEGER NOT NULL,
		xhid INTEGER NOT NULL,
		a_lineno INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tax_units table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteRun stores every record of a run in one transaction. Records are
// keyed by their position in records, starting at 1.
func (s *Store) WriteRun(ctx context.Context, runID string, records []taxunit.Record, slots int) (retErr error) {
	cols := Columns(slots)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, records) VALUES (?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), len(records)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tax_units (run_id, seq, year, xhid, a_lineno, payload) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	payload := make(map[string]any, len(cols))
	for i := range records {
		rec := &records[i]
		for _, c := range cols {
			payload[c.Name] = c.Value(rec)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i+1, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i+1, rec.Year, rec.HouseholdID, rec.LineNo, data); err != nil {
			return fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of records stored for a run.
func (s *Store) Count(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tax_units WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Load returns the stored payload of one record, keyed by column name.
func (s *Store) Load(ctx context.Context, runID string, seq int) (map[string]any, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM tax_units WHERE run_id = ? AND seq = ?`, runID, seq).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("select record %d: %w", seq, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", seq, err)
	}
	return payload, nil
}
