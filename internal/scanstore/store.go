// Package scanstore persists completed scan runs. A run is written once and
// served back byte-for-byte.
package scanstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrNotFound = errors.New("scan not found")
	ErrExists   = errors.New("scan already exists")
)

// SQLiteStore stores each ScanRun as a canonical JSON record plus the columns
// needed to list them.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

func NewSQLiteStore(db *sql.DB, logger logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger.With(logging.Field{Key: "component", Value: "scanstore"})}, nil
}

// Encode is the canonical serialization of a run.
func Encode(run *model.ScanRun) ([]byte, error) {
	return json.Marshal(run)
}

// Save writes run. It fails with ErrExists if the scan id is taken.
func (s *SQLiteStore) Save(ctx context.Context, run *model.ScanRun) error {
	if run == nil || run.ScanID == "" {
		return fmt.Errorf("scan run without id")
	}
	record, err := Encode(run)
	if err != nil {
		return fmt.Errorf("encode scan run: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (scan_id, workspace_id, user_id, target, target_type, status, total_cost, record, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (scan_id) DO NOTHING`,
		run.ScanID, run.WorkspaceID, run.UserID, run.Target, string(run.TargetType),
		string(run.Status), run.TotalCost, record, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, run.ScanID)
	}
	s.logger.Debug("scan run saved",
		logging.Field{Key: "scan_id", Value: run.ScanID},
		logging.Field{Key: "bytes", Value: len(record)})
	return nil
}

// GetRaw returns the stored record exactly as written.
func (s *SQLiteStore) GetRaw(ctx context.Context, scanID string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM scan_runs WHERE scan_id = ?`, scanID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *SQLiteStore) Get(ctx context.Context, scanID string) (*model.ScanRun, error) {
	record, err := s.GetRaw(ctx, scanID)
	if err != nil {
		return nil, err
	}
	var run model.ScanRun
	if err := json.Unmarshal(record, &run); err != nil {
		return nil, fmt.Errorf("decode scan run %s: %w", scanID, err)
	}
	return &run, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, scanID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM scan_runs WHERE scan_id = ?`, scanID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns summaries of a workspace's runs, newest first. limit <= 0
// returns all of them.
func (s *SQLiteStore) List(ctx context.Context, workspaceID string, limit int) ([]model.ScanSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT scan_id, target, target_type, status, total_cost, created_at
         FROM scan_runs WHERE workspace_id = ?
         ORDER BY created_at DESC, scan_id LIMIT ?`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ScanSummary{}
	for rows.Next() {
		var (
			sum       model.ScanSummary
			tt, st    string
			createdAt int64
		)
		if err := rows.Scan(&sum.ScanID, &sum.Target, &tt, &st, &sum.TotalCost, &createdAt); err != nil {
			return nil, err
		}
		sum.TargetType = model.TargetType(tt)
		sum.Status = model.RunStatus(st)
		sum.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}
