package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/FundManagerGo/models"
)

const (
	StatusStreaming = "streaming"
	StatusDone      = "done"
	StatusError     = "error"
)

// Store mirrors consultation runs and their turns into a local sqlite
// database so past consultations are browsable without the memory service.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    request TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_session_created ON runs(session_id, created_at);

CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    stage TEXT NOT NULL,
    input TEXT NOT NULL DEFAULT '',
    result TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_turns_run_seq ON turns(run_id, seq);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateRun inserts one pipeline run row and returns its id.
func (s *Store) CreateRun(ctx context.Context, sessionId, request string) (int64, error) {
	if strings.TrimSpace(sessionId) == "" {
		return 0, fmt.Errorf("session id is required")
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO runs (session_id, request, status)
VALUES (?, ?, ?)
`, sessionId, request, StatusStreaming)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

func (s *Store) SetRunStatus(ctx context.Context, runId int64, status string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, status, runId)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// SaveTurn appends one stage turn to a run.
func (s *Store) SaveTurn(ctx context.Context, turn models.TurnRecord) error {
	if turn.Seq <= 0 {
		return fmt.Errorf("turn seq must be positive")
	}
	if strings.TrimSpace(turn.Stage) == "" {
		return fmt.Errorf("turn stage is required")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO turns (run_id, stage, input, result, seq)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id, seq) DO NOTHING
`, turn.RunId, turn.Stage, turn.Input, turn.Result, turn.Seq)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// ListTurns returns every mirrored turn for a session across all of its
// runs, ordered by write time.
func (s *Store) ListTurns(ctx context.Context, sessionId string) ([]models.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.run_id, t.stage, t.input, t.result, t.seq, t.created_at
FROM turns t
JOIN runs r ON r.id = t.run_id
WHERE r.session_id = ?
ORDER BY t.run_id, t.seq
`, sessionId)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.TurnRecord
	for rows.Next() {
		var turn models.TurnRecord
		if err := rows.Scan(&turn.Id, &turn.RunId, &turn.Stage, &turn.Input, &turn.Result, &turn.Seq, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, request, status, created_at, updated_at
FROM runs
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var run models.RunRecord
		if err := rows.Scan(&run.Id, &run.SessionId, &run.Request, &run.Status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
