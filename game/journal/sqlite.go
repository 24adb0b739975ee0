package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/service"
)

// ErrRunNotFound is returned when a step or finish refers to an unknown run
var ErrRunNotFound = errors.New("run not found")

var (
	_ service.Journal = (*SQLiteJournal)(nil)
	_ service.Journal = (*Memory)(nil)
)

// recentRuns caps the run summaries attached to a history page
const recentRuns = 10

// SQLiteJournal stores runs in a SQLite database
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the journal at path
func OpenSQLite(path string) (*SQLiteJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			commands TEXT NOT NULL,
			status TEXT NOT NULL,
			steps_executed INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			finished_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS runs_session ON runs(session_id, id);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			command TEXT NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			heading TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS laser_shots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			fired_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// StartRun opens a run record in the running state
func (j *SQLiteJournal) StartRun(ctx context.Context, sessionID, commands string) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (session_id, commands, status, started_at) VALUES (?, ?, ?, ?)`,
		sessionID, commands, string(engine.StatusRunning), j.timestamp())
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return res.LastInsertId()
}

// RecordStep appends one step to a run
func (j *SQLiteJournal) RecordStep(ctx context.Context, runID int64, step engine.StepResult) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, idx, command, kind, x, y, heading, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, step.Index, step.Command, string(step.Kind), step.Position.X, step.Position.Y,
		step.Heading.String(), string(step.Reason), j.timestamp())
	if err != nil {
		return fmt.Errorf("record step %d of run %d: %w", step.Index, runID, err)
	}
	return nil
}

// FinishRun stores the final status of a run
func (j *SQLiteJournal) FinishRun(ctx context.Context, runID int64, status engine.RunStatus, executed int) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, steps_executed = ?, finished_at = ? WHERE id = ?`,
		string(status), executed, j.timestamp(), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// RecordLaser stores a destroyed boulder
func (j *SQLiteJournal) RecordLaser(ctx context.Context, sessionID string, cell engine.Position) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO laser_shots (session_id, x, y, fired_at) VALUES (?, ?, ?, ?)`,
		sessionID, cell.X, cell.Y, j.timestamp())
	if err != nil {
		return fmt.Errorf("record laser: %w", err)
	}
	return nil
}

// LaserShots counts boulders destroyed in a session
func (j *SQLiteJournal) LaserShots(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM laser_shots WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// History returns one page of a session's steps, newest first unless Order is asc
func (j *SQLiteJournal) History(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	opts = opts.Normalize()

	where := `r.session_id = ?`
	args := []any{sessionID}
	if opts.RunID != 0 {
		where += ` AND s.run_id = ?`
		args = append(args, opts.RunID)
	}

	var total int
	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM steps s JOIN runs r ON r.id = s.run_id WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count steps: %w", err)
	}

	order := "DESC"
	if opts.Order == "asc" {
		order = "ASC"
	}
	query := `SELECT s.run_id, s.idx, s.command, s.kind, s.x, s.y, s.heading, s.reason, s.recorded_at
		FROM steps s JOIN runs r ON r.id = s.run_id
		WHERE ` + where + `
		ORDER BY s.run_id ` + order + `, s.idx ` + order + `
		LIMIT ? OFFSET ?`
	rows, err := j.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []service.StepRecord
	for rows.Next() {
		var (
			rec            service.StepRecord
			kind, reason   string
			heading, recAt string
		)
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Command, &kind, &rec.Position.X, &rec.Position.Y, &heading, &reason, &recAt); err != nil {
			return nil, err
		}
		rec.Kind = engine.StepKind(kind)
		rec.Reason = engine.BlockReason(reason)
		if rec.Heading, err = engine.ParseHeading(heading); err != nil {
			return nil, fmt.Errorf("run %d step %d: %w", rec.RunID, rec.Index, err)
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recAt)
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs, err := j.runs(ctx, sessionID, opts.RunID)
	if err != nil {
		return nil, err
	}

	resp := service.NewHistoryResponse(steps, total, opts)
	resp.Runs = runs
	return resp, nil
}

func (j *SQLiteJournal) runs(ctx context.Context, sessionID string, runID int64) ([]service.RunRecord, error) {
	query := `SELECT id, session_id, commands, status, steps_executed, started_at, finished_at
		FROM runs WHERE session_id = ?`
	args := []any{sessionID}
	if runID != 0 {
		query += ` AND id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, recentRuns)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []service.RunRecord
	for rows.Next() {
		var (
			rec      service.RunRecord
			status   string
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Commands, &status, &rec.StepsExecuted, &started, &finished); err != nil {
			return nil, err
		}
		rec.Status = engine.RunStatus(status)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
				rec.FinishedAt = &t
			}
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func (j *SQLiteJournal) timestamp() string {
	return j.now().UTC().Format(time.RFC3339Nano)
}
