package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	dbpkg "github.com/VoxDroid/devtask/internal/db"
)

// timeLayout has fixed-width fractions so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository stores runs in the history database.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository using db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordRun inserts run and returns its ID.
func (r *Repository) RecordRun(run Run) (int64, error) {
	if strings.TrimSpace(run.Target) == "" {
		return 0, eris.New("invalid run: target cannot be empty")
	}
	switch run.Status {
	case StatusOK, StatusFailed, StatusCanceled:
	default:
		return 0, eris.Errorf("invalid run status %q", run.Status)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	res, err := r.db.Exec(`INSERT INTO runs (target, status, exit_code, started_at, duration_ms, dry_run, dir, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Target, string(run.Status), run.ExitCode, run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(), run.DryRun, run.Dir, run.Error)
	if err != nil {
		return 0, eris.Wrap(err, "insert run")
	}
	return res.LastInsertId()
}

// ListRuns returns runs newest first. An empty target lists every target;
// limit <= 0 means no limit.
func (r *Repository) ListRuns(target string, limit int) ([]Run, error) {
	q := "SELECT id, target, status, exit_code, started_at, duration_ms, dry_run, dir, error FROM runs"
	var args []interface{}
	if target != "" {
		q += " WHERE target = ?"
		args = append(args, target)
	}
	q += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query runs")
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "query runs")
	}
	return out, nil
}

// LastRun returns the most recent run of target, or nil when it never ran.
func (r *Repository) LastRun(target string) (*Run, error) {
	runs, err := r.ListRuns(target, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// Prune keeps the newest keep runs per target and deletes the rest. It
// returns how many rows were removed.
func (r *Repository) Prune(keep int) (int64, error) {
	if keep < 0 {
		return 0, eris.Errorf("invalid keep %d", keep)
	}
	res, err := r.db.Exec(`DELETE FROM runs WHERE id IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY target ORDER BY started_at DESC, id DESC) AS rn
			FROM runs
		) WHERE rn > ?
	)`, keep)
	if err != nil {
		return 0, eris.Wrap(err, "prune runs")
	}
	return res.RowsAffected()
}

// ExportRuns copies the runs of target (every target when empty) into a
// standalone history database at dstPath.
func (r *Repository) ExportRuns(target string, dstPath string) (int, error) {
	runs, err := r.ListRuns(target, 0)
	if err != nil {
		return 0, err
	}
	if target != "" && len(runs) == 0 {
		return 0, eris.Errorf("no history for %s", target)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return 0, eris.Wrap(err, "create dst dir")
	}
	dstDB, err := dbpkg.Open(dstPath)
	if err != nil {
		return 0, eris.Wrap(err, "open dst db")
	}
	defer func() { _ = dstDB.Close() }()

	trx, err := dstDB.Begin()
	if err != nil {
		return 0, eris.Wrap(err, "begin export")
	}
	defer func() { _ = trx.Rollback() }()
	// oldest first so IDs in the copy keep their relative order
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		if _, err := trx.Exec(`INSERT INTO runs (target, status, exit_code, started_at, duration_ms, dry_run, dir, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.Target, string(run.Status), run.ExitCode, run.StartedAt.UTC().Format(timeLayout),
			run.Duration.Milliseconds(), run.DryRun, run.Dir, run.Error); err != nil {
			return 0, eris.Wrap(err, "insert exported run")
		}
	}
	if err := trx.Commit(); err != nil {
		return 0, eris.Wrap(err, "commit export")
	}
	return len(runs), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var status, startedAt string
	var durationMS int64
	if err := s.Scan(&run.ID, &run.Target, &status, &run.ExitCode, &startedAt, &durationMS, &run.DryRun, &run.Dir, &run.Error); err != nil {
		return Run{}, eris.Wrap(err, "scan run")
	}
	run.Status = Status(status)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, eris.Wrapf(err, "parse started_at %q", startedAt)
	}
	run.StartedAt = t
	return run, nil
}
