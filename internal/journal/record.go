package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mapclient-tools/provenance-setup/internal/pipeline"
)

// Run is one journaled setup run.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time // zero until FinishRun
	SetupDir       string
	ProvenanceFile string
	RecordDigest   string
	Platform       string
	ExitCode       int // meaningful only once finished
	FailureStage   string
	Finished       bool
}

// timeFormat is how timestamps are stored; lexicographic order equals
// chronological order.
const timeFormat = time.RFC3339Nano

// BeginRun inserts the run row. Re-inserting an existing id is a no-op
// so a crashed-and-replayed recording never errors.
func (j *Journal) BeginRun(ctx context.Context, run Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, setup_dir, provenance_file, record_digest, platform)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		run.ID, run.StartedAt.UTC().Format(timeFormat),
		run.SetupDir, run.ProvenanceFile, run.RecordDigest, run.Platform)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stamps the run's outcome.
func (j *Journal) FinishRun(ctx context.Context, runID string, exitCode int, failureStage string, finishedAt time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, exit_code = ?, failure_stage = ?
		WHERE id = ?`,
		finishedAt.UTC().Format(timeFormat), exitCode, failureStage, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// RecordStage appends one executed stage. Duplicate (run, seq) pairs
// are ignored rather than erroring.
func (j *Journal) RecordStage(ctx context.Context, runID string, res pipeline.StageResult) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO stages (run_id, seq, name, status, detail, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING`,
		runID, res.Seq, res.Name, res.Status, res.Detail,
		res.Started.UTC().Format(timeFormat), res.Finished.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("record stage %s/%d: %w", runID, res.Seq, err)
	}
	return nil
}

// LastDigest returns the record digest of the most recent journaled
// run for a setup directory, or "" when there is none. The caller uses
// it to notice provenance drift under an existing environment.
func (j *Journal) LastDigest(ctx context.Context, setupDir string) (string, error) {
	var digest string
	err := j.db.QueryRowContext(ctx, `
		SELECT record_digest FROM runs
		WHERE setup_dir = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1`, setupDir).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last digest for %s: %w", setupDir, err)
	}
	return digest, nil
}

// ListRuns returns every journaled run, newest first.
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, setup_dir, provenance_file,
		       record_digest, platform, exit_code, failure_stage
		FROM runs
		ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started string
		var finished sql.NullString
		var exitCode sql.NullInt64
		if err := rows.Scan(&run.ID, &started, &finished, &run.SetupDir,
			&run.ProvenanceFile, &run.RecordDigest, &run.Platform,
			&exitCode, &run.FailureStage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			if run.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			run.Finished = true
		}
		if exitCode.Valid {
			run.ExitCode = int(exitCode.Int64)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunStages returns every recorded stage of a run, in execution order.
func (j *Journal) RunStages(ctx context.Context, runID string) ([]pipeline.StageResult, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, name, status, detail, started_at, finished_at
		FROM stages
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("stages for %s: %w", runID, err)
	}
	defer rows.Close()

	var results []pipeline.StageResult
	for rows.Next() {
		var res pipeline.StageResult
		var started, finished string
		if err := rows.Scan(&res.Seq, &res.Name, &res.Status, &res.Detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		if res.Started, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if res.Finished, err = time.Parse(timeFormat, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
