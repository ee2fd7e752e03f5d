package duckdb

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inodb/covwatch/internal/translate"
)

// Run describes one conversion of an input file.
type Run struct {
	ID           string
	StartedAt    time.Time
	Input        string
	InputSize    int64
	InputModTime time.Time
	Contig       string
	Converted    int
	NoOp         int
	Skipped      int
}

// StartRun records a new run for input and returns it. Inputs that are not
// files on disk (stdin, "-") are recorded without a fingerprint.
func (s *Store) StartRun(input, contig string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		Input:     input,
		Contig:    contig,
	}
	if fp, err := StatFile(input); err == nil {
		run.InputSize = fp.Size
		run.InputModTime = fp.ModTime.UTC().Truncate(time.Microsecond)
	}

	_, err := s.db.Exec(`INSERT INTO conversion_runs
		(run_id, started_at, input, input_size, input_modtime, contig, converted, noop, skipped)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0)`,
		run.ID, run.StartedAt, run.Input, run.InputSize, run.InputModTime, run.Contig)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the run's counts and failures.
func (s *Store) FinishRun(run *Run, sum *translate.Summary) error {
	run.Converted = sum.Converted
	run.NoOp = len(sum.NoOp)
	run.Skipped = len(sum.Skipped)

	_, err := s.db.Exec(`UPDATE conversion_runs SET converted=?, noop=?, skipped=? WHERE run_id=?`,
		run.Converted, run.NoOp, run.Skipped, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	failures := make([]translate.Failure, 0, len(sum.NoOp)+len(sum.Skipped))
	failures = append(failures, sum.NoOp...)
	failures = append(failures, sum.Skipped...)
	return s.WriteFailures(run.ID, failures)
}

// Runs returns all recorded runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT
		run_id, started_at, input, input_size, input_modtime, contig, converted, noop, skipped
		FROM conversion_runs
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Input, &r.InputSize, &r.InputModTime,
			&r.Contig, &r.Converted, &r.NoOp, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run with its variants and failures.
func (s *Store) DeleteRun(runID string) error {
	for _, table := range []string{"converted_variants", "conversion_failures", "conversion_runs"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE run_id=?", runID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}
