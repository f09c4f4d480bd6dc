// Package runstore keeps a SQLite history of calibration runs and the score of
// every model trained in them.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNoRuns is returned by LatestRun on an empty store.
var ErrNoRuns = errors.New("no runs recorded")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL,
	error       TEXT
);
CREATE TABLE IF NOT EXISTS model_scores (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	quantity   TEXT NOT NULL,
	model      TEXT NOT NULL,
	position   INTEGER NOT NULL,
	r2         REAL,
	rmse       REAL,
	train_size INTEGER NOT NULL,
	test_size  INTEGER NOT NULL,
	selected   INTEGER NOT NULL,
	PRIMARY KEY (run_id, quantity, model)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Run is one invocation of the pipeline.
type Run struct {
	ID         string
	Name       string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
}

// Score is the held-out evaluation of one candidate model.
type Score struct {
	Quantity  string
	Model     string
	R2        float64
	RMSE      float64
	TrainSize int
	TestSize  int
	Selected  bool
}

// Store is a run history backed by a SQLite file.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens or creates the store at path. A nil clock uses the real clock.
func Open(ctx context.Context, path string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run store schema: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new running run with a fresh ID.
func (s *Store) StartRun(ctx context.Context, name string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: s.clock.Now().UTC(),
		Status:    StatusRunning,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Name, formatTime(run.StartedAt), run.Status)
	if err != nil {
		return Run{}, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// RecordScores stores the candidates of a run. Their order is kept.
func (s *Store) RecordScores(ctx context.Context, runID string, scores []Score) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO model_scores
		(run_id, quantity, model, position, r2, rmse, train_size, test_size, selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, sc := range scores {
		_, err := stmt.ExecContext(ctx, runID, sc.Quantity, sc.Model, i,
			nullable(sc.R2), nullable(sc.RMSE), sc.TrainSize, sc.TestSize, sc.Selected)
		if err != nil {
			return fmt.Errorf("recording score %s/%s: %w", sc.Quantity, sc.Model, err)
		}
	}
	return tx.Commit()
}

// FinishRun marks a run succeeded, or failed with runErr.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusSucceeded, sql.NullString{}
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		formatTime(s.clock.Now().UTC()), status, msg, runID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Run returns one run by ID.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, started_at, finished_at, status, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, started_at, finished_at, status, error FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return run, err
}

// Scores returns the candidates of a run in the order they were recorded.
func (s *Store) Scores(ctx context.Context, runID string) ([]Score, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT quantity, model, r2, rmse, train_size, test_size, selected
		FROM model_scores WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Score
	for rows.Next() {
		var sc Score
		var r2, rmse sql.NullFloat64
		if err := rows.Scan(&sc.Quantity, &sc.Model, &r2, &rmse, &sc.TrainSize, &sc.TestSize, &sc.Selected); err != nil {
			return nil, err
		}
		sc.R2, sc.RMSE = fromNullable(r2), fromNullable(rmse)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanRun(row *sql.Row) (Run, error) {
	var run Run
	var started string
	var finished, msg sql.NullString
	if err := row.Scan(&run.ID, &run.Name, &started, &finished, &run.Status, &msg); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return Run{}, err
		}
	}
	run.Error = msg.String
	return run, nil
}

// Fixed width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// SQLite has no NaN; missing scores are NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
