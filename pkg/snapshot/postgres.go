package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assay-dev/assay/pkg/engine"
)

// Postgres stores run snapshots in PostgreSQL. State is kept as JSONB with a
// version tag; status and stage are denormalized for queries.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ engine.SnapshotStore = (*Postgres)(nil)

// NewPostgres creates a store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// SaveState upserts the run's state snapshot.
func (s *Postgres) SaveState(ctx context.Context, snap *engine.StateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (run_id, version, state, status, stage, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (run_id) DO UPDATE
		 SET version = $2, state = $3, status = $4, stage = $5, updated_at = NOW()`,
		snap.RunID, SchemaVersion, data, string(snap.Status), string(snap.Stage),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", snap.RunID, err)
	}
	return nil
}

// LoadState returns the stored snapshot for a run.
func (s *Postgres) LoadState(ctx context.Context, runID string) (*engine.StateSnapshot, error) {
	var (
		version int
		data    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT version, state FROM runs WHERE run_id = $1`, runID,
	).Scan(&version, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("run %s: unsupported snapshot version %d", runID, version)
	}
	var snap engine.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &snap, nil
}

// SaveResumeStep upserts the per-step resume data.
func (s *Postgres) SaveResumeStep(ctx context.Context, runID, stepID string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resume_steps (run_id, step_id, version, data, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (run_id, step_id) DO UPDATE
		 SET version = $3, data = $4, updated_at = NOW()`,
		runID, stepID, SchemaVersion, data,
	)
	if err != nil {
		return fmt.Errorf("save resume step %s/%s: %w", runID, stepID, err)
	}
	return nil
}

// LoadResumeStep returns the resume data for one step of a run.
func (s *Postgres) LoadResumeStep(ctx context.Context, runID, stepID string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM resume_steps WHERE run_id = $1 AND step_id = $2`,
		runID, stepID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s step %s: %w", runID, stepID, ErrNotFound)
		}
		return nil, fmt.Errorf("load resume step %s/%s: %w", runID, stepID, err)
	}
	return data, nil
}

// DeleteRun removes the run's state and all its resume steps.
func (s *Postgres) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resume_steps WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete resume steps for %s: %w", runID, err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}
