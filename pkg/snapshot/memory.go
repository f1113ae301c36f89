// Package snapshot provides the pluggable run-state persistence used when
// resume mode is "snapshot": an in-memory store for tests and single-process
// setups, and a PostgreSQL store for cross-invocation resume.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/assay-dev/assay/pkg/engine"
)

// SchemaVersion tags every persisted record so the layout can evolve.
const SchemaVersion = 1

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("snapshot not found")

// Memory is a concurrency-safe in-memory snapshot store. Records are stored
// as encoded JSON so the store has the same copy semantics as a database.
type Memory struct {
	mu     sync.RWMutex
	states map[string][]byte
	steps  map[string][]byte
}

var _ engine.SnapshotStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		states: make(map[string][]byte),
		steps:  make(map[string][]byte),
	}
}

func stepKey(runID, stepID string) string {
	return runID + "/" + stepID
}

// SaveState stores the state snapshot, replacing any previous one.
func (m *Memory) SaveState(ctx context.Context, snap *engine.StateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	m.mu.Lock()
	m.states[snap.RunID] = data
	m.mu.Unlock()
	return nil
}

// LoadState returns the stored state snapshot for a run.
func (m *Memory) LoadState(ctx context.Context, runID string) (*engine.StateSnapshot, error) {
	m.mu.RLock()
	data, ok := m.states[runID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	var snap engine.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// SaveResumeStep stores the per-step resume data.
func (m *Memory) SaveResumeStep(ctx context.Context, runID, stepID string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.steps[stepKey(runID, stepID)] = cp
	m.mu.Unlock()
	return nil
}

// LoadResumeStep returns the resume data for one step of a run.
func (m *Memory) LoadResumeStep(ctx context.Context, runID, stepID string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.steps[stepKey(runID, stepID)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("run %s step %s: %w", runID, stepID, ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// DeleteRun removes the run's state and all its resume steps.
func (m *Memory) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, runID)
	prefix := runID + "/"
	for k := range m.steps {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.steps, k)
		}
	}
	return nil
}
