package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/models"
)

// Sentinel errors returned by manager lookups.
var (
	ErrRunNotFound     = errors.New("run not found")
	ErrRunNotSuspended = errors.New("run is not suspended")
)

// Run is the handle the transport holds for one run: its event subscription,
// status access, and the final result once Done is closed.
type Run struct {
	id     string
	state  *RunState
	bus    *Bus
	cancel context.CancelFunc
	done   chan struct{}
	result *models.AnalysisResult
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Events is the ordered event stream; closed after the final event.
func (r *Run) Events() <-chan Event { return r.bus.Events() }

// Done is closed when the orchestrator has returned (completed, suspended,
// failed, or cancelled).
func (r *Run) Done() <-chan struct{} { return r.done }

// Result returns the assembled result. Valid only after Done is closed.
func (r *Run) Result() *models.AnalysisResult { return r.result }

// Status returns a consistent snapshot of the run's state.
func (r *Run) Status() RunStatusView { return r.state.StatusView() }

// Unsubscribe detaches the event consumer; the run keeps executing.
func (r *Run) Unsubscribe() { r.bus.Unsubscribe() }

// Manager owns the lifecycle of all runs in the process: start, resume,
// status, cancel, cleanup, and the inactivity sweep.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*managedRun

	orchestrator *Orchestrator
	cfg          *config.Config
	store        SnapshotStore
	logger       *slog.Logger

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

type managedRun struct {
	run        *Run
	lastActive time.Time
}

// NewManager creates a run manager. store may be nil (in-memory only;
// cross-process resume falls back to stateless restart).
func NewManager(analyzer Analyzer, cfg *config.Config, store SnapshotStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runs:         make(map[string]*managedRun),
		orchestrator: NewOrchestrator(analyzer, cfg, store, logger),
		cfg:          cfg,
		store:        store,
		logger:       logger,
	}
}

// Start allocates a fresh run, emits pipeline:start synchronously, and spawns
// the orchestrator on its own goroutine.
func (m *Manager) Start(input models.PipelineInput) (*Run, error) {
	runID := uuid.NewString()
	state := NewRunState(runID, input)
	return m.launch(state, func(bus *Bus) {
		bus.Publish(Event{
			Type:  EventPipelineStart,
			RunID: runID,
			Payload: PipelineStartPayload{
				RunID:     runID,
				Timestamp: time.Now().Format(time.RFC3339Nano),
			},
		})
	})
}

// Resume continues a suspended run with new answers (snapshot semantics: same
// run id, completed stages are not re-executed). The run is looked up in
// memory first, then in the snapshot store when one is configured.
func (m *Manager) Resume(ctx context.Context, runID string, answers []models.UserAnswer) (*Run, error) {
	state, err := m.takeSuspended(ctx, runID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	for i := range answers {
		if answers[i].Timestamp == 0 {
			answers[i].Timestamp = now
		}
	}
	state.ApplyAnswers(answers)
	state.SetStatus(models.RunRunning)

	return m.launch(state, func(bus *Bus) {
		bus.Publish(Event{
			Type:    EventPipelineResumed,
			RunID:   runID,
			Payload: PipelineResumedPayload{RunID: runID, FromStep: state.Stage()},
		})
		for _, a := range answers {
			bus.Publish(Event{
				Type:    EventAnswerReceived,
				RunID:   runID,
				Payload: AnswerReceivedPayload{QuestionID: a.QuestionID, Answer: a.Answer},
			})
		}
	})
}

// ResumeStateless begins a brand-new run whose input carries the answers as
// pre-applied, so screening sees them and does not re-ask. correlationID is
// the client's original run id, kept only for log correlation.
func (m *Manager) ResumeStateless(input models.PipelineInput, correlationID string) (*Run, error) {
	run, err := m.Start(input)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Stateless restart", "run_id", run.ID(), "correlation_id", correlationID)
	return run, nil
}

// takeSuspended fetches a suspended run's state for resumption.
func (m *Manager) takeSuspended(ctx context.Context, runID string) (*RunState, error) {
	m.mu.RLock()
	entry, ok := m.runs[runID]
	m.mu.RUnlock()

	if ok {
		if entry.run.state.Status() != models.RunSuspended {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotSuspended)
		}
		// The suspended orchestrator has returned; its handle is replaced on
		// relaunch.
		return entry.run.state, nil
	}

	if m.store == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	snap, err := m.store.LoadState(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if snap.Status != models.RunSuspended {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotSuspended)
	}
	return RestoreState(snap), nil
}

// launch registers a run handle and spawns the orchestrator. preamble runs
// synchronously on the fresh bus before the orchestrator starts, so lifecycle
// events precede all stage events.
func (m *Manager) launch(state *RunState, preamble func(*Bus)) (*Run, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	run := &Run{
		id:     state.RunID(),
		state:  state,
		bus:    NewBus(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if preamble != nil {
		preamble(run.bus)
	}

	m.mu.Lock()
	m.runs[run.id] = &managedRun{run: run, lastActive: time.Now()}
	m.mu.Unlock()

	go func() {
		defer cancel()
		run.result = m.orchestrator.Run(runCtx, state, run.bus)
		run.bus.CloseSend()
		close(run.done)
		m.touch(run.id)
	}()
	return run, nil
}

// Get returns the handle for a known run.
func (m *Manager) Get(runID string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.runs[runID]
	if !ok {
		return nil, false
	}
	return entry.run, true
}

// Status returns a status snapshot for a run, consulting the snapshot store
// for runs no longer in memory.
func (m *Manager) Status(ctx context.Context, runID string) (RunStatusView, error) {
	if run, ok := m.Get(runID); ok {
		m.touch(runID)
		return run.Status(), nil
	}
	if m.store != nil {
		if snap, err := m.store.LoadState(ctx, runID); err == nil {
			return RestoreState(snap).snapshotStatusView(snap.Status), nil
		}
	}
	return RunStatusView{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
}

// snapshotStatusView builds a status view for a restored run, preserving the
// persisted status instead of the restored "running" marker.
func (s *RunState) snapshotStatusView(status models.RunStatus) RunStatusView {
	view := s.StatusView()
	view.Status = status
	return view
}

// Cancel transitions a run to cancelled and signals its context. Returns
// whether the run was active (idempotent: a second call returns false).
func (m *Manager) Cancel(runID string) bool {
	run, ok := m.Get(runID)
	if !ok {
		return false
	}
	if run.state.Status().IsTerminal() {
		return false
	}

	stage := run.state.Stage()
	ee := NewExecutorError(CodeCancelled, stage, "run cancelled", context.Canceled)
	run.state.AppendError(ee)
	run.state.SetStatus(models.RunCancelled)
	run.bus.Publish(Event{
		Type:    EventPipelineError,
		RunID:   runID,
		Payload: PipelineErrorPayload{Code: CodeCancelled, Message: ee.Message, Recoverable: false},
	})
	run.cancel()
	m.touch(runID)
	m.logger.Info("Run cancelled", "run_id", runID, "stage", stage)
	return true
}

// RunCount reports how many runs are currently registered.
func (m *Manager) RunCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// CancelAll cancels every non-terminal run. Used during shutdown.
func (m *Manager) CancelAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Cancel(id)
	}
}

// Cleanup removes a run's record. Safe to call after the run reached a
// terminal state and the transport finished consuming events.
func (m *Manager) Cleanup(runID string) {
	m.mu.Lock()
	entry, ok := m.runs[runID]
	if ok {
		delete(m.runs, runID)
	}
	m.mu.Unlock()
	if ok {
		entry.run.bus.Unsubscribe()
	}
}

func (m *Manager) touch(runID string) {
	m.mu.Lock()
	if entry, ok := m.runs[runID]; ok {
		entry.lastActive = time.Now()
	}
	m.mu.Unlock()
}

// StartSweeper begins the periodic inactivity sweep that evicts settled runs
// older than the retention TTL.
func (m *Manager) StartSweeper(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	m.sweepCancel = cancel
	m.sweepDone = make(chan struct{})

	interval := m.cfg.Retention.SweepInterval
	go func() {
		defer close(m.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		m.logger.Info("Run sweeper started", "interval", interval, "ttl", m.cfg.Retention.RunTTL)
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// StopSweeper stops the sweep loop and waits for it to exit.
func (m *Manager) StopSweeper() {
	if m.sweepCancel == nil {
		return
	}
	m.sweepCancel()
	<-m.sweepDone
	m.logger.Info("Run sweeper stopped")
}

// sweep evicts runs that are settled (terminal or suspended) and inactive
// beyond the retention TTL. Suspended runs persisted to the snapshot store
// remain resumable after eviction.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.cfg.Retention.RunTTL)

	m.mu.Lock()
	var evicted []*managedRun
	for id, entry := range m.runs {
		status := entry.run.state.Status()
		if (status.IsTerminal() || status == models.RunSuspended) && entry.lastActive.Before(cutoff) {
			delete(m.runs, id)
			evicted = append(evicted, entry)
		}
	}
	m.mu.Unlock()

	for _, entry := range evicted {
		entry.run.bus.Unsubscribe()
	}
	if len(evicted) > 0 {
		m.logger.Info("Swept inactive runs", "count", len(evicted))
	}
}
