package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/models"
)

// DimensionAnalyzer is an optional extension of Analyzer. When implemented,
// the orchestrator fans the seven dimensions out itself, one resilient step
// per dimension, instead of delegating the whole stage to
// AnalyzeAllDimensions. This is what makes per-dimension partial failure
// observable under the continue-with-partial strategy.
type DimensionAnalyzer interface {
	AnalyzeDimension(ctx context.Context, id models.DimensionID, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (models.DimensionAnalysis, error)
}

// SnapshotStore persists run state at stage boundaries so a suspended run can
// be resumed by a later process. Implementations live outside the engine; a
// nil store means purely in-memory operation.
type SnapshotStore interface {
	SaveState(ctx context.Context, snap *StateSnapshot) error
	LoadState(ctx context.Context, runID string) (*StateSnapshot, error)
	SaveResumeStep(ctx context.Context, runID, stepID string, data []byte) error
	LoadResumeStep(ctx context.Context, runID, stepID string) ([]byte, error)
	DeleteRun(ctx context.Context, runID string) error
}

// Orchestrator drives a run through the five stages. One orchestrator is
// shared across runs; all per-run state lives in RunState.
type Orchestrator struct {
	analyzer Analyzer
	cfg      *config.Config
	store    SnapshotStore
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator. store may be nil.
func NewOrchestrator(analyzer Analyzer, cfg *config.Config, store SnapshotStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{analyzer: analyzer, cfg: cfg, store: store, logger: logger}
}

// Run executes the pipeline for the given state, skipping stages already
// completed (resume). It always returns a result: final on completion,
// partial on suspension, failure, or cancellation.
func (o *Orchestrator) Run(ctx context.Context, state *RunState, bus *Bus) *models.AnalysisResult {
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.OverallTimeout)
	defer cancel()

	logger := o.logger.With("run_id", state.RunID())

	if !state.StageCompleted(models.StageScreening) {
		if ee := o.runScreening(runCtx, state, bus); ee != nil {
			return o.fail(state, bus, ee)
		}
		o.saveSnapshot(state)
		if state.HasBlockingQuestions() {
			logger.Info("Run suspended on blocking questions", "stage", models.StageScreening)
			return o.suspend(state)
		}
	}

	if !state.StageCompleted(models.StageDimensions) {
		if ee := o.runDimensions(runCtx, state, bus); ee != nil {
			return o.fail(state, bus, ee)
		}
		o.saveSnapshot(state)
		if state.HasBlockingQuestions() {
			logger.Info("Run suspended on blocking questions", "stage", models.StageDimensions)
			return o.suspend(state)
		}
	}

	if !state.StageCompleted(models.StageVerdict) {
		if ee := o.runVerdict(runCtx, state, bus); ee != nil {
			return o.fail(state, bus, ee)
		}
		o.saveSnapshot(state)
	}

	if !state.StageCompleted(models.StageSecondary) {
		if ee := o.runSecondary(runCtx, state, bus); ee != nil {
			return o.fail(state, bus, ee)
		}
		o.saveSnapshot(state)
	}

	if !state.StageCompleted(models.StageSynthesis) {
		if ee := o.runSynthesis(runCtx, state, bus); ee != nil {
			return o.fail(state, bus, ee)
		}
		o.saveSnapshot(state)
	}

	state.SetStatus(models.RunCompleted)
	result := state.AssembleResult()
	o.publish(bus, state.RunID(), EventPipelineComplete, result)
	o.saveSnapshot(state)
	logger.Info("Run completed", "duration_ms", result.DurationMs)
	return result
}

// --- stages ---

func (o *Orchestrator) runScreening(ctx context.Context, state *RunState, bus *Bus) *ExecutorError {
	runID := state.RunID()
	state.SetStage(models.StageScreening)
	o.publish(bus, runID, EventPipelineStage, PipelineStagePayload{Stage: models.StageScreening})
	o.publish(bus, runID, EventScreeningStart, nil)

	out, ee := RunStep(ctx, o.stepConfig(models.StageScreening), func(ctx context.Context) (*models.ScreeningOutput, error) {
		return o.analyzer.AnalyzeScreening(ctx, state.Input(), state.Answers())
	})
	if ee != nil {
		return ee
	}

	state.SetScreening(out)
	state.AddQuestions(out.ClarifyingQuestions)

	for _, q := range out.ClarifyingQuestions {
		o.publish(bus, runID, EventScreeningQuestion, q)
	}
	for _, insight := range out.PartialInsights {
		o.publish(bus, runID, EventScreeningInsight, insight)
	}
	o.publish(bus, runID, EventScreeningSignal, ScreeningSignalPayload{Signal: out.PreliminarySignal})
	o.publish(bus, runID, EventScreeningComplete, out)

	state.MarkStageComplete(models.StageScreening)

	if !out.CanEvaluate && !state.HasBlockingQuestions() {
		// Unevaluable with nothing to ask the user: the run cannot make
		// progress.
		return NewExecutorError(CodeSchemaValidation, models.StageScreening,
			"problem cannot be evaluated: "+out.Reason, nil)
	}
	return nil
}

func (o *Orchestrator) runDimensions(ctx context.Context, state *RunState, bus *Bus) *ExecutorError {
	runID := state.RunID()
	state.SetStage(models.StageDimensions)
	o.publish(bus, runID, EventPipelineStage, PipelineStagePayload{Stage: models.StageDimensions})

	ids := models.AllDimensionIDs()
	for _, id := range ids {
		o.publish(bus, runID, EventDimensionStart, DimensionStartPayload{DimensionID: id})
	}

	continuePartial := o.cfg.Pipeline.ErrorStrategy == config.ErrorStrategyContinuePartial
	cfg := o.stepConfig(models.StageDimensions)
	dims := make(map[models.DimensionID]models.DimensionAnalysis, len(ids))

	if da, ok := o.analyzer.(DimensionAnalyzer); ok {
		input, screening, answers := state.Input(), state.Screening(), state.Answers()
		fns := make([]StepFunc[models.DimensionAnalysis], 0, len(ids))
		for _, id := range ids {
			id := id
			fns = append(fns, func(ctx context.Context) (models.DimensionAnalysis, error) {
				return da.AnalyzeDimension(ctx, id, input, screening, answers)
			})
		}
		settled := RunAll(ctx, cfg, !continuePartial, fns)
		for i, s := range settled {
			id := ids[i]
			if s.Status == StatusFulfilled {
				d := s.Value
				d.ID = id
				d.Status = models.DimensionComplete
				dims[id] = d
				continue
			}
			if !continuePartial {
				// Siblings cancelled by fail-fast settle as CANCELLED; the
				// originating failure is the one to report.
				if s.Err.Code != CodeCancelled {
					return s.Err
				}
				continue
			}
			o.recordError(state, bus, s.Err)
			dims[id] = models.NeutralDimension(id)
		}
		if !continuePartial && len(dims) < len(ids) {
			// Every rejection was CANCELLED: the parent context went away.
			return Classify(ctx.Err(), models.StageDimensions, 0)
		}
	} else {
		out, ee := RunStep(ctx, cfg, func(ctx context.Context) (map[models.DimensionID]models.DimensionAnalysis, error) {
			return o.analyzer.AnalyzeAllDimensions(ctx, state.Input(), state.Screening(), state.Answers())
		})
		if ee != nil {
			if !continuePartial || ee.Code == CodeCancelled {
				return ee
			}
			o.recordError(state, bus, ee)
			for _, id := range ids {
				dims[id] = models.NeutralDimension(id)
			}
		} else {
			for id, d := range out {
				d.ID = id
				if d.Status == "" {
					d.Status = models.DimensionComplete
				}
				dims[id] = d
			}
		}
	}

	state.SetDimensions(dims)

	for _, id := range ids {
		d, ok := dims[id]
		if !ok || d.Status != models.DimensionComplete {
			continue
		}
		state.AddQuestions(d.InfoGaps)
		for _, q := range d.InfoGaps {
			o.publish(bus, runID, EventDimensionQuestion, q)
		}
		o.publish(bus, runID, EventDimensionComplete, d)
	}

	state.MarkStageComplete(models.StageDimensions)
	return nil
}

func (o *Orchestrator) runVerdict(ctx context.Context, state *RunState, bus *Bus) *ExecutorError {
	runID := state.RunID()
	dims := state.Dimensions()

	analyzed := 0
	for _, d := range dims {
		if d.Status == models.DimensionComplete {
			analyzed++
		}
	}
	o.publish(bus, runID, EventVerdictComputing, VerdictComputingPayload{DimensionsAnalyzed: analyzed})

	state.SetStage(models.StageVerdict)
	o.publish(bus, runID, EventPipelineStage, PipelineStagePayload{Stage: models.StageVerdict})

	// Missing dimensions contribute a neutral zero-weight default.
	for _, id := range models.AllDimensionIDs() {
		if _, ok := dims[id]; !ok {
			dims[id] = models.NeutralDimension(id)
		}
	}

	verdict, ee := RunStep(ctx, o.stepConfig(models.StageVerdict), func(ctx context.Context) (*models.VerdictResult, error) {
		return o.analyzer.CalculateVerdict(ctx, state.Input(), state.Screening(), dims)
	})
	if ee != nil {
		return ee
	}

	state.SetVerdict(verdict)
	o.publish(bus, runID, EventVerdictResult, verdict)
	state.MarkStageComplete(models.StageVerdict)
	return nil
}

func (o *Orchestrator) runSecondary(ctx context.Context, state *RunState, bus *Bus) *ExecutorError {
	runID := state.RunID()
	state.SetStage(models.StageSecondary)
	o.publish(bus, runID, EventPipelineStage, PipelineStagePayload{Stage: models.StageSecondary})
	o.publish(bus, runID, EventRisksStart, nil)
	o.publish(bus, runID, EventAlternativesStart, nil)
	o.publish(bus, runID, EventArchitectureStart, nil)

	input, dims, verdict := state.Input(), state.Dimensions(), state.Verdict()
	continuePartial := o.cfg.Pipeline.ErrorStrategy == config.ErrorStrategyContinuePartial

	fns := []StepFunc[any]{
		func(ctx context.Context) (any, error) {
			return o.analyzer.AnalyzeRisks(ctx, input, dims, verdict)
		},
		func(ctx context.Context) (any, error) {
			return o.analyzer.AnalyzeAlternatives(ctx, input, dims, verdict)
		},
		func(ctx context.Context) (any, error) {
			return o.analyzer.RecommendArchitecture(ctx, input, dims, verdict)
		},
	}
	settled := RunAll(ctx, o.stepConfig(models.StageSecondary), !continuePartial, fns)

	var risks []models.RiskFactor
	var alts []models.Alternative
	var arch *models.ArchitectureOutput

	for _, s := range settled {
		if s.Status == StatusRejected {
			if !continuePartial {
				if s.Err.Code != CodeCancelled {
					return s.Err
				}
				continue
			}
			// Rejected slots settle as empty defaults.
			o.recordError(state, bus, s.Err)
			continue
		}
		switch s.Index {
		case 0:
			risks, _ = s.Value.([]models.RiskFactor)
		case 1:
			alts, _ = s.Value.([]models.Alternative)
		case 2:
			arch, _ = s.Value.(*models.ArchitectureOutput)
		}
	}
	if !continuePartial {
		for _, s := range settled {
			if s.Status == StatusRejected {
				return Classify(ctx.Err(), models.StageSecondary, 0)
			}
		}
	}

	if risks == nil {
		risks = []models.RiskFactor{}
	}
	if alts == nil {
		alts = []models.Alternative{}
	}
	state.SetSecondary(risks, alts, arch)

	o.publish(bus, runID, EventRisksComplete, risks)
	o.publish(bus, runID, EventAlternativesComplete, alts)
	if arch != nil {
		o.publish(bus, runID, EventArchitectureComplete, arch.Architecture)
		o.publish(bus, runID, EventPreBuildComplete, arch.QuestionsBeforeBuilding)
	} else {
		o.publish(bus, runID, EventArchitectureComplete, nil)
		o.publish(bus, runID, EventPreBuildComplete, []models.PreBuildQuestion{})
	}

	state.MarkStageComplete(models.StageSecondary)
	return nil
}

func (o *Orchestrator) runSynthesis(ctx context.Context, state *RunState, bus *Bus) *ExecutorError {
	runID := state.RunID()
	state.SetStage(models.StageSynthesis)
	o.publish(bus, runID, EventPipelineStage, PipelineStagePayload{Stage: models.StageSynthesis})
	o.publish(bus, runID, EventReasoningStart, nil)

	result := state.AssembleResult()
	in := SynthesisInput{
		Input:                   state.Input(),
		Screening:               state.Screening(),
		Dimensions:              state.Dimensions(),
		Answers:                 state.Answers(),
		Verdict:                 state.Verdict(),
		Risks:                   result.Risks,
		Alternatives:            result.Alternatives,
		Architecture:            result.Architecture,
		QuestionsBeforeBuilding: result.QuestionsBeforeBuilding,
	}
	reasoning, ee := RunStep(ctx, o.stepConfig(models.StageSynthesis), func(ctx context.Context) (string, error) {
		return o.analyzer.SynthesizeReasoning(ctx, in)
	})
	if ee != nil {
		return ee
	}

	state.SetFinalReasoning(reasoning)
	o.publish(bus, runID, EventReasoningComplete, ReasoningPayload{Reasoning: reasoning})
	state.MarkStageComplete(models.StageSynthesis)
	return nil
}

// --- outcomes ---

// suspend freezes the run pending user answers. No pipeline:error is emitted;
// suspension is not a failure.
func (o *Orchestrator) suspend(state *RunState) *models.AnalysisResult {
	state.SetStatus(models.RunSuspended)
	o.saveSnapshot(state)
	o.saveResumeStep(state)
	return state.AssembleResult()
}

// fail records the terminal failure and assembles a partial result from
// whatever stages completed. A CANCELLED failure on an already-cancelled run
// was reported by the manager; it is not recorded twice.
func (o *Orchestrator) fail(state *RunState, bus *Bus, ee *ExecutorError) *models.AnalysisResult {
	if ee.Code == CodeCancelled {
		if state.Status() != models.RunCancelled {
			o.recordError(state, bus, ee)
			state.SetStatus(models.RunCancelled)
		}
	} else {
		o.recordError(state, bus, ee)
		state.SetStatus(models.RunFailed)
	}
	o.saveSnapshot(state)
	result := state.AssembleResult()
	o.logger.Warn("Run ended with error",
		"run_id", state.RunID(), "stage", ee.Stage, "code", ee.Code, "error", ee.Message)
	return result
}

// recordError appends a classified failure to the run state and emits the
// matching pipeline:error event; each recorded error is emitted exactly once.
func (o *Orchestrator) recordError(state *RunState, bus *Bus, ee *ExecutorError) {
	state.AppendError(ee)
	o.publish(bus, state.RunID(), EventPipelineError, PipelineErrorPayload{
		Code:        ee.Code,
		Message:     ee.Message,
		Recoverable: ee.Recoverable,
	})
}

// --- helpers ---

func (o *Orchestrator) publish(bus *Bus, runID string, typ EventType, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(Event{Type: typ, RunID: runID, Timestamp: time.Now(), Payload: payload})
}

func (o *Orchestrator) stageSettings(stage models.PipelineStage) config.StageConfig {
	st := o.cfg.Pipeline.Stages
	switch stage {
	case models.StageScreening:
		return st.Screening
	case models.StageDimensions:
		return st.Dimensions
	case models.StageVerdict:
		return st.Verdict
	case models.StageSecondary:
		return st.Secondary
	default:
		return st.Synthesis
	}
}

func (o *Orchestrator) stepConfig(stage models.PipelineStage) StepConfig {
	sc := o.stageSettings(stage)
	return StepConfig{
		Stage:   stage,
		Timeout: sc.Timeout,
		Retry: RetryOptions{
			MaxAttempts:       sc.MaxAttempts,
			InitialDelay:      o.cfg.Retry.InitialDelay,
			MaxDelay:          o.cfg.Retry.MaxDelay,
			BackoffMultiplier: o.cfg.Retry.BackoffMultiplier,
		},
		OnError: func(ee *ExecutorError) {
			o.logger.Debug("Stage attempt failed",
				"stage", stage, "attempt", ee.Attempt, "code", ee.Code, "error", ee.Message)
		},
		OnRetry: func(attempt int, delay time.Duration, ee *ExecutorError) {
			o.logger.Info("Retrying stage",
				"stage", stage, "attempt", attempt, "delay", delay, "code", ee.Code)
		},
	}
}

// saveSnapshot persists state at a stage boundary. Persistence failures are
// logged, not fatal: the in-memory run keeps going.
func (o *Orchestrator) saveSnapshot(state *RunState) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.SaveState(ctx, state.Snapshot()); err != nil {
		o.logger.Warn("Failed to persist run snapshot", "run_id", state.RunID(), "error", err)
	}
}

// saveResumeStep records the suspension point and its unanswered questions.
func (o *Orchestrator) saveResumeStep(state *RunState) {
	if o.store == nil {
		return
	}
	data, err := json.Marshal(state.UnansweredQuestions())
	if err != nil {
		o.logger.Warn("Failed to encode resume step", "run_id", state.RunID(), "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.SaveResumeStep(ctx, state.RunID(), string(state.Stage()), data); err != nil {
		o.logger.Warn("Failed to persist resume step", "run_id", state.RunID(), "error", err)
	}
}
