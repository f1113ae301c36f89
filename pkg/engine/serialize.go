package engine

import (
	"time"

	"github.com/assay-dev/assay/pkg/models"
)

// StateSnapshot is the JSON-serializable form of a run's state, persisted by
// the snapshot store when resume mode is "snapshot". It captures everything
// needed to resume a suspended run without re-running completed stages.
type StateSnapshot struct {
	RunID                   string                                         `json:"runId"`
	Input                   models.PipelineInput                           `json:"input"`
	Answers                 []models.UserAnswer                            `json:"answers"`
	Screening               *models.ScreeningOutput                        `json:"screening,omitempty"`
	Dimensions              map[models.DimensionID]models.DimensionAnalysis `json:"dimensions,omitempty"`
	PendingQuestions        []models.FollowUpQuestion                      `json:"pendingQuestions,omitempty"`
	Verdict                 *models.VerdictResult                          `json:"verdict,omitempty"`
	Risks                   []models.RiskFactor                            `json:"risks,omitempty"`
	Alternatives            []models.Alternative                           `json:"alternatives,omitempty"`
	Architecture            *models.RecommendedArchitecture                `json:"architecture,omitempty"`
	QuestionsBeforeBuilding []models.PreBuildQuestion                      `json:"questionsBeforeBuilding,omitempty"`
	FinalReasoning          string                                         `json:"finalReasoning,omitempty"`
	Status                  models.RunStatus                               `json:"status"`
	Stage                   models.PipelineStage                           `json:"stage"`
	CompletedStages         []models.PipelineStage                         `json:"completedStages"`
	StartedAt               time.Time                                      `json:"startedAt"`
}

// Snapshot captures the current state for persistence.
func (s *RunState) Snapshot() *StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completed := make([]models.PipelineStage, 0, len(s.completedStages))
	for _, stage := range models.StageOrder() {
		if s.completedStages[stage] {
			completed = append(completed, stage)
		}
	}

	dims := make(map[models.DimensionID]models.DimensionAnalysis, len(s.dimensions))
	for k, v := range s.dimensions {
		dims[k] = v
	}

	return &StateSnapshot{
		RunID:                   s.runID,
		Input:                   s.input,
		Answers:                 s.answersLocked(),
		Screening:               s.screening,
		Dimensions:              dims,
		PendingQuestions:        append([]models.FollowUpQuestion{}, s.pendingQuestions...),
		Verdict:                 s.verdict,
		Risks:                   s.risks,
		Alternatives:            s.alternatives,
		Architecture:            s.architecture,
		QuestionsBeforeBuilding: s.questionsBeforeBuilding,
		FinalReasoning:          s.finalReasoning,
		Status:                  s.status,
		Stage:                   s.stage,
		CompletedStages:         completed,
		StartedAt:               s.startedAt,
	}
}

// RestoreState rebuilds run state from a persisted snapshot. The restored run
// is set back to running; the orchestrator decides where to pick up from the
// completed-stage set.
func RestoreState(snap *StateSnapshot) *RunState {
	s := &RunState{
		runID:            snap.RunID,
		input:            snap.Input,
		answers:          make(map[string]models.UserAnswer, len(snap.Answers)),
		screening:        snap.Screening,
		dimensions:       make(map[models.DimensionID]models.DimensionAnalysis, len(snap.Dimensions)),
		pendingQuestions: append([]models.FollowUpQuestion{}, snap.PendingQuestions...),
		verdict:          snap.Verdict,
		risks:            snap.Risks,
		alternatives:     snap.Alternatives,
		architecture:     snap.Architecture,
		finalReasoning:   snap.FinalReasoning,
		status:           models.RunRunning,
		stage:            snap.Stage,
		completedStages:  make(map[models.PipelineStage]bool, len(snap.CompletedStages)),
		startedAt:        snap.StartedAt,
	}
	s.questionsBeforeBuilding = snap.QuestionsBeforeBuilding
	for _, a := range snap.Answers {
		s.applyAnswerLocked(a)
	}
	for k, v := range snap.Dimensions {
		s.dimensions[k] = v
	}
	for _, st := range snap.CompletedStages {
		s.completedStages[st] = true
	}
	return s
}
