package engine

import (
	"sync"
	"time"

	"github.com/assay-dev/assay/pkg/models"
)

// stageWeights distribute overall progress across the five stages.
var stageWeights = map[models.PipelineStage]int{
	models.StageScreening:  10,
	models.StageDimensions: 40,
	models.StageVerdict:    15,
	models.StageSecondary:  25,
	models.StageSynthesis:  10,
}

// RunState is the accumulated state of one run. The orchestrator is the only
// writer; status queries read concurrently, so every access goes through the
// embedded lock.
type RunState struct {
	mu sync.RWMutex

	runID string
	input models.PipelineInput

	answers     map[string]models.UserAnswer
	answerOrder []string

	screening        *models.ScreeningOutput
	dimensions       map[models.DimensionID]models.DimensionAnalysis
	pendingQuestions []models.FollowUpQuestion

	verdict                 *models.VerdictResult
	risks                   []models.RiskFactor
	alternatives            []models.Alternative
	architecture            *models.RecommendedArchitecture
	questionsBeforeBuilding []models.PreBuildQuestion
	finalReasoning          string

	status          models.RunStatus
	stage           models.PipelineStage
	completedStages map[models.PipelineStage]bool
	errors          []*ExecutorError

	startedAt   time.Time
	completedAt time.Time
}

// NewRunState creates the state for a fresh run and applies any pre-supplied
// answers from the input.
func NewRunState(runID string, input models.PipelineInput) *RunState {
	s := &RunState{
		runID:           runID,
		input:           input,
		answers:         make(map[string]models.UserAnswer),
		dimensions:      make(map[models.DimensionID]models.DimensionAnalysis),
		completedStages: make(map[models.PipelineStage]bool),
		status:          models.RunRunning,
		stage:           models.StageScreening,
		startedAt:       time.Now(),
	}
	for _, a := range input.PreAppliedAnswers {
		s.applyAnswerLocked(a)
	}
	return s
}

// RunID returns the run's identifier.
func (s *RunState) RunID() string {
	return s.runID
}

// Input returns the immutable run input.
func (s *RunState) Input() models.PipelineInput {
	return s.input
}

// applyAnswerLocked records an answer. A repeated answer for the same question
// overwrites the value but keeps the original insertion position.
func (s *RunState) applyAnswerLocked(a models.UserAnswer) {
	if _, seen := s.answers[a.QuestionID]; !seen {
		s.answerOrder = append(s.answerOrder, a.QuestionID)
	}
	s.answers[a.QuestionID] = a
}

// ApplyAnswers merges user answers into the state.
func (s *RunState) ApplyAnswers(answers []models.UserAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range answers {
		s.applyAnswerLocked(a)
	}
}

// Answers returns the recorded answers in insertion order.
func (s *RunState) Answers() []models.UserAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answersLocked()
}

func (s *RunState) answersLocked() []models.UserAnswer {
	out := make([]models.UserAnswer, 0, len(s.answerOrder))
	for _, id := range s.answerOrder {
		out = append(out, s.answers[id])
	}
	return out
}

// AddQuestions appends newly surfaced follow-up questions, skipping ids that
// are already pending or answered.
func (s *RunState) AddQuestions(qs []models.FollowUpQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		if _, answered := s.answers[q.ID]; answered {
			continue
		}
		dup := false
		for _, p := range s.pendingQuestions {
			if p.ID == q.ID {
				dup = true
				break
			}
		}
		if !dup {
			s.pendingQuestions = append(s.pendingQuestions, q)
		}
	}
}

// UnansweredQuestions returns the pending questions that have no answer yet,
// in the order they were surfaced.
func (s *RunState) UnansweredQuestions() []models.FollowUpQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unansweredLocked()
}

func (s *RunState) unansweredLocked() []models.FollowUpQuestion {
	var out []models.FollowUpQuestion
	for _, q := range s.pendingQuestions {
		if _, answered := s.answers[q.ID]; !answered {
			out = append(out, q)
		}
	}
	return out
}

// HasBlockingQuestions reports whether any unanswered pending question is
// blocking. Only blocking questions suspend the run.
func (s *RunState) HasBlockingQuestions() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.pendingQuestions {
		if q.Priority != models.PriorityBlocking {
			continue
		}
		if _, answered := s.answers[q.ID]; !answered {
			return true
		}
	}
	return false
}

// SetScreening records the screening output.
func (s *RunState) SetScreening(out *models.ScreeningOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screening = out
}

// Screening returns the screening output, or nil before the stage completed.
func (s *RunState) Screening() *models.ScreeningOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screening
}

// SetDimensions replaces the dimension analyses.
func (s *RunState) SetDimensions(d map[models.DimensionID]models.DimensionAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions = d
}

// Dimensions returns a copy of the dimension analyses.
func (s *RunState) Dimensions() map[models.DimensionID]models.DimensionAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.DimensionID]models.DimensionAnalysis, len(s.dimensions))
	for k, v := range s.dimensions {
		out[k] = v
	}
	return out
}

// SetVerdict records the verdict stage output.
func (s *RunState) SetVerdict(v *models.VerdictResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = v
}

// Verdict returns the verdict result, or nil before the stage completed.
func (s *RunState) Verdict() *models.VerdictResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verdict
}

// SetSecondary records the secondary stage outputs.
func (s *RunState) SetSecondary(risks []models.RiskFactor, alts []models.Alternative, arch *models.ArchitectureOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risks = risks
	s.alternatives = alts
	if arch != nil {
		s.architecture = arch.Architecture
		s.questionsBeforeBuilding = arch.QuestionsBeforeBuilding
	}
}

// SetFinalReasoning records the synthesis narrative.
func (s *RunState) SetFinalReasoning(r string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalReasoning = r
}

// SetStage advances the current stage marker.
func (s *RunState) SetStage(stage models.PipelineStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// Stage returns the stage the run is in (or was suspended at).
func (s *RunState) Stage() models.PipelineStage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// MarkStageComplete records a finished stage for progress accounting.
func (s *RunState) MarkStageComplete(stage models.PipelineStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedStages[stage] = true
}

// StageCompleted reports whether the stage has finished.
func (s *RunState) StageCompleted(stage models.PipelineStage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedStages[stage]
}

// SetStatus transitions the run status. Terminal states also stamp the
// completion time; transitions out of a terminal state are ignored.
func (s *RunState) SetStatus(status models.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return
	}
	s.status = status
	if status.IsTerminal() {
		s.completedAt = time.Now()
	}
}

// Status returns the run's lifecycle status.
func (s *RunState) Status() models.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// AppendError records a classified failure for status reporting.
func (s *RunState) AppendError(e *ExecutorError) {
	if e == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
}

// Errors returns the recorded failures in occurrence order.
func (s *RunState) Errors() []*ExecutorError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ExecutorError, len(s.errors))
	copy(out, s.errors)
	return out
}

// Progress returns the percentage of stage weight completed, 0..100.
func (s *RunState) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for stage, done := range s.completedStages {
		if done {
			total += stageWeights[stage]
		}
	}
	if total > 100 {
		total = 100
	}
	return total
}

// RunStatusView is the snapshot returned by status queries.
type RunStatusView struct {
	RunID            string               `json:"runId"`
	Status           models.RunStatus     `json:"status"`
	Stage            models.PipelineStage `json:"stage"`
	Progress         int                  `json:"progress"`
	PendingQuestions []string             `json:"pendingQuestions"`
	Errors           []*ExecutorError     `json:"errors"`
	StartedAt        time.Time            `json:"startedAt"`
	CompletedAt      *time.Time           `json:"completedAt,omitempty"`
}

// StatusView assembles a consistent status snapshot.
func (s *RunState) StatusView() RunStatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := []string{}
	for _, q := range s.unansweredLocked() {
		pending = append(pending, q.ID)
	}

	total := 0
	for stage, done := range s.completedStages {
		if done {
			total += stageWeights[stage]
		}
	}

	view := RunStatusView{
		RunID:            s.runID,
		Status:           s.status,
		Stage:            s.stage,
		Progress:         total,
		PendingQuestions: pending,
		Errors:           append([]*ExecutorError{}, s.errors...),
		StartedAt:        s.startedAt,
	}
	if !s.completedAt.IsZero() {
		t := s.completedAt
		view.CompletedAt = &t
	}
	return view
}

// AssembleResult builds the run's final (or partial) result. Dimensions are
// emitted in lexicographic id order; missing dimensions are omitted. Key
// factors come from the verdict when present, otherwise they are derived from
// the dimension scores.
func (s *RunState) AssembleResult() *models.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dims := make([]models.DimensionAnalysis, 0, len(s.dimensions))
	for _, id := range models.AllDimensionIDs() {
		if d, ok := s.dimensions[id]; ok {
			dims = append(dims, d)
		}
	}

	var keyFactors []models.KeyFactor
	if s.verdict != nil && len(s.verdict.KeyFactors) > 0 {
		keyFactors = append([]models.KeyFactor{}, s.verdict.KeyFactors...)
	} else {
		for _, d := range dims {
			keyFactors = append(keyFactors, models.KeyFactor{
				DimensionID: d.ID,
				Influence:   models.DeriveInfluence(d.Score, d.Weight),
			})
		}
	}
	if keyFactors == nil {
		keyFactors = []models.KeyFactor{}
	}

	status := models.ResultSuccess
	switch s.status {
	case models.RunSuspended:
		status = models.ResultSuspended
	case models.RunFailed:
		status = models.ResultFailed
	case models.RunCancelled:
		status = models.ResultCancelled
	}

	end := s.completedAt
	if end.IsZero() {
		end = time.Now()
	}

	risks := s.risks
	if risks == nil {
		risks = []models.RiskFactor{}
	}
	alts := s.alternatives
	if alts == nil {
		alts = []models.Alternative{}
	}
	preBuild := s.questionsBeforeBuilding
	if preBuild == nil {
		preBuild = []models.PreBuildQuestion{}
	}

	return &models.AnalysisResult{
		RunID:                   s.runID,
		Status:                  status,
		Screening:               s.screening,
		Dimensions:              dims,
		Verdict:                 s.verdict,
		KeyFactors:              keyFactors,
		Risks:                   risks,
		Alternatives:            alts,
		Architecture:            s.architecture,
		QuestionsBeforeBuilding: preBuild,
		FinalReasoning:          s.finalReasoning,
		PendingQuestions:        s.unansweredLocked(),
		AnsweredQuestions:       s.answersLocked(),
		Stage:                   s.stage,
		DurationMs:              end.Sub(s.startedAt).Milliseconds(),
	}
}
