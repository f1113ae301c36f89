package models

// Problem description length bounds enforced at the HTTP boundary.
const (
	MinProblemLength = 10
	MaxProblemLength = 5000
	MaxContextLength = 10000
)

// PipelineInput is the immutable per-run input.
type PipelineInput struct {
	Problem           string       `json:"problem"`
	Context           string       `json:"context,omitempty"`
	PreAppliedAnswers []UserAnswer `json:"preAppliedAnswers,omitempty"`
}

// PipelineStage is one of the five sequential pipeline stages.
type PipelineStage string

const (
	StageScreening  PipelineStage = "screening"
	StageDimensions PipelineStage = "dimensions"
	StageVerdict    PipelineStage = "verdict"
	StageSecondary  PipelineStage = "secondary"
	StageSynthesis  PipelineStage = "synthesis"
)

// StageOrder returns the five stages in execution order.
func StageOrder() []PipelineStage {
	return []PipelineStage{StageScreening, StageDimensions, StageVerdict, StageSecondary, StageSynthesis}
}

// IsValid checks if the pipeline stage is valid.
func (s PipelineStage) IsValid() bool {
	switch s {
	case StageScreening, StageDimensions, StageVerdict, StageSecondary, StageSynthesis:
		return true
	default:
		return false
	}
}

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuspended RunStatus = "suspended"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// IsValid checks if the run status is valid.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunRunning, RunSuspended, RunCompleted, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a sink state.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}
