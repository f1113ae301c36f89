package engine

import (
	"time"

	"github.com/assay-dev/assay/pkg/models"
)

// EventType tags every event published on a run's bus.
type EventType string

// Pipeline lifecycle events.
const (
	EventPipelineStart    EventType = "pipeline:start"
	EventPipelineStage    EventType = "pipeline:stage"
	EventPipelineResumed  EventType = "pipeline:resumed"
	EventPipelineComplete EventType = "pipeline:complete"
	EventPipelineError    EventType = "pipeline:error"
)

// Screening stage events.
const (
	EventScreeningStart    EventType = "screening:start"
	EventScreeningComplete EventType = "screening:complete"
	EventScreeningQuestion EventType = "screening:question"
	EventScreeningInsight  EventType = "screening:insight"
	EventScreeningSignal   EventType = "screening:signal"
)

// Dimension stage events.
const (
	EventDimensionStart    EventType = "dimension:start"
	EventDimensionComplete EventType = "dimension:complete"
	EventDimensionQuestion EventType = "dimension:question"
)

// Verdict, secondary, and synthesis stage events.
const (
	EventVerdictComputing     EventType = "verdict:computing"
	EventVerdictResult        EventType = "verdict:result"
	EventRisksStart           EventType = "risks:start"
	EventRisksComplete        EventType = "risks:complete"
	EventAlternativesStart    EventType = "alternatives:start"
	EventAlternativesComplete EventType = "alternatives:complete"
	EventArchitectureStart    EventType = "architecture:start"
	EventArchitectureComplete EventType = "architecture:complete"
	EventPreBuildComplete     EventType = "preBuild:complete"
	EventReasoningStart       EventType = "reasoning:start"
	EventReasoningComplete    EventType = "reasoning:complete"
	EventAnswerReceived       EventType = "answer:received"
)

// Event is one immutable record on a run's event stream.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// --- Typed payloads ---

// PipelineStartPayload accompanies pipeline:start.
type PipelineStartPayload struct {
	RunID     string `json:"runId"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// PipelineStagePayload accompanies pipeline:stage.
type PipelineStagePayload struct {
	Stage models.PipelineStage `json:"stage"`
}

// PipelineResumedPayload accompanies pipeline:resumed.
type PipelineResumedPayload struct {
	RunID    string               `json:"runId"`
	FromStep models.PipelineStage `json:"fromStep"`
}

// PipelineErrorPayload accompanies pipeline:error.
type PipelineErrorPayload struct {
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

// ScreeningSignalPayload accompanies screening:signal.
type ScreeningSignalPayload struct {
	Signal models.PreliminarySignal `json:"signal"`
}

// DimensionStartPayload accompanies dimension:start.
type DimensionStartPayload struct {
	DimensionID models.DimensionID `json:"dimensionId"`
}

// VerdictComputingPayload accompanies verdict:computing.
type VerdictComputingPayload struct {
	DimensionsAnalyzed int `json:"dimensionsAnalyzed"`
}

// ReasoningPayload accompanies reasoning:complete.
type ReasoningPayload struct {
	Reasoning string `json:"reasoning"`
}

// AnswerReceivedPayload accompanies answer:received.
type AnswerReceivedPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}
