package models

// PreliminarySignal is the screening stage's early read on the problem.
type PreliminarySignal string

const (
	SignalLikelyPositive PreliminarySignal = "likely_positive"
	SignalUncertain      PreliminarySignal = "uncertain"
	SignalLikelyNegative PreliminarySignal = "likely_negative"
)

// IsValid checks if the preliminary signal is valid.
func (s PreliminarySignal) IsValid() bool {
	return s == SignalLikelyPositive || s == SignalUncertain || s == SignalLikelyNegative
}

// PriorityLevel ranks how much attention a dimension deserves.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// IsValid checks if the priority level is valid.
func (p PriorityLevel) IsValid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// PartialInsight is an early observation from screening, tagged with the
// dimension it is most relevant to.
type PartialInsight struct {
	Insight           string      `json:"insight"`
	Confidence        float64     `json:"confidence"` // 0..1
	RelevantDimension DimensionID `json:"relevantDimension"`
}

// DimensionPriorityHint tells the dimension stage where to focus.
type DimensionPriorityHint struct {
	DimensionID DimensionID   `json:"dimensionId"`
	Priority    PriorityLevel `json:"priority"`
	Reason      string        `json:"reason"`
}

// ScreeningOutput is the first stage's output: whether the problem can be
// evaluated, which clarifications are needed, and early signals.
type ScreeningOutput struct {
	CanEvaluate         bool                    `json:"canEvaluate"`
	Reason              string                  `json:"reason,omitempty"`
	ClarifyingQuestions []FollowUpQuestion      `json:"clarifyingQuestions"`
	PartialInsights     []PartialInsight        `json:"partialInsights"`
	PreliminarySignal   PreliminarySignal       `json:"preliminarySignal"`
	DimensionPriorities []DimensionPriorityHint `json:"dimensionPriorities"`
}
