// Package models defines the domain types shared by the engine, analyzers,
// snapshot store, and HTTP transport.
package models

// DimensionID identifies one of the seven fixed rubric dimensions.
type DimensionID string

const (
	DimensionTaskDeterminism   DimensionID = "task_determinism"
	DimensionErrorTolerance    DimensionID = "error_tolerance"
	DimensionDataAvailability  DimensionID = "data_availability"
	DimensionEvaluationClarity DimensionID = "evaluation_clarity"
	DimensionEdgeCaseRisk      DimensionID = "edge_case_risk"
	DimensionHumanOversight    DimensionID = "human_oversight_cost"
	DimensionRateOfChange      DimensionID = "rate_of_change"
)

// AllDimensionIDs returns the seven dimension ids in lexicographic order.
func AllDimensionIDs() []DimensionID {
	return []DimensionID{
		DimensionDataAvailability,
		DimensionEdgeCaseRisk,
		DimensionErrorTolerance,
		DimensionEvaluationClarity,
		DimensionHumanOversight,
		DimensionRateOfChange,
		DimensionTaskDeterminism,
	}
}

// IsValid checks if the dimension id is one of the seven rubric dimensions.
func (d DimensionID) IsValid() bool {
	switch d {
	case DimensionTaskDeterminism,
		DimensionErrorTolerance,
		DimensionDataAvailability,
		DimensionEvaluationClarity,
		DimensionEdgeCaseRisk,
		DimensionHumanOversight,
		DimensionRateOfChange:
		return true
	default:
		return false
	}
}

// DimensionName returns the human-readable name for a dimension id.
func DimensionName(d DimensionID) string {
	switch d {
	case DimensionTaskDeterminism:
		return "Task Determinism"
	case DimensionErrorTolerance:
		return "Error Tolerance"
	case DimensionDataAvailability:
		return "Data Availability"
	case DimensionEvaluationClarity:
		return "Evaluation Clarity"
	case DimensionEdgeCaseRisk:
		return "Edge Case Risk"
	case DimensionHumanOversight:
		return "Human Oversight Cost"
	case DimensionRateOfChange:
		return "Rate of Change"
	default:
		return string(d)
	}
}

// DimensionScore is the qualitative score for one dimension.
type DimensionScore string

const (
	ScoreFavorable   DimensionScore = "favorable"
	ScoreNeutral     DimensionScore = "neutral"
	ScoreUnfavorable DimensionScore = "unfavorable"
)

// IsValid checks if the dimension score is valid.
func (s DimensionScore) IsValid() bool {
	return s == ScoreFavorable || s == ScoreNeutral || s == ScoreUnfavorable
}

// DimensionStatus tracks whether a dimension analysis has been produced.
type DimensionStatus string

const (
	DimensionPending  DimensionStatus = "pending"
	DimensionComplete DimensionStatus = "complete"
)

// DimensionAnalysis is the analyzer output for a single rubric dimension.
type DimensionAnalysis struct {
	ID         DimensionID        `json:"id"`
	Name       string             `json:"name"`
	Score      DimensionScore     `json:"score"`
	Confidence float64            `json:"confidence"` // 0..1
	Weight     float64            `json:"weight"`     // 0..1
	Reasoning  string             `json:"reasoning"`
	Evidence   []string           `json:"evidence"`
	InfoGaps   []FollowUpQuestion `json:"infoGaps"`
	Status     DimensionStatus    `json:"status"`
}

// NeutralDimension returns the default analysis used when a dimension failed
// under the continue-with-partial strategy: neutral score, zero weight, so the
// verdict calculation is unaffected by the missing signal.
func NeutralDimension(id DimensionID) DimensionAnalysis {
	return DimensionAnalysis{
		ID:         id,
		Name:       DimensionName(id),
		Score:      ScoreNeutral,
		Confidence: 0,
		Weight:     0,
		Reasoning:  "analysis unavailable; treated as neutral",
		Evidence:   []string{},
		InfoGaps:   []FollowUpQuestion{},
		Status:     DimensionPending,
	}
}
