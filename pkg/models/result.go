package models

// ResultStatus is the outcome carried by an AnalysisResult.
type ResultStatus string

const (
	ResultSuccess   ResultStatus = "success"
	ResultSuspended ResultStatus = "suspended"
	ResultFailed    ResultStatus = "failed"
	ResultCancelled ResultStatus = "cancelled"
)

// AnalysisResult is the final (or partial) assembled output of a run.
// Dimensions are sorted lexicographically by id; answered questions appear in
// insertion order.
type AnalysisResult struct {
	RunID                   string                   `json:"runId"`
	Status                  ResultStatus             `json:"status"`
	Screening               *ScreeningOutput         `json:"screening,omitempty"`
	Dimensions              []DimensionAnalysis      `json:"dimensions"`
	Verdict                 *VerdictResult           `json:"verdict,omitempty"`
	KeyFactors              []KeyFactor              `json:"keyFactors"`
	Risks                   []RiskFactor             `json:"risks"`
	Alternatives            []Alternative            `json:"alternatives"`
	Architecture            *RecommendedArchitecture `json:"architecture"`
	QuestionsBeforeBuilding []PreBuildQuestion       `json:"questionsBeforeBuilding"`
	FinalReasoning          string                   `json:"finalReasoning,omitempty"`
	PendingQuestions        []FollowUpQuestion       `json:"pendingQuestions,omitempty"`
	AnsweredQuestions       []UserAnswer             `json:"answeredQuestions"`
	Stage                   PipelineStage            `json:"stage"`
	DurationMs              int64                    `json:"durationMs"`
}
