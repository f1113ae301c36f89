package models

// QuestionPriority classifies how urgently a follow-up question needs an answer.
// An unanswered blocking question suspends the run at the next stage boundary.
type QuestionPriority string

const (
	PriorityBlocking QuestionPriority = "blocking"
	PriorityHelpful  QuestionPriority = "helpful"
	PriorityOptional QuestionPriority = "optional"
)

// IsValid checks if the question priority is valid.
func (p QuestionPriority) IsValid() bool {
	return p == PriorityBlocking || p == PriorityHelpful || p == PriorityOptional
}

// QuestionStage identifies which pipeline stage surfaced a question or answer.
type QuestionStage string

const (
	QuestionFromScreening QuestionStage = "screening"
	QuestionFromDimension QuestionStage = "dimension"
)

// IsValid checks if the question stage is valid.
func (s QuestionStage) IsValid() bool {
	return s == QuestionFromScreening || s == QuestionFromDimension
}

// QuestionSource records where a follow-up question came from.
type QuestionSource struct {
	Stage       QuestionStage `json:"stage"`
	DimensionID DimensionID   `json:"dimensionId,omitempty"`
}

// SuggestedOption is a pre-canned answer the UI can offer for a question.
type SuggestedOption struct {
	Label         string `json:"label"`
	Value         string `json:"value"`
	ImpactOnScore string `json:"impactOnScore,omitempty"`
}

// FollowUpQuestion is a clarifying question surfaced by screening or by a
// dimension analysis.
type FollowUpQuestion struct {
	ID                string            `json:"id"`
	Question          string            `json:"question"`
	Rationale         string            `json:"rationale"`
	Priority          QuestionPriority  `json:"priority"`
	Source            QuestionSource    `json:"source"`
	CurrentAssumption string            `json:"currentAssumption,omitempty"`
	SuggestedOptions  []SuggestedOption `json:"suggestedOptions,omitempty"`
}

// UserAnswer is a user's answer to a follow-up question, keyed by question id.
type UserAnswer struct {
	QuestionID string        `json:"questionId"`
	Answer     string        `json:"answer"`
	Source     QuestionStage `json:"source"`
	Timestamp  int64         `json:"timestamp"` // epoch milliseconds
}
