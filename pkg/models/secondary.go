package models

// Severity grades a risk factor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// RiskFactor is one identified risk of building the proposed system.
type RiskFactor struct {
	Risk       string   `json:"risk"`
	Severity   Severity `json:"severity"`
	Likelihood string   `json:"likelihood,omitempty"`
	Mitigation string   `json:"mitigation,omitempty"`
}

// Alternative is a non-LLM (or differently-shaped) approach worth considering.
type Alternative struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	WhenPreferable string `json:"whenPreferable,omitempty"`
}

// ArchitectureComponent is one building block of a recommended architecture.
type ArchitectureComponent struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// RecommendedArchitecture sketches how the system could be built.
type RecommendedArchitecture struct {
	Pattern    string                  `json:"pattern"`
	Components []ArchitectureComponent `json:"components"`
	Notes      string                  `json:"notes,omitempty"`
}

// PreBuildQuestion is a question the team should settle before building.
type PreBuildQuestion struct {
	Question  string `json:"question"`
	Rationale string `json:"rationale,omitempty"`
	Category  string `json:"category,omitempty"`
}

// ArchitectureOutput bundles the architecture analyzer's two outputs.
type ArchitectureOutput struct {
	Architecture            *RecommendedArchitecture `json:"architecture"`
	QuestionsBeforeBuilding []PreBuildQuestion       `json:"questionsBeforeBuilding"`
}
