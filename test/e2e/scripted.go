package e2e

import (
	"context"
	"fmt"

	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

// ScriptedAnalyzer implements engine.Analyzer with overridable function
// fields. Unset fields fall back to deterministic favorable outputs, so a test
// only scripts the stages it cares about.
type ScriptedAnalyzer struct {
	ScreeningFn     func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error)
	AllDimensionsFn func(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (map[models.DimensionID]models.DimensionAnalysis, error)
	VerdictFn       func(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error)
	RisksFn         func(ctx context.Context) ([]models.RiskFactor, error)
	AlternativesFn  func(ctx context.Context) ([]models.Alternative, error)
	ArchitectureFn  func(ctx context.Context) (*models.ArchitectureOutput, error)
	ReasoningFn     func(ctx context.Context, in engine.SynthesisInput) (string, error)
}

var _ engine.Analyzer = (*ScriptedAnalyzer)(nil)

// NewScriptedAnalyzer returns an analyzer whose every stage succeeds.
func NewScriptedAnalyzer() *ScriptedAnalyzer {
	return &ScriptedAnalyzer{}
}

// FavorableScreening is the default screening output: evaluable, no
// questions, positive signal.
func FavorableScreening() *models.ScreeningOutput {
	return &models.ScreeningOutput{
		CanEvaluate:         true,
		ClarifyingQuestions: []models.FollowUpQuestion{},
		PartialInsights:     []models.PartialInsight{},
		PreliminarySignal:   models.SignalLikelyPositive,
		DimensionPriorities: []models.DimensionPriorityHint{},
	}
}

// FavorableDimension is the default analysis for one dimension.
func FavorableDimension(id models.DimensionID) models.DimensionAnalysis {
	return models.DimensionAnalysis{
		ID:         id,
		Name:       models.DimensionName(id),
		Score:      models.ScoreFavorable,
		Confidence: 0.9,
		Weight:     0.7,
		Reasoning:  "scripted favorable outcome",
		Evidence:   []string{"scripted"},
		InfoGaps:   []models.FollowUpQuestion{},
		Status:     models.DimensionComplete,
	}
}

// BlockingQuestion builds a blocking screening question with the given id.
func BlockingQuestion(id string) models.FollowUpQuestion {
	return models.FollowUpQuestion{
		ID:       id,
		Question: fmt.Sprintf("Clarification needed (%s)?", id),
		Priority: models.PriorityBlocking,
		Source:   models.QuestionSource{Stage: models.QuestionFromScreening},
	}
}

func (s *ScriptedAnalyzer) AnalyzeScreening(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
	if s.ScreeningFn != nil {
		return s.ScreeningFn(ctx, input, answers)
	}
	return FavorableScreening(), nil
}

func (s *ScriptedAnalyzer) AnalyzeAllDimensions(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (map[models.DimensionID]models.DimensionAnalysis, error) {
	if s.AllDimensionsFn != nil {
		return s.AllDimensionsFn(ctx, input, screening, answers)
	}
	out := make(map[models.DimensionID]models.DimensionAnalysis, 7)
	for _, id := range models.AllDimensionIDs() {
		out[id] = FavorableDimension(id)
	}
	return out, nil
}

func (s *ScriptedAnalyzer) CalculateVerdict(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error) {
	if s.VerdictFn != nil {
		return s.VerdictFn(ctx, input, screening, dimensions)
	}
	return &models.VerdictResult{
		Verdict:    models.VerdictStrongFit,
		Confidence: 0.88,
		Summary:    "scripted strong fit",
		Reasoning:  "all dimensions favorable",
	}, nil
}

func (s *ScriptedAnalyzer) AnalyzeRisks(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.RiskFactor, error) {
	if s.RisksFn != nil {
		return s.RisksFn(ctx)
	}
	return []models.RiskFactor{{Risk: "model drift", Severity: models.SeverityLow}}, nil
}

func (s *ScriptedAnalyzer) AnalyzeAlternatives(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.Alternative, error) {
	if s.AlternativesFn != nil {
		return s.AlternativesFn(ctx)
	}
	return []models.Alternative{{Name: "rules engine", Description: "hand-written rules"}}, nil
}

func (s *ScriptedAnalyzer) RecommendArchitecture(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) (*models.ArchitectureOutput, error) {
	if s.ArchitectureFn != nil {
		return s.ArchitectureFn(ctx)
	}
	return &models.ArchitectureOutput{
		Architecture: &models.RecommendedArchitecture{
			Pattern: "draft-and-review",
			Components: []models.ArchitectureComponent{
				{Name: "classifier", Purpose: "scores each item"},
			},
		},
		QuestionsBeforeBuilding: []models.PreBuildQuestion{
			{Question: "What accuracy is acceptable?"},
		},
	}, nil
}

func (s *ScriptedAnalyzer) SynthesizeReasoning(ctx context.Context, in engine.SynthesisInput) (string, error) {
	if s.ReasoningFn != nil {
		return s.ReasoningFn(ctx, in)
	}
	return "scripted final reasoning", nil
}

// PerDimensionAnalyzer extends ScriptedAnalyzer with a per-dimension hook so
// the orchestrator fans dimensions out individually.
type PerDimensionAnalyzer struct {
	ScriptedAnalyzer
	DimensionFn func(ctx context.Context, id models.DimensionID) (models.DimensionAnalysis, error)
}

var _ engine.DimensionAnalyzer = (*PerDimensionAnalyzer)(nil)

func (p *PerDimensionAnalyzer) AnalyzeDimension(ctx context.Context, id models.DimensionID, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (models.DimensionAnalysis, error) {
	if p.DimensionFn != nil {
		return p.DimensionFn(ctx, id)
	}
	return FavorableDimension(id), nil
}
