package engine

import (
	"context"
	"time"

	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/models"
)

// stubAnalyzer is a canned-output analyzer. Any function field left nil falls
// back to a happy-path default.
type stubAnalyzer struct {
	screeningFn  func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error)
	dimensionsFn func(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (map[models.DimensionID]models.DimensionAnalysis, error)
	verdictFn    func(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error)
	risksFn      func(ctx context.Context) ([]models.RiskFactor, error)
	altsFn       func(ctx context.Context) ([]models.Alternative, error)
	archFn       func(ctx context.Context) (*models.ArchitectureOutput, error)
	reasoningFn  func(ctx context.Context, in SynthesisInput) (string, error)
}

func happyScreening() *models.ScreeningOutput {
	return &models.ScreeningOutput{
		CanEvaluate:         true,
		ClarifyingQuestions: []models.FollowUpQuestion{},
		PartialInsights:     []models.PartialInsight{},
		PreliminarySignal:   models.SignalLikelyPositive,
		DimensionPriorities: []models.DimensionPriorityHint{},
	}
}

func favorableDimension(id models.DimensionID) models.DimensionAnalysis {
	return models.DimensionAnalysis{
		ID:         id,
		Name:       models.DimensionName(id),
		Score:      models.ScoreFavorable,
		Confidence: 0.9,
		Weight:     0.7,
		Reasoning:  "clear signal",
		Evidence:   []string{"stub evidence"},
		InfoGaps:   []models.FollowUpQuestion{},
		Status:     models.DimensionComplete,
	}
}

func allFavorableDimensions() map[models.DimensionID]models.DimensionAnalysis {
	out := make(map[models.DimensionID]models.DimensionAnalysis)
	for _, id := range models.AllDimensionIDs() {
		out[id] = favorableDimension(id)
	}
	return out
}

func (s *stubAnalyzer) AnalyzeScreening(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
	if s.screeningFn != nil {
		return s.screeningFn(ctx, input, answers)
	}
	return happyScreening(), nil
}

func (s *stubAnalyzer) AnalyzeAllDimensions(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (map[models.DimensionID]models.DimensionAnalysis, error) {
	if s.dimensionsFn != nil {
		return s.dimensionsFn(ctx, input, screening, answers)
	}
	return allFavorableDimensions(), nil
}

func (s *stubAnalyzer) CalculateVerdict(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error) {
	if s.verdictFn != nil {
		return s.verdictFn(ctx, input, screening, dimensions)
	}
	return &models.VerdictResult{
		Verdict:    models.VerdictStrongFit,
		Confidence: 0.88,
		Summary:    "strong fit",
		Reasoning:  "all dimensions favorable",
		KeyFactors: []models.KeyFactor{},
	}, nil
}

func (s *stubAnalyzer) AnalyzeRisks(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.RiskFactor, error) {
	if s.risksFn != nil {
		return s.risksFn(ctx)
	}
	return []models.RiskFactor{{Risk: "model drift", Severity: models.SeverityLow}}, nil
}

func (s *stubAnalyzer) AnalyzeAlternatives(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.Alternative, error) {
	if s.altsFn != nil {
		return s.altsFn(ctx)
	}
	return []models.Alternative{{Name: "rules engine", Description: "deterministic keyword routing"}}, nil
}

func (s *stubAnalyzer) RecommendArchitecture(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) (*models.ArchitectureOutput, error) {
	if s.archFn != nil {
		return s.archFn(ctx)
	}
	return &models.ArchitectureOutput{
		Architecture: &models.RecommendedArchitecture{
			Pattern:    "classifier with human review",
			Components: []models.ArchitectureComponent{{Name: "classifier", Purpose: "label tickets"}},
		},
		QuestionsBeforeBuilding: []models.PreBuildQuestion{{Question: "What is the review SLA?"}},
	}, nil
}

func (s *stubAnalyzer) SynthesizeReasoning(ctx context.Context, in SynthesisInput) (string, error) {
	if s.reasoningFn != nil {
		return s.reasoningFn(ctx, in)
	}
	return "the problem is well suited to an LLM-backed classifier", nil
}

// dimStubAnalyzer adds per-dimension fan-out on top of stubAnalyzer.
type dimStubAnalyzer struct {
	stubAnalyzer
	dimFn func(ctx context.Context, id models.DimensionID) (models.DimensionAnalysis, error)
}

func (s *dimStubAnalyzer) AnalyzeDimension(ctx context.Context, id models.DimensionID, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (models.DimensionAnalysis, error) {
	if s.dimFn != nil {
		return s.dimFn(ctx, id)
	}
	return favorableDimension(id), nil
}

// testConfig returns a configuration with short timeouts and delays so retry
// and timeout paths run quickly.
func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Pipeline.OverallTimeout = 5 * time.Second
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	for _, sc := range []*config.StageConfig{
		&cfg.Pipeline.Stages.Screening,
		&cfg.Pipeline.Stages.Dimensions,
		&cfg.Pipeline.Stages.Verdict,
		&cfg.Pipeline.Stages.Secondary,
		&cfg.Pipeline.Stages.Synthesis,
	} {
		sc.Timeout = time.Second
	}
	return cfg
}

func testInput() models.PipelineInput {
	return models.PipelineInput{
		Problem: "Classify inbound support tickets into 12 categories; mislabels are human-reviewed.",
	}
}

// drainEvents collects every event from a run until its stream closes.
func drainEvents(r *Run) []Event {
	var events []Event
	for e := range r.Events() {
		events = append(events, e)
	}
	return events
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func blockingQuestion(id string) models.FollowUpQuestion {
	return models.FollowUpQuestion{
		ID:        id,
		Question:  "Is there human review of mislabels?",
		Rationale: "error tolerance depends on it",
		Priority:  models.PriorityBlocking,
		Source:    models.QuestionSource{Stage: models.QuestionFromScreening},
	}
}
