package engine

import (
	"context"

	"github.com/assay-dev/assay/pkg/models"
)

// SynthesisInput carries everything the final narrative stage needs.
type SynthesisInput struct {
	Input                   models.PipelineInput
	Screening               *models.ScreeningOutput
	Dimensions              map[models.DimensionID]models.DimensionAnalysis
	Answers                 []models.UserAnswer
	Verdict                 *models.VerdictResult
	Risks                   []models.RiskFactor
	Alternatives            []models.Alternative
	Architecture            *models.RecommendedArchitecture
	QuestionsBeforeBuilding []models.PreBuildQuestion
}

// Analyzer is the contract between the engine and the analysis functions.
// The engine treats every method as a black box: implementations may call an
// LLM, a heuristic, or a test stub. All methods must observe ctx; errors are
// classified by the engine, so plain errors are fine.
type Analyzer interface {
	// AnalyzeScreening evaluates whether the problem can be scored and which
	// clarifications are needed. Answers include any pre-applied answers.
	AnalyzeScreening(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error)

	// AnalyzeAllDimensions scores the seven rubric dimensions. The
	// implementation may fan out internally; the engine only requires the
	// complete map on success.
	AnalyzeAllDimensions(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (map[models.DimensionID]models.DimensionAnalysis, error)

	// CalculateVerdict folds screening and dimension results into a verdict.
	CalculateVerdict(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error)

	// AnalyzeRisks identifies risk factors of building the proposed system.
	AnalyzeRisks(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.RiskFactor, error)

	// AnalyzeAlternatives proposes alternative approaches.
	AnalyzeAlternatives(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.Alternative, error)

	// RecommendArchitecture sketches an architecture and pre-build questions.
	RecommendArchitecture(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) (*models.ArchitectureOutput, error)

	// SynthesizeReasoning produces the final narrative.
	SynthesizeReasoning(ctx context.Context, in SynthesisInput) (string, error)
}
