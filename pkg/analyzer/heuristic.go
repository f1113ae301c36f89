// Package analyzer provides the built-in heuristic analyzer: a deterministic,
// keyword-driven implementation of the engine's analyzer contract. It stands
// in where no LLM backend is wired and doubles as a realistic fixture for
// end-to-end testing.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

// Heuristic scores problems by keyword evidence. All methods are pure
// functions of their inputs, so runs are reproducible.
type Heuristic struct{}

var (
	_ engine.Analyzer          = (*Heuristic)(nil)
	_ engine.DimensionAnalyzer = (*Heuristic)(nil)
)

// New returns the heuristic analyzer.
func New() *Heuristic {
	return &Heuristic{}
}

// signalKeywords separate problems that look automatable from ones that
// demand hard guarantees.
var (
	favorableSignals   = []string{"classify", "categorize", "label", "extract", "summarize", "summarise", "translate", "triage", "draft", "route"}
	unfavorableSignals = []string{"real-time", "realtime", "guarantee", "exact", "100%", "zero error", "safety-critical", "life-critical"}
	oversightSignals   = []string{"human", "review", "oversight", "approve", "escalat"}
	highStakesSignals  = []string{"medical", "legal", "financial", "compliance", "safety"}
)

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

func answered(answers []models.UserAnswer, questionID string) bool {
	for _, a := range answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// AnalyzeScreening checks the problem for enough signal to score and surfaces
// a blocking oversight question for high-stakes domains with no mention of
// human review.
func (h *Heuristic) AnalyzeScreening(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.ToLower(input.Problem + " " + input.Context)

	out := &models.ScreeningOutput{
		CanEvaluate:         true,
		ClarifyingQuestions: []models.FollowUpQuestion{},
		PartialInsights:     []models.PartialInsight{},
		DimensionPriorities: []models.DimensionPriorityHint{},
	}

	if len(strings.Fields(input.Problem)) < 3 {
		out.CanEvaluate = false
		out.Reason = "problem description is too sparse to evaluate"
		out.PreliminarySignal = models.SignalUncertain
		return out, nil
	}

	const oversightQuestion = "q-human-oversight"
	if containsAny(text, highStakesSignals) && !containsAny(text, oversightSignals) && !answered(answers, oversightQuestion) {
		out.ClarifyingQuestions = append(out.ClarifyingQuestions, models.FollowUpQuestion{
			ID:                oversightQuestion,
			Question:          "Will a human review or approve the system's outputs before they take effect?",
			Rationale:         "High-stakes domains need a stated oversight model before error tolerance can be scored.",
			Priority:          models.PriorityBlocking,
			Source:            models.QuestionSource{Stage: models.QuestionFromScreening},
			CurrentAssumption: "no human review",
			SuggestedOptions: []models.SuggestedOption{
				{Label: "Yes, every output is reviewed", Value: "full review", ImpactOnScore: "raises error tolerance"},
				{Label: "Only flagged outputs", Value: "sampled review"},
				{Label: "No review", Value: "none", ImpactOnScore: "lowers error tolerance"},
			},
		})
	}

	pos := countMatches(text, favorableSignals)
	neg := countMatches(text, unfavorableSignals)
	switch {
	case pos > neg:
		out.PreliminarySignal = models.SignalLikelyPositive
	case neg > pos:
		out.PreliminarySignal = models.SignalLikelyNegative
	default:
		out.PreliminarySignal = models.SignalUncertain
	}

	if containsAny(text, oversightSignals) {
		out.PartialInsights = append(out.PartialInsights, models.PartialInsight{
			Insight:           "A human review loop is described, which absorbs individual mistakes.",
			Confidence:        0.7,
			RelevantDimension: models.DimensionErrorTolerance,
		})
	}
	if neg > 0 {
		out.DimensionPriorities = append(out.DimensionPriorities, models.DimensionPriorityHint{
			DimensionID: models.DimensionErrorTolerance,
			Priority:    models.PriorityHigh,
			Reason:      "the problem statement demands strict correctness",
		})
	}
	return out, nil
}

// dimensionRule holds the per-dimension keyword evidence tables.
type dimensionRule struct {
	favorable   []string
	unfavorable []string
	weight      float64
}

var dimensionRules = map[models.DimensionID]dimensionRule{
	models.DimensionTaskDeterminism: {
		favorable:   []string{"classify", "categorize", "label", "fixed", "categories", "template"},
		unfavorable: []string{"open-ended", "creative", "novel", "ambiguous"},
		weight:      0.8,
	},
	models.DimensionErrorTolerance: {
		favorable:   []string{"review", "human", "oversight", "draft", "suggest"},
		unfavorable: []string{"guarantee", "exact", "100%", "critical", "irreversible"},
		weight:      0.9,
	},
	models.DimensionDataAvailability: {
		favorable:   []string{"historical", "labeled", "existing", "logs", "examples", "tickets"},
		unfavorable: []string{"no data", "cold start", "proprietary", "scarce"},
		weight:      0.7,
	},
	models.DimensionEvaluationClarity: {
		favorable:   []string{"accuracy", "categories", "measurable", "ground truth", "benchmark"},
		unfavorable: []string{"subjective", "taste", "style", "opinion"},
		weight:      0.7,
	},
	models.DimensionEdgeCaseRisk: {
		favorable:   []string{"narrow", "bounded", "fixed", "limited"},
		unfavorable: []string{"adversarial", "fraud", "abuse", "long tail", "edge case"},
		weight:      0.6,
	},
	models.DimensionHumanOversight: {
		favorable:   []string{"review", "batch", "asynchronous", "queue"},
		unfavorable: []string{"real-time", "realtime", "instant", "unattended", "autonomous"},
		weight:      0.6,
	},
	models.DimensionRateOfChange: {
		favorable:   []string{"stable", "established", "mature", "rarely change"},
		unfavorable: []string{"evolving", "frequently change", "seasonal", "volatile", "new regulation"},
		weight:      0.5,
	},
}

// AnalyzeDimension scores one dimension from its keyword evidence.
func (h *Heuristic) AnalyzeDimension(ctx context.Context, id models.DimensionID, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (models.DimensionAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return models.DimensionAnalysis{}, err
	}
	text := strings.ToLower(input.Problem + " " + input.Context)
	for _, a := range answers {
		text += " " + strings.ToLower(a.Answer)
	}

	rule := dimensionRules[id]
	var evidence []string
	pos, neg := 0, 0
	for _, k := range rule.favorable {
		if strings.Contains(text, k) {
			pos++
			evidence = append(evidence, fmt.Sprintf("mentions %q", k))
		}
	}
	for _, k := range rule.unfavorable {
		if strings.Contains(text, k) {
			neg++
			evidence = append(evidence, fmt.Sprintf("mentions %q (unfavorable)", k))
		}
	}
	if evidence == nil {
		evidence = []string{}
	}

	d := models.DimensionAnalysis{
		ID:       id,
		Name:     models.DimensionName(id),
		Weight:   rule.weight,
		Evidence: evidence,
		InfoGaps: []models.FollowUpQuestion{},
		Status:   models.DimensionComplete,
	}
	switch {
	case pos > neg:
		d.Score = models.ScoreFavorable
		d.Confidence = 0.5 + 0.1*float64(pos-neg)
		d.Reasoning = fmt.Sprintf("%d favorable signals outweigh %d unfavorable ones", pos, neg)
	case neg > pos:
		d.Score = models.ScoreUnfavorable
		d.Confidence = 0.5 + 0.1*float64(neg-pos)
		d.Reasoning = fmt.Sprintf("%d unfavorable signals outweigh %d favorable ones", neg, pos)
	default:
		d.Score = models.ScoreNeutral
		d.Confidence = 0.4
		d.Reasoning = "no decisive evidence either way"
	}
	if d.Confidence > 0.95 {
		d.Confidence = 0.95
	}
	return d, nil
}

// AnalyzeAllDimensions scores the seven dimensions sequentially. The engine
// normally prefers the per-dimension entry point; this exists to satisfy the
// full contract.
func (h *Heuristic) AnalyzeAllDimensions(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, answers []models.UserAnswer) (map[models.DimensionID]models.DimensionAnalysis, error) {
	out := make(map[models.DimensionID]models.DimensionAnalysis, len(dimensionRules))
	for _, id := range models.AllDimensionIDs() {
		d, err := h.AnalyzeDimension(ctx, id, input, screening, answers)
		if err != nil {
			return nil, err
		}
		out[id] = d
	}
	return out, nil
}

// CalculateVerdict folds the weighted dimension scores into a verdict.
func (h *Heuristic) CalculateVerdict(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tally, totalWeight float64
	var keyFactors []models.KeyFactor
	for _, id := range models.AllDimensionIDs() {
		d, ok := dimensions[id]
		if !ok {
			continue
		}
		totalWeight += d.Weight
		switch d.Score {
		case models.ScoreFavorable:
			tally += d.Weight
		case models.ScoreUnfavorable:
			tally -= d.Weight
		}
		keyFactors = append(keyFactors, models.KeyFactor{
			DimensionID: id,
			Influence:   models.DeriveInfluence(d.Score, d.Weight),
			Note:        d.Reasoning,
		})
	}

	score := 0.0
	if totalWeight > 0 {
		score = tally / totalWeight
	}
	v := &models.VerdictResult{
		Confidence: 0.5 + 0.4*abs(score),
		KeyFactors: keyFactors,
	}
	switch {
	case score >= 0.5:
		v.Verdict = models.VerdictStrongFit
		v.Summary = "the problem fits an LLM-backed system well"
	case score >= 0:
		v.Verdict = models.VerdictConditional
		v.Summary = "workable, with conditions on the weaker dimensions"
	case score > -0.4:
		v.Verdict = models.VerdictWeakFit
		v.Summary = "unfavorable dimensions outweigh the favorable ones"
	default:
		v.Verdict = models.VerdictNotRecommended
		v.Summary = "the rubric points clearly away from an LLM approach"
	}
	v.Reasoning = fmt.Sprintf("weighted dimension score %.2f across %d dimensions", score, len(keyFactors))
	return v, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// AnalyzeRisks derives risks from the unfavorable dimensions.
func (h *Heuristic) AnalyzeRisks(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.RiskFactor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	risks := []models.RiskFactor{}
	for _, id := range models.AllDimensionIDs() {
		d, ok := dimensions[id]
		if !ok || d.Score != models.ScoreUnfavorable {
			continue
		}
		severity := models.SeverityMedium
		if d.Weight >= 0.8 {
			severity = models.SeverityHigh
		}
		risks = append(risks, models.RiskFactor{
			Risk:       fmt.Sprintf("%s scored unfavorable: %s", d.Name, d.Reasoning),
			Severity:   severity,
			Mitigation: "add guardrails or narrow the task before committing",
		})
	}
	if len(risks) == 0 {
		risks = append(risks, models.RiskFactor{
			Risk:     "model behavior may drift as the underlying provider updates",
			Severity: models.SeverityLow,
		})
	}
	return risks, nil
}

// AnalyzeAlternatives suggests non-LLM approaches, ordered strongest first.
func (h *Heuristic) AnalyzeAlternatives(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) ([]models.Alternative, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alts := []models.Alternative{
		{
			Name:           "rules engine",
			Description:    "hand-written rules over the same inputs",
			WhenPreferable: "when the decision logic is small and fully known",
		},
	}
	if d, ok := dimensions[models.DimensionDataAvailability]; ok && d.Score == models.ScoreFavorable {
		alts = append(alts, models.Alternative{
			Name:           "classical ML classifier",
			Description:    "a supervised model trained on the existing labeled data",
			WhenPreferable: "when label volume is high and categories are stable",
		})
	}
	sort.Slice(alts, func(i, j int) bool { return alts[i].Name < alts[j].Name })
	return alts, nil
}

// RecommendArchitecture sketches a build shaped by the oversight dimension.
func (h *Heuristic) RecommendArchitecture(ctx context.Context, input models.PipelineInput, dimensions map[models.DimensionID]models.DimensionAnalysis, verdict *models.VerdictResult) (*models.ArchitectureOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arch := &models.RecommendedArchitecture{
		Pattern: "single-shot structured extraction",
		Components: []models.ArchitectureComponent{
			{Name: "prompt layer", Purpose: "render the task input into a structured prompt"},
			{Name: "schema validator", Purpose: "reject malformed model output before it propagates"},
		},
	}
	if d, ok := dimensions[models.DimensionHumanOversight]; ok && d.Score != models.ScoreUnfavorable {
		arch.Pattern = "draft-and-review"
		arch.Components = append(arch.Components, models.ArchitectureComponent{
			Name: "review queue", Purpose: "route low-confidence outputs to a human",
		})
	}
	return &models.ArchitectureOutput{
		Architecture: arch,
		QuestionsBeforeBuilding: []models.PreBuildQuestion{
			{Question: "What error rate is acceptable in production?", Category: "quality"},
			{Question: "Who owns the review backlog when volume spikes?", Category: "operations"},
		},
	}, nil
}

// SynthesizeReasoning assembles the final narrative from the stage outputs.
func (h *Heuristic) SynthesizeReasoning(ctx context.Context, in engine.SynthesisInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	if in.Verdict != nil {
		fmt.Fprintf(&b, "Verdict: %s (confidence %.2f). %s", in.Verdict.Verdict, in.Verdict.Confidence, in.Verdict.Summary)
	}
	fav, unfav := 0, 0
	for _, d := range in.Dimensions {
		switch d.Score {
		case models.ScoreFavorable:
			fav++
		case models.ScoreUnfavorable:
			unfav++
		}
	}
	fmt.Fprintf(&b, " %d of %d dimensions scored favorable, %d unfavorable.", fav, len(in.Dimensions), unfav)
	if len(in.Risks) > 0 {
		fmt.Fprintf(&b, " Top risk: %s.", in.Risks[0].Risk)
	}
	if len(in.Answers) > 0 {
		fmt.Fprintf(&b, " The assessment incorporates %d user answer(s).", len(in.Answers))
	}
	return b.String(), nil
}
