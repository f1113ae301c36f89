package models

// Verdict is the overall recommendation.
type Verdict string

const (
	VerdictStrongFit      Verdict = "STRONG_FIT"
	VerdictConditional    Verdict = "CONDITIONAL"
	VerdictWeakFit        Verdict = "WEAK_FIT"
	VerdictNotRecommended Verdict = "NOT_RECOMMENDED"
)

// IsValid checks if the verdict is valid.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictStrongFit, VerdictConditional, VerdictWeakFit, VerdictNotRecommended:
		return true
	default:
		return false
	}
}

// FactorInfluence describes how strongly a dimension pushed the verdict.
type FactorInfluence string

const (
	InfluenceStronglyPositive FactorInfluence = "strongly_positive"
	InfluencePositive         FactorInfluence = "positive"
	InfluenceNeutral          FactorInfluence = "neutral"
	InfluenceNegative         FactorInfluence = "negative"
	InfluenceStronglyNegative FactorInfluence = "strongly_negative"
)

// IsValid checks if the factor influence is valid.
func (f FactorInfluence) IsValid() bool {
	switch f {
	case InfluenceStronglyPositive, InfluencePositive, InfluenceNeutral,
		InfluenceNegative, InfluenceStronglyNegative:
		return true
	default:
		return false
	}
}

// KeyFactor ties a dimension to its influence on the verdict.
type KeyFactor struct {
	DimensionID DimensionID     `json:"dimensionId"`
	Influence   FactorInfluence `json:"influence"`
	Note        string          `json:"note,omitempty"`
}

// VerdictResult is the verdict stage's output.
type VerdictResult struct {
	Verdict    Verdict     `json:"verdict"`
	Confidence float64     `json:"confidence"` // 0..1
	Summary    string      `json:"summary"`
	Reasoning  string      `json:"reasoning"`
	KeyFactors []KeyFactor `json:"keyFactors"`
}

// DeriveInfluence maps a dimension's score and weight to a verdict influence.
// Used when the verdict analyzer did not supply key factors of its own.
func DeriveInfluence(score DimensionScore, weight float64) FactorInfluence {
	switch score {
	case ScoreFavorable:
		if weight >= 0.7 {
			return InfluenceStronglyPositive
		}
		return InfluencePositive
	case ScoreUnfavorable:
		if weight >= 0.7 {
			return InfluenceStronglyNegative
		}
		return InfluenceNegative
	default:
		return InfluenceNeutral
	}
}
