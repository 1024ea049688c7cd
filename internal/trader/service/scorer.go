package service

// ScoreInput holds the component scores of one signal, each on a 0-100
// scale except the penalty, which is subtracted from the weighted sum.
type ScoreInput struct {
	Impact            float64 `json:"impact"`
	SourceReliability float64 `json:"source_reliability"`
	Novelty           float64 `json:"novelty"`
	MarketReaction    float64 `json:"market_reaction"`
	Liquidity         float64 `json:"liquidity"`
	RiskPenalty       float64 `json:"risk_penalty"`
}

// defaultScoreWeights is used for any component weight missing from the
// registry's score_weights parameter.
var defaultScoreWeights = map[string]float64{
	"impact":             0.30,
	"source_reliability": 0.20,
	"novelty":            0.20,
	"market_reaction":    0.15,
	"liquidity":          0.15,
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ComputeScores returns the raw weighted score and the 0-100 clamped total.
func ComputeScores(inp ScoreInput, weights map[string]float64) (rawScore, totalScore float64) {
	w := make(map[string]float64, len(defaultScoreWeights))
	for name, weight := range defaultScoreWeights {
		w[name] = weight
	}
	for name, weight := range weights {
		w[name] = weight
	}

	rawScore = w["impact"]*inp.Impact +
		w["source_reliability"]*inp.SourceReliability +
		w["novelty"]*inp.Novelty +
		w["market_reaction"]*inp.MarketReaction +
		w["liquidity"]*inp.Liquidity -
		inp.RiskPenalty
	totalScore = clamp(rawScore, 0, 100)
	return rawScore, totalScore
}
