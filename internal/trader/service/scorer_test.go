package service

import "testing"

func TestComputeScoresDefaultWeights(t *testing.T) {
	inp := ScoreInput{
		Impact:            80,
		SourceReliability: 90,
		Novelty:           70,
		MarketReaction:    60,
		Liquidity:         50,
		RiskPenalty:       5,
	}

	raw, total := ComputeScores(inp, nil)

	// 0.30*80 + 0.20*90 + 0.20*70 + 0.15*60 + 0.15*50 - 5 = 67.5
	if raw != 67.5 {
		t.Fatalf("raw=%g want 67.5", raw)
	}
	if total != 67.5 {
		t.Fatalf("total=%g want 67.5", total)
	}
}

func TestComputeScoresClampsTotal(t *testing.T) {
	_, total := ComputeScores(ScoreInput{RiskPenalty: 50}, nil)
	if total != 0 {
		t.Fatalf("total=%g want clamp to 0", total)
	}

	raw, total := ComputeScores(ScoreInput{
		Impact:            100,
		SourceReliability: 100,
		Novelty:           100,
		MarketReaction:    100,
		Liquidity:         100,
	}, map[string]float64{"impact": 1.5})
	if raw <= 100 {
		t.Fatalf("raw=%g want above 100 before the clamp", raw)
	}
	if total != 100 {
		t.Fatalf("total=%g want clamp to 100", total)
	}
}

func TestComputeScoresWeightOverride(t *testing.T) {
	inp := ScoreInput{Impact: 100, SourceReliability: 50}

	_, base := ComputeScores(inp, nil)
	_, overridden := ComputeScores(inp, map[string]float64{"impact": 0.50})

	if overridden <= base {
		t.Fatalf("overridden=%g base=%g want a heavier impact weight to raise the total", overridden, base)
	}

	// A partial override keeps the remaining defaults in place.
	// 0.50*100 + 0.20*50 = 60
	if overridden != 60 {
		t.Fatalf("overridden=%g want 60", overridden)
	}
}
