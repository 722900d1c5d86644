package plugins

import "testing"

func TestWeightedSumAppliesPerPluginWeight(t *testing.T) {
	pm := NewPluginManager()
	results := []*PluginResult{
		{Name: "a", Score: 10},
		{Name: "b", Score: 20},
		{Name: "c", Score: 5, Error: errPluginFailed},
	}

	score, err := pm.weightedSum(results, map[string]float64{"a": 2.0, "b": 1.0})
	if err != nil {
		t.Fatalf("weightedSum failed: %v", err)
	}
	// a: 10*2=20, b: 20*1=20, c skipped (errored) -> 40
	if score != 40 {
		t.Errorf("score = %v, want 40", score)
	}
}

func TestConsensusScoreMajoritySpamScalesAboveThreshold(t *testing.T) {
	pm := NewPluginManager()
	results := []*PluginResult{
		{Name: "a", Score: 50},
		{Name: "b", Score: 40},
		{Name: "c", Score: 1},
	}

	score, err := pm.consensusScore(results, 35.0)
	if err != nil {
		t.Fatalf("consensusScore failed: %v", err)
	}
	if score <= 35.0 {
		t.Errorf("score = %v, want > threshold when most plugins vote spam", score)
	}
}

func TestCombineScoresUnknownMethodErrors(t *testing.T) {
	pm := NewPluginManager()
	pm.SetScoreAggregation(&ScoreAggregation{Method: "bogus"})

	if _, err := pm.CombineScores(nil); err == nil {
		t.Errorf("expected an error for an unknown aggregation method")
	}
}

var errPluginFailed = &pluginTestError{"plugin failed"}

type pluginTestError struct{ msg string }

func (e *pluginTestError) Error() string { return e.msg }
