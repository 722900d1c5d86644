package bayes

import (
	"math"
	"testing"
)

func TestSmoothedClampsToRange(t *testing.T) {
	if got := smoothed(1.0, 0, naiveSmoothing); got != naiveSmoothing.x {
		t.Fatalf("zero observations should return the background x, got %v", got)
	}
	if got := smoothed(5.0, 1000, naiveSmoothing); got > 0.999 {
		t.Fatalf("smoothed value must clamp to <= 0.999, got %v", got)
	}
}

func TestNaiveCombinerNeutralOnEmpty(t *testing.T) {
	c := NaiveCombiner{}
	if got := c.Combine(nil); got != 0.5 {
		t.Fatalf("empty input should be neutral, got %v", got)
	}
}

func TestNaiveCombinerLeansSpamOnHighProbabilities(t *testing.T) {
	c := NaiveCombiner{}
	probs := []float64{0.99, 0.95, 0.97, 0.98}
	got := c.Combine(probs)
	if got < 0.9 {
		t.Fatalf("uniformly spammy tokens should combine near 1, got %v", got)
	}
}

func TestNaiveCombinerLeansHamOnLowProbabilities(t *testing.T) {
	c := NaiveCombiner{}
	probs := []float64{0.01, 0.02, 0.03}
	got := c.Combine(probs)
	if got > 0.1 {
		t.Fatalf("uniformly hammy tokens should combine near 0, got %v", got)
	}
}

func TestChiSquaredCombinerNeutralOnEmpty(t *testing.T) {
	c := ChiSquaredCombiner{}
	if got := c.Combine(nil); got != 0.5 {
		t.Fatalf("empty input should be neutral, got %v", got)
	}
}

func TestChiSquaredCombinerAgreesWithNaiveDirection(t *testing.T) {
	probs := []float64{0.95, 0.9, 0.92, 0.88, 0.91}
	naive := NaiveCombiner{}.Combine(probs)
	chi := ChiSquaredCombiner{}.Combine(probs)
	if (naive > 0.5) != (chi > 0.5) {
		t.Fatalf("naive (%v) and chi-squared (%v) combiners disagree on verdict direction", naive, chi)
	}
}

func TestChi2qMonotonicDecreasing(t *testing.T) {
	a := chi2q(2, 10)
	b := chi2q(20, 10)
	if a <= b {
		t.Fatalf("chi2q should decrease as x2 grows: chi2q(2,10)=%v chi2q(20,10)=%v", a, b)
	}
	if chi2q(0, 10) != 1 {
		t.Fatalf("chi2q(0,v) should be 1, got %v", chi2q(0, 10))
	}
}

func TestLogProductMatchesDirectLogOfProduct(t *testing.T) {
	probs := []float64{0.6, 0.7, 0.55}
	got := logProduct(probs, float64(len(probs)), true)

	want := 0.0
	for _, raw := range probs {
		p := smoothed(raw, float64(len(probs)), chiSmoothing)
		want += math.Log(p)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("logProduct() = %v, want %v", got, want)
	}
}

func TestTopSignificantKeepsMostExtreme(t *testing.T) {
	probs := []float64{0.5, 0.51, 0.99, 0.01, 0.49}
	got := topSignificant(probs, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for _, p := range got {
		if p != 0.99 && p != 0.01 {
			t.Fatalf("expected the two most extreme probabilities, got %v", got)
		}
	}
}
