package meta

import "testing"

func TestEvalBooleanCombinators(t *testing.T) {
	e := NewEvaluator()
	vars := map[string]float64{"A": 1, "B": 0}

	cases := []struct {
		expr string
		want float64
	}{
		{"A && B", 0},
		{"A || B", 1},
		{"!B", 1},
		{"A && !B", 1},
		{"(A || B) && !B", 1},
	}
	for _, c := range cases {
		got, err := e.Eval(c.expr, vars)
		if err != nil {
			t.Fatalf("Eval(%q): %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("Eval(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalComparisonsAndArithmetic(t *testing.T) {
	e := NewEvaluator()
	vars := map[string]float64{"HITS": 3}

	got, err := e.Eval("HITS >= 2 && HITS * 2 == 6", vars)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 1 {
		t.Fatalf("Eval() = %v, want 1", got)
	}
}

func TestEvalMissingIdentifierDefaultsZero(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Eval("UNDEFINED_RULE == 0", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 1 {
		t.Fatalf("missing identifier should default to 0, got %v", got)
	}
}

func TestEvalDivisionByZeroErrors(t *testing.T) {
	e := NewEvaluator()
	if _, err := e.Eval("1 / 0", nil); err == nil {
		t.Fatalf("expected division-by-zero error")
	}
}

func TestEvalTrailingTokenErrors(t *testing.T) {
	e := NewEvaluator()
	if _, err := e.Eval("1 + 1 2", nil); err == nil {
		t.Fatalf("expected trailing-token error")
	}
}

func TestEvalParenthesizedPrecedence(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Eval("(1 + 2) * 3", nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 9 {
		t.Fatalf("Eval() = %v, want 9", got)
	}
}
