package rules

import "testing"

func TestDefaultScoreTPrefixIsPointZeroOne(t *testing.T) {
	r := Rule{Name: "T_SOFT_RULE", TFlags: map[TFlag]bool{}}
	if got := r.DefaultScore(); got != 0.01 {
		t.Fatalf("DefaultScore() = %v, want 0.01", got)
	}
}

func TestDefaultScoreOrdinaryRuleIsOne(t *testing.T) {
	r := Rule{Name: "SOME_RULE", TFlags: map[TFlag]bool{}}
	if got := r.DefaultScore(); got != 1.0 {
		t.Fatalf("DefaultScore() = %v, want 1.0", got)
	}
}

func TestDefaultScoreNiceNegates(t *testing.T) {
	r := Rule{Name: "GOOD_RULE", TFlags: map[TFlag]bool{TFlagNice: true}}
	if got := r.DefaultScore(); got != -1.0 {
		t.Fatalf("DefaultScore() = %v, want -1.0", got)
	}
}

func TestScoreSetIndexSelectsCorrectQuadrant(t *testing.T) {
	cases := []struct {
		bayes, net bool
		want       int
	}{
		{false, false, 0},
		{false, true, 1},
		{true, false, 2},
		{true, true, 3},
	}
	for _, c := range cases {
		if got := ScoreSetIndex(c.bayes, c.net); got != c.want {
			t.Errorf("ScoreSetIndex(%v,%v) = %d, want %d", c.bayes, c.net, got, c.want)
		}
	}
}

func TestPerMsgStatusRecordHitAccumulatesScoreAndLog(t *testing.T) {
	s := NewPerMsgStatus()
	r := Rule{Name: "FOO", Description: "matches foo"}
	s.RecordHit(r, 2.5, "body")
	if s.Score != 2.5 {
		t.Fatalf("Score = %v, want 2.5", s.Score)
	}
	if !s.HasHit("FOO") {
		t.Fatalf("expected HasHit(FOO) to be true")
	}
	if len(s.Hits) != 1 || s.Hits[0] != "FOO" {
		t.Fatalf("Hits = %v", s.Hits)
	}
	if len(s.Log) != 1 {
		t.Fatalf("expected one log line, got %v", s.Log)
	}
}

func TestPerMsgStatusSubRuleHitDoesNotScore(t *testing.T) {
	s := NewPerMsgStatus()
	r := Rule{Name: "__SUB", IsSubRule: true}
	s.RecordHit(r, 5.0, "body")
	if s.Score != 0 {
		t.Fatalf("expected sub-rule hit not to contribute score, got %v", s.Score)
	}
	if !s.HasHit("__SUB") {
		t.Fatalf("expected sub-rule to still register as hit for meta evaluation")
	}
	if len(s.Hits) != 0 {
		t.Fatalf("expected sub-rule not to appear in the scored Hits list, got %v", s.Hits)
	}
}

func TestRuleSetByKindFilters(t *testing.T) {
	rs := &RuleSet{Rules: []Rule{
		{Name: "A", Kind: KindBodyRegex},
		{Name: "B", Kind: KindHeaderRegex},
		{Name: "C", Kind: KindBodyRegex},
	}}
	got := rs.ByKind(KindBodyRegex)
	if len(got) != 2 {
		t.Fatalf("ByKind(KindBodyRegex) returned %d rules, want 2", len(got))
	}
}
