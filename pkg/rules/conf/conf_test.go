package conf

import (
	"testing"

	"github.com/zpam/spamd/pkg/rules"
)

func ruleByName(rs *rules.RuleSet, name string) (rules.Rule, bool) {
	for _, r := range rs.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return rules.Rule{}, false
}

func TestParseScoreOneFloatBroadcasts(t *testing.T) {
	rs, warnings := Parse("body FOO_RULE /foo/\nscore FOO_RULE 2.5\n", false)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	r, ok := ruleByName(rs, "FOO_RULE")
	if !ok {
		t.Fatalf("expected rule FOO_RULE to exist")
	}
	for i, v := range r.Scores {
		if v != 2.5 {
			t.Fatalf("scoreset[%d] = %v, want 2.5 broadcast", i, v)
		}
	}
}

func TestParseScoreFourFloatsPopulatesEachScoreset(t *testing.T) {
	rs, _ := Parse("body FOO_RULE /foo/\nscore FOO_RULE 1.0 2.0 3.0 4.0\n", false)
	r, ok := ruleByName(rs, "FOO_RULE")
	if !ok {
		t.Fatalf("expected rule FOO_RULE to exist")
	}
	want := rules.ScoreVector{1.0, 2.0, 3.0, 4.0}
	if r.Scores != want {
		t.Fatalf("Scores = %v, want %v", r.Scores, want)
	}
}

func TestParseHeaderRuleEncodesHeaderNameInPattern(t *testing.T) {
	rs, _ := Parse(`header SUBJ_FREE Subject =~ /free money/i`+"\n", false)
	r, ok := ruleByName(rs, "SUBJ_FREE")
	if !ok {
		t.Fatalf("expected rule SUBJ_FREE to exist")
	}
	if r.Kind != rules.KindHeaderRegex {
		t.Fatalf("expected KindHeaderRegex, got %v", r.Kind)
	}
	nul := -1
	for i := 0; i < len(r.Pattern); i++ {
		if r.Pattern[i] == 0 {
			nul = i
			break
		}
	}
	if nul < 0 {
		t.Fatalf("expected Pattern to embed header name before a NUL byte, got %q", r.Pattern)
	}
	if r.Pattern[:nul] != "Subject" {
		t.Fatalf("expected header name 'Subject', got %q", r.Pattern[:nul])
	}
}

func TestParseHeaderRuleNegation(t *testing.T) {
	rs, _ := Parse(`header NO_DATE Date !~ /./`+"\n", false)
	r, ok := ruleByName(rs, "NO_DATE")
	if !ok {
		t.Fatalf("expected rule NO_DATE to exist")
	}
	if !r.Negate {
		t.Fatalf("expected Negate=true for !~ operator")
	}
}

func TestParseHeaderRuleIfUnset(t *testing.T) {
	rs, _ := Parse(`header MISSING_X X-Custom =~ /foo/ [if-unset: bar]`+"\n", false)
	r, ok := ruleByName(rs, "MISSING_X")
	if !ok {
		t.Fatalf("expected rule MISSING_X to exist")
	}
	if r.IfUnset != "bar" {
		t.Fatalf("IfUnset = %q, want %q", r.IfUnset, "bar")
	}
}

func TestParseMetaRule(t *testing.T) {
	rs, _ := Parse("meta COMBO RULE_A && RULE_B\n", false)
	r, ok := ruleByName(rs, "COMBO")
	if !ok {
		t.Fatalf("expected rule COMBO to exist")
	}
	if r.Kind != rules.KindMetaBoolean {
		t.Fatalf("expected KindMetaBoolean, got %v", r.Kind)
	}
	if r.Pattern != "RULE_A && RULE_B" {
		t.Fatalf("Pattern = %q", r.Pattern)
	}
}

func TestParseDetectsMetaCycle(t *testing.T) {
	_, warnings := Parse("meta A B\nmeta B A\n", false)
	found := false
	for _, w := range warnings {
		if w.Message != "" && containsSubstr(w.Message, "cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a meta-cycle warning, got %v", warnings)
	}
}

func containsSubstr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestParseSubRulePrefixFlag(t *testing.T) {
	rs, _ := Parse("body __SUB_PART /foo/\n", false)
	r, ok := ruleByName(rs, "__SUB_PART")
	if !ok {
		t.Fatalf("expected rule __SUB_PART to exist")
	}
	if !r.IsSubRule {
		t.Fatalf("expected IsSubRule=true for __-prefixed rule")
	}
}

func TestParseRequiredScoreSetsThreshold(t *testing.T) {
	rs, _ := Parse("required_score 7.5\n", false)
	if rs.Threshold != 7.5 {
		t.Fatalf("Threshold = %v, want 7.5", rs.Threshold)
	}
}

func TestParseScoresOnlyRejectsPrivilegedCommands(t *testing.T) {
	_, warnings := Parse("required_score 3.0\n", true)
	if len(warnings) == 0 {
		t.Fatalf("expected a warning rejecting required_score in scores-only mode")
	}
}

func TestParseIfBlockSkipsDisabledBranch(t *testing.T) {
	rs, _ := Parse("if false\nbody SKIPPED /x/\nendif\nbody KEPT /y/\n", false)
	if _, ok := ruleByName(rs, "SKIPPED"); ok {
		t.Fatalf("expected rule inside 'if false' block to be skipped")
	}
	if _, ok := ruleByName(rs, "KEPT"); !ok {
		t.Fatalf("expected rule outside the disabled block to be parsed")
	}
}

func TestParseCommentsAreStripped(t *testing.T) {
	rs, _ := Parse("# a comment\nbody FOO /x/ # trailing comment\n", false)
	if _, ok := ruleByName(rs, "FOO"); !ok {
		t.Fatalf("expected rule FOO to survive comment stripping")
	}
}

func TestParseTflagsNiceFlipsScoreSign(t *testing.T) {
	rs, _ := Parse("body GOOD_SIGN /x/\nscore GOOD_SIGN 1.0\ntflags GOOD_SIGN nice\n", false)
	r, ok := ruleByName(rs, "GOOD_SIGN")
	if !ok {
		t.Fatalf("expected rule GOOD_SIGN to exist")
	}
	if r.Scores[0] != -1.0 {
		t.Fatalf("expected nice tflag to negate score, got %v", r.Scores[0])
	}
}
