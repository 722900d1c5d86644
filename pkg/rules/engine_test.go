package rules_test

import (
	"context"
	"testing"

	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/rules"
	"github.com/zpam/spamd/pkg/rules/conf"
	"github.com/zpam/spamd/pkg/rules/evalfn"
)

const sampleRaw = "From: spammer@example.com\r\n" +
	"Subject: FREE MONEY now\r\n" +
	"To: victim@example.com\r\n" +
	"\r\n" +
	"Click here for free money now.\r\n"

func TestEngineCheckScoresHeaderAndBodyHits(t *testing.T) {
	rs, warnings := conf.Parse(
		"header SUBJ_FREE Subject =~ /free/i\n"+
			"score SUBJ_FREE 3.0\n"+
			"body BODY_FREE /free money/i\n"+
			"score BODY_FREE 2.0\n"+
			"required_score 5.0\n", false)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	reg := evalfn.NewRegistry(0)
	engine := rules.NewEngine(rs, reg)

	msg, err := message.Parse([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("message.Parse: %v", err)
	}

	status := rules.NewPerMsgStatus()
	if err := engine.Check(context.Background(), msg, status); err != nil {
		t.Fatalf("Check: %v", err)
	}

	if status.Score != 5.0 {
		t.Fatalf("Score = %v, want 5.0 (SUBJ_FREE + BODY_FREE)", status.Score)
	}
	if !status.HasHit("SUBJ_FREE") || !status.HasHit("BODY_FREE") {
		t.Fatalf("expected both rules to hit, got Hits=%v", status.Hits)
	}
}

func TestEngineCheckMetaRuleCombinesHits(t *testing.T) {
	rs, _ := conf.Parse(
		"header SUBJ_FREE Subject =~ /free/i\n"+
			"score SUBJ_FREE 1.0\n"+
			"body BODY_FREE /free money/i\n"+
			"score BODY_FREE 1.0\n"+
			"meta BOTH_HIT SUBJ_FREE && BODY_FREE\n"+
			"score BOTH_HIT 4.0\n", false)

	engine := rules.NewEngine(rs, evalfn.NewRegistry(0))
	msg, _ := message.Parse([]byte(sampleRaw))

	status := rules.NewPerMsgStatus()
	if err := engine.Check(context.Background(), msg, status); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !status.HasHit("BOTH_HIT") {
		t.Fatalf("expected meta rule BOTH_HIT to fire when both inputs hit, got Hits=%v", status.Hits)
	}
}

func TestEngineCheckMetaRuleSeesSubRuleHits(t *testing.T) {
	rs, warnings := conf.Parse(
		"header __SUBJ_FREE Subject =~ /free/i\n"+
			"body __BODY_FREE /free money/i\n"+
			"meta BOTH_HIT __SUBJ_FREE && __BODY_FREE\n"+
			"score BOTH_HIT 4.0\n", false)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	engine := rules.NewEngine(rs, evalfn.NewRegistry(0))
	msg, _ := message.Parse([]byte(sampleRaw))

	status := rules.NewPerMsgStatus()
	if err := engine.Check(context.Background(), msg, status); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !status.HasHit("BOTH_HIT") {
		t.Fatalf("expected meta rule BOTH_HIT to fire from sub-rule inputs, got Hits=%v", status.Hits)
	}
	if status.HasHit("__SUBJ_FREE") == false || status.HasHit("__BODY_FREE") == false {
		t.Fatalf("expected sub-rules to register as hit, got Hits=%v", status.Hits)
	}
	for _, name := range status.Hits {
		if name == "__SUBJ_FREE" || name == "__BODY_FREE" {
			t.Fatalf("sub-rule %s should not appear in the scored Hits list", name)
		}
	}
}

func TestEngineUpdateRulesHotReloads(t *testing.T) {
	rs1, _ := conf.Parse("header R1 Subject =~ /free/i\nscore R1 1.0\n", false)
	engine := rules.NewEngine(rs1, evalfn.NewRegistry(0))

	rs2, _ := conf.Parse("header R2 Subject =~ /nomatch-xyz/i\nscore R2 1.0\n", false)
	engine.UpdateRules(rs2)

	msg, _ := message.Parse([]byte(sampleRaw))
	status := rules.NewPerMsgStatus()
	if err := engine.Check(context.Background(), msg, status); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status.HasHit("R1") {
		t.Fatalf("expected R1 to no longer be active after UpdateRules, got Hits=%v", status.Hits)
	}
}
