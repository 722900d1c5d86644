package plugins

import (
	"context"
	"testing"

	"github.com/zpam/spamd/pkg/email"
)

func TestEvaluateConditionHeaderLookupIgnoresCase(t *testing.T) {
	cr := NewCustomRulesPlugin()
	cr.rulesConfig = &CustomRulesConfig{}

	e := &email.Email{Headers: map[string]string{"X-Mailer": "BulkMailer 3000"}}
	condition := RuleCondition{Type: "header", Operator: "contains", Value: "x-mailer:bulkmailer"}

	matched, err := cr.evaluateCondition(condition, e)
	if err != nil {
		t.Fatalf("evaluateCondition failed: %v", err)
	}
	if !matched {
		t.Errorf("expected header condition to match regardless of header-name casing")
	}
}

func TestEvaluateRuleRequiresAllConditions(t *testing.T) {
	cr := NewCustomRulesPlugin()
	cr.rulesConfig = &CustomRulesConfig{}

	rule := Rule{
		Conditions: []RuleCondition{
			{Type: "subject", Operator: "contains", Value: "free"},
			{Type: "body", Operator: "contains", Value: "winner"},
		},
	}
	e := &email.Email{Subject: "You are a FREE winner today", Body: "no match here"}

	matched, err := cr.evaluateRule(rule, e)
	if err != nil {
		t.Fatalf("evaluateRule failed: %v", err)
	}
	if matched {
		t.Errorf("expected rule not to match when only one of two conditions is satisfied")
	}
}

func TestEvaluateRulesSkipsWhitelistedSender(t *testing.T) {
	cr := NewCustomRulesPlugin()
	cr.enabled = true
	cr.rulesConfig = &CustomRulesConfig{}
	cr.rulesConfig.Settings.Enabled = true
	cr.rulesConfig.Advanced.WhitelistedDomains = []string{"trusted.example"}
	cr.rules = []Rule{{
		ID:      "always",
		Name:    "always",
		Enabled: true,
		Score:   9.0,
		Conditions: []RuleCondition{
			{Type: "subject", Operator: "contains", Value: ""},
		},
	}}

	e := &email.Email{From: "sender@trusted.example", Subject: "anything"}
	result, err := cr.EvaluateRules(context.Background(), e)
	if err != nil {
		t.Fatalf("EvaluateRules failed: %v", err)
	}
	if result.Metadata["whitelisted"] != "true" {
		t.Errorf("expected whitelisted sender to short-circuit rule evaluation")
	}
	if result.Score != 0 {
		t.Errorf("Score = %v, want 0 for a whitelisted sender", result.Score)
	}
}
