package plugins

import "testing"

func TestParseSpamAssassinOutputFormatsRuleScores(t *testing.T) {
	sa := NewSpamAssassinPlugin()
	output := "X-Spam-Score: 12.3\n" +
		"X-Spam-Status: Yes, score=12.3 required=5.0\n" +
		" 2.1 BAYES_99\n" +
		" * 3.5 FREEMAIL_FROM\n"

	result, err := sa.parseSpamAssassinOutput(output)
	if err != nil {
		t.Fatalf("parseSpamAssassinOutput failed: %v", err)
	}
	if result.Score != 12.3 {
		t.Errorf("Score = %v, want 12.3", result.Score)
	}

	found := false
	for _, r := range result.Rules {
		if r == "BAYES_99 (2.1)" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a rule entry with its full score, got %v", result.Rules)
	}
}

func TestInitializeAcceptsIntMaxSize(t *testing.T) {
	sa := NewSpamAssassinPlugin()
	// Initialize always returns an error here (no spamassassin binary in
	// the test environment), but settings parsing runs before that check.
	_ = sa.Initialize(&PluginConfig{Enabled: true, Settings: map[string]any{"max_size": 2048}})

	if sa.maxSize != 2048 {
		t.Errorf("maxSize = %d, want 2048 (yaml int should not be silently dropped)", sa.maxSize)
	}
}
