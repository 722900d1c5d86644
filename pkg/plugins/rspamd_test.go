package plugins

import "testing"

func TestRspamdInitializeAcceptsIntMaxSize(t *testing.T) {
	r := NewRspamdPlugin()
	// Initialize always returns an error here (no rspamd daemon running
	// in the test environment), but settings parsing runs before the
	// availability check.
	_ = r.Initialize(&PluginConfig{Enabled: true, Settings: map[string]any{"max_size": 4096}})

	if r.maxSize != 4096 {
		t.Errorf("maxSize = %d, want 4096 (yaml int should not be silently dropped)", r.maxSize)
	}
}

func TestConvertRspamdResponseCollectsTriggeredSymbols(t *testing.T) {
	r := NewRspamdPlugin()
	resp := &RspamdResponse{
		Score:         14.5,
		RequiredScore: 5.0,
		Action:        "add header",
		Symbols: map[string]RspamdSymbol{
			"BAYES_SPAM": {Score: 4.5, Name: "BAYES_SPAM"},
			"SKIPPED":    {Score: 0, Name: "SKIPPED"},
		},
	}

	result := r.convertRspamdResponse(resp)
	if result.Score != 14.5 {
		t.Errorf("Score = %v, want 14.5", result.Score)
	}
	if len(result.Rules) != 1 {
		t.Errorf("expected only nonzero-score symbols to be reported as rules, got %v", result.Rules)
	}
}
