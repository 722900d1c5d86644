package plugins

import "testing"

func TestRegistryGetByTypeReturnsCustomRuleEngines(t *testing.T) {
	r := NewDefaultRegistry()
	if err := r.Register(NewCustomRulesPlugin()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	engines, err := r.GetByType("CustomRuleEngine")
	if err != nil {
		t.Fatalf("GetByType failed: %v", err)
	}
	if len(engines) != 1 || engines[0].Name() != "custom_rules" {
		t.Errorf("expected custom_rules plugin classified as CustomRuleEngine, got %v", engines)
	}
}

func TestRegistryUnregisterRemovesFromTypeIndex(t *testing.T) {
	r := NewDefaultRegistry()
	plugin := NewCustomRulesPlugin()
	if err := r.Register(plugin); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := r.Unregister(plugin.Name()); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	if _, err := r.Get(plugin.Name()); err == nil {
		t.Errorf("expected unregistered plugin to be gone from Get")
	}
	engines, _ := r.GetByType("CustomRuleEngine")
	if len(engines) != 0 {
		t.Errorf("expected type index to be empty after unregister, got %v", engines)
	}
}

func TestRegistryRegisterDuplicateNameErrors(t *testing.T) {
	r := NewDefaultRegistry()
	if err := r.Register(NewCustomRulesPlugin()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(NewCustomRulesPlugin()); err == nil {
		t.Errorf("expected registering a duplicate plugin name to fail")
	}
}
