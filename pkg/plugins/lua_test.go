package plugins

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestLuaRegexMatchEvaluatesPattern(t *testing.T) {
	lp := &LuaPlugin{name: "test"}

	vm := lua.NewState()
	defer vm.Close()
	vm.SetGlobal("regex_match", vm.NewFunction(lp.luaRegexMatch))

	script := `
		matched = regex_match("free money now", "^free")
		unmatched = regex_match("no match here", "^free")
	`
	if err := vm.DoString(script); err != nil {
		t.Fatalf("lua script failed: %v", err)
	}

	if got := vm.GetGlobal("matched"); got != lua.LTrue {
		t.Errorf("matched = %v, want true", got)
	}
	if got := vm.GetGlobal("unmatched"); got != lua.LFalse {
		t.Errorf("unmatched = %v, want false", got)
	}
}
