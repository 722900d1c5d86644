package evalfn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/zpam/spamd/pkg/message"
)

// LuaProbe runs a header/body/rawbody/full-eval rule's logic from a Lua
// script instead of compiled Go, for deployments that want custom eval
// callbacks without a recompile. One script is paired with a small pool
// of reusable *lua.LState VMs.
//
// Adapted from the teacher's pkg/plugins/lua.go LuaPlugin VM pool
// (getVM/returnVM/createVM), repointed at the eval-callback contract
// instead of the plugin Initialize/Cleanup lifecycle, and at message
// header/body access instead of pkg/email.Email conversion.
type LuaProbe struct {
	scriptDir string

	mu   sync.Mutex
	pool map[string]chan *lua.LState
	max  int
}

// NewLuaProbe returns a probe that loads "<scriptDir>/<name>.lua" files
// on demand, keeping up to max VMs warm per script.
func NewLuaProbe(scriptDir string, max int) *LuaProbe {
	if max <= 0 {
		max = 4
	}
	return &LuaProbe{
		scriptDir: scriptDir,
		pool:      make(map[string]chan *lua.LState),
		max:       max,
	}
}

// Register wires this probe as the named local eval callback on reg;
// args[0] must name a "<name>.lua" script under scriptDir, the rest are
// passed into the script as a Lua "args" table.
func (p *LuaProbe) Register(reg *Registry, name string) error {
	return reg.RegisterLocal(name, p.call)
}

func (p *LuaProbe) call(ctx context.Context, msg *message.Message, args []string) (bool, error) {
	if len(args) == 0 {
		return false, fmt.Errorf("eval:lua: missing script name")
	}
	script := args[0]

	vm, err := p.acquire(script)
	if err != nil {
		return false, err
	}
	defer p.release(script, vm)

	vm.SetGlobal("subject", lua.LString(msg.Header("Subject")))
	vm.SetGlobal("from", lua.LString(msg.Header("From")))
	vm.SetGlobal("body", lua.LString(string(msg.FullText())))

	argTable := vm.NewTable()
	for i, a := range args[1:] {
		argTable.RawSetInt(i+1, lua.LString(a))
	}
	vm.SetGlobal("args", argTable)

	if err := vm.DoString(`return check()`); err != nil {
		return false, fmt.Errorf("eval:lua: %s: %w", script, err)
	}
	ret := vm.Get(-1)
	vm.Pop(1)
	return lua.LVAsBool(ret), nil
}

func (p *LuaProbe) acquire(script string) (*lua.LState, error) {
	p.mu.Lock()
	ch, ok := p.pool[script]
	if !ok {
		ch = make(chan *lua.LState, p.max)
		p.pool[script] = ch
	}
	p.mu.Unlock()

	select {
	case vm := <-ch:
		return vm, nil
	default:
		return p.newVM(script)
	}
}

func (p *LuaProbe) release(script string, vm *lua.LState) {
	p.mu.Lock()
	ch := p.pool[script]
	p.mu.Unlock()

	select {
	case ch <- vm:
	default:
		vm.Close()
	}
}

func (p *LuaProbe) newVM(script string) (*lua.LState, error) {
	path := filepath.Join(p.scriptDir, script+".lua")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("eval:lua: %w", err)
	}
	vm := lua.NewState()
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("eval:lua: loading %s: %w", path, err)
	}
	return vm, nil
}

// Close releases every pooled VM.
func (p *LuaProbe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.pool {
		close(ch)
		for vm := range ch {
			vm.Close()
		}
	}
}
