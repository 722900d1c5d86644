package evalfn

import (
	"bytes"
	"context"
	"fmt"

	"github.com/zpam/spamd/pkg/email"
	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/plugins"
)

// PluginProbe adapts the teacher's plugin manager (rspamd/VirusTotal/
// ML/custom-rules engines, each an external or at least
// non-negligible-latency call) into the registry's network-callback
// shape, so a rule's "check_plugin_reputation()" waits on the same
// launch-at-step-2/harvest-at-step-8 schedule as an rbl-eval lookup
// instead of blocking the synchronous local-callback pass.
type PluginProbe struct {
	manager plugins.PluginManager
	kind    string // plugin type passed to ExecuteByType, "" means ExecuteAll
}

// NewPluginProbe wraps mgr (nil builds a manager with no plugins
// registered, so the probe always reports Listed: false). kind
// restricts execution to one plugin type (e.g. "reputation"); "" runs
// every enabled plugin.
func NewPluginProbe(mgr plugins.PluginManager, kind string) *PluginProbe {
	if mgr == nil {
		mgr = plugins.NewPluginManager()
	}
	return &PluginProbe{manager: mgr, kind: kind}
}

// Register installs check_plugin_reputation under reg's network group.
func (p *PluginProbe) Register(reg *Registry) error {
	return reg.RegisterNetwork("check_plugin_reputation", p.probe)
}

func (p *PluginProbe) probe(ctx context.Context, msg *message.Message, args []string) NetworkResult {
	em, err := email.NewParser().Parse(bytes.NewReader(msg.FullText()))
	if err != nil {
		return NetworkResult{Err: fmt.Errorf("plugineval: parsing message for plugins: %w", err)}
	}

	var results []*plugins.PluginResult
	if p.kind == "" {
		results, err = p.manager.ExecuteAll(ctx, em)
	} else {
		results, err = p.manager.ExecuteByType(ctx, em, p.kind)
	}
	if err != nil {
		return NetworkResult{Err: err}
	}
	if len(results) == 0 {
		return NetworkResult{Listed: false, Text: "no plugins registered"}
	}

	score, err := p.manager.CombineScores(results)
	if err != nil {
		return NetworkResult{Err: err}
	}

	return NetworkResult{
		Listed: score > 0,
		Text:   fmt.Sprintf("plugin score %.2f across %d plugin(s)", score, len(results)),
	}
}
