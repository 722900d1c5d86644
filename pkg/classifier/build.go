package classifier

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zpam/spamd/pkg/bayes"
	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/filter"
	"github.com/zpam/spamd/pkg/plugins"
	"github.com/zpam/spamd/pkg/rules"
	"github.com/zpam/spamd/pkg/rules/conf"
	"github.com/zpam/spamd/pkg/rules/evalfn"
)

// Options bundles everything Build needs beyond the legacy config: an
// optional conf-grammar rule file (spec §4.2) that, when set, replaces
// the config-derived default rule set, and a network-probe timeout for
// rbl-eval callbacks.
type Options struct {
	RuleFile       string
	NetworkTimeout time.Duration
}

// Build wires a rule engine, its eval-callback registry, and (when the
// legacy config enables learning) a Bayesian classifier into one
// Service — the construction every front-end (milter, the spamd/spamc
// daemon, the CLI) shares.
func Build(cfg *config.Config, opts Options) (*Service, error) {
	rs, warnings, err := loadRuleSet(cfg, opts.RuleFile)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "rules: line %d: %s\n", w.Line, w.Message)
	}

	timeout := opts.NetworkTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reg := evalfn.NewRegistry(timeout)
	if err := evalfn.NewHeaderChecks(nil).Register(reg); err != nil {
		return nil, err
	}
	if err := evalfn.NewSenderFrequency(nil).Register(reg); err != nil {
		return nil, err
	}
	if err := evalfn.NewPluginProbe(buildPluginManager(cfg), "").Register(reg); err != nil {
		return nil, err
	}

	engine := rules.NewEngine(rs, reg)

	bc, err := buildBayesClassifier(cfg)
	if err != nil {
		return nil, err
	}

	return New(engine, bc), nil
}

func loadRuleSet(cfg *config.Config, ruleFile string) (*rules.RuleSet, []conf.Warning, error) {
	if ruleFile == "" {
		rs, warnings := filter.DefaultRuleSet(&cfg.Detection)
		return rs, warnings, nil
	}
	text, err := os.ReadFile(ruleFile)
	if err != nil {
		return nil, nil, fmt.Errorf("classifier: failed to read rule file %s: %v", ruleFile, err)
	}
	rs, warnings := conf.Parse(string(text), false)
	return rs, warnings, nil
}

// buildPluginManager registers the teacher's five stock plugins and
// loads configuration for whichever ones cfg.Plugins enables. Load errors
// are logged rather than propagated: a misconfigured plugin should not
// prevent the rule engine and Bayesian classifier from starting.
func buildPluginManager(cfg *config.Config) *plugins.DefaultPluginManager {
	mgr := plugins.NewPluginManager()
	if !cfg.Plugins.Enabled {
		return mgr
	}

	mgr.RegisterPlugin(plugins.NewSpamAssassinPlugin())
	mgr.RegisterPlugin(plugins.NewRspamdPlugin())
	mgr.RegisterPlugin(plugins.NewCustomRulesPlugin())
	mgr.RegisterPlugin(plugins.NewVirusTotalPlugin())
	mgr.RegisterPlugin(plugins.NewMLPlugin())

	pluginConfigs := map[string]*plugins.PluginConfig{}
	if cfg.Plugins.SpamAssassin.Enabled {
		pluginConfigs["spamassassin"] = convertPluginConfig(cfg.Plugins.SpamAssassin)
	}
	if cfg.Plugins.Rspamd.Enabled {
		pluginConfigs["rspamd"] = convertPluginConfig(cfg.Plugins.Rspamd)
	}
	if cfg.Plugins.CustomRules.Enabled {
		pluginConfigs["custom_rules"] = convertPluginConfig(cfg.Plugins.CustomRules)
	}
	if cfg.Plugins.VirusTotal.Enabled {
		pluginConfigs["virustotal"] = convertPluginConfig(cfg.Plugins.VirusTotal)
	}
	if cfg.Plugins.MachineLearning.Enabled {
		pluginConfigs["machine_learning"] = convertPluginConfig(cfg.Plugins.MachineLearning)
	}
	if err := mgr.LoadPlugins(pluginConfigs); err != nil {
		fmt.Fprintf(os.Stderr, "plugins: %v\n", err)
	}

	return mgr
}

func convertPluginConfig(cfg config.PluginConfig) *plugins.PluginConfig {
	return &plugins.PluginConfig{
		Enabled:  cfg.Enabled,
		Weight:   cfg.Weight,
		Priority: cfg.Priority,
		Timeout:  time.Duration(cfg.Timeout) * time.Millisecond,
		Settings: cfg.Settings,
	}
}

func buildBayesClassifier(cfg *config.Config) (*bayes.Classifier, error) {
	if !cfg.Learning.Enabled {
		return nil, nil
	}

	combiner := bayes.Combiner(bayes.NaiveCombiner{})

	switch cfg.Learning.Backend {
	case "redis":
		redisCfg := bayes.DefaultRedisConfig()
		if cfg.Learning.Redis.RedisURL != "" {
			redisCfg.RedisURL = cfg.Learning.Redis.RedisURL
		}
		if cfg.Learning.Redis.KeyPrefix != "" {
			redisCfg.KeyPrefix = cfg.Learning.Redis.KeyPrefix
		}
		store, err := bayes.NewRedisStore(context.Background(), redisCfg)
		if err != nil {
			return nil, err
		}
		return bayes.NewClassifier(store, combiner), nil
	case "file", "":
		path := cfg.Learning.File.ModelPath
		if path == "" {
			path = "zpam_model.json"
		}
		store, err := bayes.NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return bayes.NewClassifier(store, combiner), nil
	default:
		return nil, fmt.Errorf("classifier: unknown learning backend %q", cfg.Learning.Backend)
	}
}
