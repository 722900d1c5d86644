package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/filter"
	"github.com/zpam/spamd/pkg/rules/conf"
)

var (
	lintRuleFile   string
	lintConfigFile string
)

// lintCmd checks a rule file (or the config-derived default rule set)
// for parse warnings without starting a daemon or scoring any mail,
// exiting nonzero when warnings are found so it can gate CI the way
// spamassassin's --lint does.
var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Parse a rule file and report warnings without scoring mail",
	Long: `Parse the rule file named by --rules (or, if omitted, the rule set
derived from --config) through the conf-grammar parser and print every
warning to stderr. Each warning increments an error counter; lint exits
with that count, so zero warnings exits 0 and any parse failure exits
nonzero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var warnings []conf.Warning

		if lintRuleFile != "" {
			text, err := os.ReadFile(lintRuleFile)
			if err != nil {
				return fmt.Errorf("failed to read rule file %s: %v", lintRuleFile, err)
			}
			_, warnings = conf.Parse(string(text), false)
		} else {
			cfg, err := config.LoadConfig(lintConfigFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %v", err)
			}
			_, warnings = filter.DefaultRuleSet(&cfg.Detection)
		}

		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "line %d: %s\n", w.Line, w.Message)
		}

		if len(warnings) > 0 {
			fmt.Fprintf(os.Stderr, "lint: %d warning(s)\n", len(warnings))
			os.Exit(len(warnings))
		}
		fmt.Println("lint: ok")
		return nil
	},
}

func init() {
	lintCmd.Flags().StringVarP(&lintRuleFile, "rules", "r", "", "Rule file in conf-grammar syntax to lint (defaults to config-derived rules)")
	lintCmd.Flags().StringVarP(&lintConfigFile, "config", "c", "", "Configuration file path used when --rules is omitted")
	rootCmd.AddCommand(lintCmd)
}
