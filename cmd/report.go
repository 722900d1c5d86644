package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamd/pkg/classifier"
	"github.com/zpam/spamd/pkg/config"
)

var (
	reportConfigFile string
	revokeConfigFile string
)

// reportCmd is the CLI equivalent of spamassassin's "report": the
// message is submitted for spam training; nothing is sent to an
// external reporting service.
var reportCmd = &cobra.Command{
	Use:   "report [message-file]",
	Short: "Report a message as spam and train the classifier on it",
	Long: `Read one message (stdin, or a file argument), train the Bayesian
token store on it as spam, the same corpus update "learn --spam"
performs. Kept as a distinct verb so report/revoke read as a pair, the
way spamassassin's sa-learn --report/--forget do.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(reportConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}
		cfg.Learning.Enabled = true

		msg, messageID, err := readMessage(args)
		if err != nil {
			return err
		}

		svc, err := classifier.Build(cfg, classifier.Options{})
		if err != nil {
			return fmt.Errorf("failed to build classifier: %v", err)
		}
		if svc.Bayes == nil {
			return fmt.Errorf("no Bayesian token store configured; set learning.backend in config")
		}
		defer svc.Bayes.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tokens := classifier.Tokens(msg)
		if err := svc.Bayes.Learn(ctx, messageID, tokens, true); err != nil {
			return fmt.Errorf("report failed: %v", err)
		}

		fmt.Printf("reported message %s as spam (%d tokens)\n", messageID, len(tokens))
		return nil
	},
}

// revokeCmd undoes a prior report/learn, removing the message's tokens
// from whichever label they were last filed under.
var revokeCmd = &cobra.Command{
	Use:   "revoke [message-file]",
	Short: "Revoke a prior spam report and forget the message's training",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(revokeConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}
		cfg.Learning.Enabled = true

		msg, messageID, err := readMessage(args)
		if err != nil {
			return err
		}

		svc, err := classifier.Build(cfg, classifier.Options{})
		if err != nil {
			return fmt.Errorf("failed to build classifier: %v", err)
		}
		if svc.Bayes == nil {
			return fmt.Errorf("no Bayesian token store configured; set learning.backend in config")
		}
		defer svc.Bayes.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tokens := classifier.Tokens(msg)
		if err := svc.Bayes.Forget(ctx, messageID, tokens); err != nil {
			return fmt.Errorf("revoke failed: %v", err)
		}

		fmt.Printf("revoked training for message %s\n", messageID)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportConfigFile, "config", "c", "", "Configuration file path (defaults to built-in detection config)")
	revokeCmd.Flags().StringVarP(&revokeConfigFile, "config", "c", "", "Configuration file path (defaults to built-in detection config)")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(revokeCmd)
}
