package cmd

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamd/pkg/classifier"
	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/message"
)

var (
	learnConfigFile string
	learnIsSpam     bool
	learnIsHam      bool
)

var learnCmd = &cobra.Command{
	Use:   "learn [message-file]",
	Short: "Train the Bayesian classifier on a single message",
	Long: `Read one message (stdin, or a file argument) and train the Bayesian
token store on it as spam (--spam) or ham (--ham), the CLI equivalent of
spamd's "is-spam"/"is-nonspam" learn verbs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if learnIsSpam == learnIsHam {
			return fmt.Errorf("exactly one of --spam or --ham is required")
		}

		cfg, err := config.LoadConfig(learnConfigFile)
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
		if err := svc.Bayes.Learn(ctx, messageID, tokens, learnIsSpam); err != nil {
			return fmt.Errorf("learn failed: %v", err)
		}

		label := "ham"
		if learnIsSpam {
			label = "spam"
		}
		fmt.Printf("learned message %s as %s (%d tokens)\n", messageID, label, len(tokens))
		return nil
	},
}

// readMessage reads a message from args[0] if given, else stdin, and
// parses it, returning a stable message-id derived from its Message-Id
// header or, failing that, a hash of its raw bytes.
func readMessage(args []string) (*message.Message, string, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %v", args[0], err)
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read message: %v", err)
	}
	msg, err := message.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse message: %v", err)
	}

	if id := msg.Header("Message-Id"); id != "" {
		return msg, id, nil
	}
	sum := sha1.Sum(raw)
	return msg, hex.EncodeToString(sum[:]), nil
}

func init() {
	learnCmd.Flags().StringVarP(&learnConfigFile, "config", "c", "", "Configuration file path (defaults to built-in detection config)")
	learnCmd.Flags().BoolVar(&learnIsSpam, "spam", false, "Train the message as spam")
	learnCmd.Flags().BoolVar(&learnIsHam, "ham", false, "Train the message as ham")
	rootCmd.AddCommand(learnCmd)
}
