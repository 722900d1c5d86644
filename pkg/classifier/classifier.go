// Package classifier ties C3's rule engine to C4's Bayesian classifier
// so every front-end (the wire daemon, the milter server, and the CLI)
// reports against one combined PerMsgStatus instead of each wiring the
// two together its own way.
package classifier

import (
	"context"
	"fmt"

	"github.com/zpam/spamd/pkg/bayes"
	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/profiler"
	"github.com/zpam/spamd/pkg/rules"
)

// Service implements pkg/daemon/protocol.Classifier.
type Service struct {
	Engine *rules.Engine
	Bayes  *bayes.Classifier
}

// New builds a Service. bc may be nil, which disables Bayes scoring
// (BayesOn stays whatever the engine was already configured with).
func New(engine *rules.Engine, bc *bayes.Classifier) *Service {
	return &Service{Engine: engine, Bayes: bc}
}

// Classify runs the rule engine over msg, then folds in a BAYES_NN
// virtual rule hit when a Bayes classifier is attached.
func (s *Service) Classify(ctx context.Context, msg *message.Message) (*rules.PerMsgStatus, error) {
	if s.Bayes != nil {
		s.Engine.BayesOn = true
	}
	status := rules.NewPerMsgStatus()
	ruleTimer := profiler.Start("rules.Check")
	err := s.Engine.Check(ctx, msg, status)
	ruleTimer.Stop()
	if err != nil {
		return nil, err
	}

	if s.Bayes != nil {
		bayesTimer := profiler.Start("bayes.Scan")
		text := msg.Header("Subject") + "\n" + string(msg.RawBody())
		prob := s.Bayes.Scan(ctx, text)
		bayesTimer.Stop()
		name, score := bayesRule(prob)
		status.RecordHit(rules.Rule{
			Name:        name,
			Description: fmt.Sprintf("Bayesian spam probability of %.0f%%", prob*100),
		}, score, "bayes")
	}

	return status, nil
}

// Tokens collects the token set pkg/bayes.Classifier.Learn/Forget/Scan
// expect: body tokens plus a handful of header-derived tokens, per
// spec §4.4's "headers contribute tokens too" note. Only the last two
// Received headers contribute; earlier ones are skipped.
func Tokens(msg *message.Message) []string {
	text := msg.Header("Subject") + "\n" + string(msg.RawBody())
	tokens := bayes.Tokenize(text)
	received := 0
	for _, h := range msg.Headers() {
		if h.Name == "Received" {
			received++
		}
	}
	for _, h := range msg.Headers() {
		if h.Name == "Received" {
			received--
			if received >= 2 {
				continue
			}
		}
		tokens = append(tokens, bayes.HeaderTokens(h.Name, h.Value)...)
	}
	return tokens
}

// TokensFromText tokenizes a bare subject/body pair, for callers that
// only have the legacy (subject, body string) shape rather than a
// parsed message.Message (e.g. mbox/directory training tools).
func TokensFromText(subject, body string) []string {
	return bayes.Tokenize(subject + "\n" + body)
}

// NormalizeScore buckets an engine score against threshold onto the
// familiar 1-5 scale (1 = definitely clean, 5 = definitely spam), the
// same five-way split the teacher's weighted scorer used, now relative
// to the rule engine's configured threshold instead of a fixed
// constant cutoff.
func NormalizeScore(score, threshold float64) int {
	if threshold <= 0 {
		threshold = 5.0
	}
	switch ratio := score / threshold; {
	case ratio >= 1.6:
		return 5
	case ratio >= 1.2:
		return 4
	case ratio >= 1.0:
		return 3
	case ratio >= 0.6:
		return 2
	default:
		return 1
	}
}

// bayesRule buckets a 0-1 spam probability into the familiar BAYES_NN
// virtual-rule names and a proportional score.
func bayesRule(prob float64) (string, float64) {
	switch {
	case prob >= 0.99:
		return "BAYES_99", 3.5
	case prob >= 0.95:
		return "BAYES_95", 2.5
	case prob >= 0.80:
		return "BAYES_80", 1.5
	case prob >= 0.60:
		return "BAYES_60", 0.5
	case prob >= 0.40:
		return "BAYES_40", 0.0
	case prob >= 0.20:
		return "BAYES_20", -0.5
	default:
		return "BAYES_00", -1.5
	}
}
