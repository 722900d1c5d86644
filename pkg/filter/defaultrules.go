package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/rules"
	"github.com/zpam/spamd/pkg/rules/conf"
)

// DefaultRuleSet turns a legacy config.DetectionConfig's keyword lists
// and feature weights into a rules.RuleSet, the way the teacher's
// weighted-feature scorer (scoreKeywords/scoreCapsRatio/...) used to
// score these same signals directly. Each keyword becomes one body-regex
// rule, scored by risk tier, so the rule
// engine and scoresets this spec specifies are what actually carry the
// legacy configuration forward rather than a bespoke scorer.
func DefaultRuleSet(cfg *config.DetectionConfig) (*rules.RuleSet, []conf.Warning) {
	var b strings.Builder
	fmt.Fprintf(&b, "required_score %s\n", scoreThreshold(cfg.SpamThreshold))

	if cfg.Features.KeywordDetection {
		writeKeywordRules(&b, "HIGH", cfg.Keywords.HighRisk, cfg.Weights.BodyKeywords*1.5)
		writeKeywordRules(&b, "MED", cfg.Keywords.MediumRisk, cfg.Weights.BodyKeywords)
		writeKeywordRules(&b, "LOW", cfg.Keywords.LowRisk, cfg.Weights.BodyKeywords*0.5)
	}

	if cfg.Weights.ExclamationRatio != 0 {
		fmt.Fprintf(&b, "body EXCESSIVE_EXCLAMATION /(?:!.*){3,}/\n")
		fmt.Fprintf(&b, "score EXCESSIVE_EXCLAMATION %s\n", formatScore(cfg.Weights.ExclamationRatio))
		fmt.Fprintf(&b, "describe EXCESSIVE_EXCLAMATION Body contains three or more exclamation marks\n")
	}

	if cfg.Weights.SubjectKeywords != 0 {
		fmt.Fprintf(&b, "header SUBJECT_ALL_CAPS Subject =~ /^[^a-z]*$/\n")
		fmt.Fprintf(&b, "score SUBJECT_ALL_CAPS %s\n", formatScore(cfg.Weights.SubjectKeywords))
		fmt.Fprintf(&b, "describe SUBJECT_ALL_CAPS Subject line has no lowercase letters\n")
	}

	return conf.Parse(b.String(), false)
}

// keywordNamePattern strips characters that aren't valid in a conf
// rule name, matching SpamAssassin's [A-Za-z0-9_] identifier rule.
var keywordNamePattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func writeKeywordRules(b *strings.Builder, tier string, keywords []string, score float64) {
	if score == 0 {
		return
	}
	for i, kw := range keywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			continue
		}
		name := fmt.Sprintf("KEYWORD_%s_%d_%s", tier, i,
			strings.ToUpper(keywordNamePattern.ReplaceAllString(trimmed, "_")))
		fmt.Fprintf(b, "body %s /%s/i\n", name, regexp.QuoteMeta(trimmed))
		fmt.Fprintf(b, "score %s %s\n", name, formatScore(score))
		fmt.Fprintf(b, "describe %s Body contains the %s-risk term %q\n", name, strings.ToLower(tier), trimmed)
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// scoreThreshold converts the legacy 1-5 spam rating into a plausible
// spec-native point threshold; SpamAssassin deployments commonly use 5.0.
func scoreThreshold(rating int) string {
	if rating <= 0 {
		rating = 4
	}
	return formatScore(float64(rating) * 1.25)
}
