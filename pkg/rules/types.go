// Package rules implements C3, the rule engine: it compiles a RuleSet
// produced by pkg/rules/conf into per-kind driver slices grouped by
// priority and executes the spec's ten-step scoring order against a
// parsed message.
//
// Compilation is grounded in shape on the Aho-Corasick trie engine in
// the example pack's classifier/rule_engine.go (a mutex-guarded engine
// struct rebuilt on UpdateRules, matches scored and sorted by priority
// then score) — the closest in-pack precedent for "compile rules once,
// run them fast, support hot reload."
package rules

import (
	"fmt"
	"time"
)

// Kind identifies which view of the message a rule inspects and how
// its pattern is interpreted.
type Kind int

const (
	KindHeaderRegex Kind = iota
	KindHeaderExists
	KindHeaderEval
	KindBodyRegex
	KindBodyEval
	KindRawBodyRegex
	KindRawBodyEval
	KindURIRegex
	KindFullRegex
	KindFullEval
	KindMetaBoolean
	KindRBLEval
	KindRBLResultEval
)

// TFlag is one of the tflags a rule may carry.
type TFlag string

const (
	TFlagNet     TFlag = "net"
	TFlagNice    TFlag = "nice"
	TFlagLearn   TFlag = "learn"
	TFlagUserconf TFlag = "userconf"
)

// Header is a single header name/value pair, used by callers that pass
// raw headers into the engine (e.g. the reporter's RemoveMarkup).
type Header struct {
	Name  string
	Value string
}

// ScoreVector is the four-entry score set indexed by
// (bayes-off/on x net-off/on): [0]=bayes off/net off, [1]=bayes off/net
// on, [2]=bayes on/net off, [3]=bayes on/net on.
type ScoreVector [4]float64

// ScoreSetIndex selects one of the four parallel scoresets from the
// bayes-available and net-enabled flags.
func ScoreSetIndex(bayesOn, netOn bool) int {
	idx := 0
	if netOn {
		idx |= 1
	}
	if bayesOn {
		idx |= 2
	}
	return idx
}

// Rule is one compiled rule definition, per spec §3's Rule data model.
type Rule struct {
	Name        string
	Kind        Kind
	Pattern     string // regex source, or eval-callback name, or meta expression
	Negate      bool   // header-regex "!~"
	IfUnset     string // header-regex fallback value
	TFlags      map[TFlag]bool
	Scores      ScoreVector
	Description string
	Priority    int
	IsSubRule   bool // "__"-prefixed: not scored, not listed, meta input only
}

// DefaultScore returns the rule's default (unscored) value: 0.01 for
// T_-prefixed rules, 1.0 otherwise, negated for "nice" rules.
func (r *Rule) DefaultScore() float64 {
	v := 1.0
	if len(r.Name) >= 2 && r.Name[:2] == "T_" {
		v = 0.01
	}
	if r.TFlags[TFlagNice] {
		v = -v
	}
	return v
}

// RuleSet is the compiled output of pkg/rules/conf: the parsed rules
// and the required score. It carries no address lists or templates.
type RuleSet struct {
	Rules     []Rule
	Threshold float64
}

// ByKind groups Rules by Kind, preserving relative order within a kind.
func (rs *RuleSet) ByKind(k Kind) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// PerMsgStatus is the lifetime-of-one-classification scoring state:
// running score, ordered hit list, bounded log, per-rule hit set,
// header cache, and error counter, per spec §3.
type PerMsgStatus struct {
	Score       float64
	Hits        []string // matched rule names, insertion order
	Log         []string // "score, area, description" lines, bounded by rule count
	hit         map[string]bool
	RuleErrors  int
	PatternHits map[string][]string // rule name -> matched substrings, optional
	StartedAt   time.Time
}

// NewPerMsgStatus returns a fresh status ready for one classification.
func NewPerMsgStatus() *PerMsgStatus {
	return &PerMsgStatus{
		hit:         make(map[string]bool),
		PatternHits: make(map[string][]string),
		StartedAt:   time.Now(),
	}
}

// HasHit reports whether rule name has already scored in this
// classification, the "already hit" set spec §3 calls for.
func (s *PerMsgStatus) HasHit(name string) bool {
	return s.hit[name]
}

// RecordHit adds score to the running total, appends name to the hit
// list (unless it is a sub-rule), and appends a one-line log entry.
func (s *PerMsgStatus) RecordHit(r Rule, score float64, area string) {
	s.hit[r.Name] = true
	if r.IsSubRule {
		return
	}
	s.Score += score
	s.Hits = append(s.Hits, r.Name)
	s.Log = append(s.Log, formatLogLine(score, area, r.Description))
}

func formatLogLine(score float64, area, description string) string {
	return fmt.Sprintf("%.1f %s %s", score, area, description)
}
