package rules

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/rules/evalfn"
	"github.com/zpam/spamd/pkg/rules/meta"
)

// resultHeaderPrefixes are stripped from the message before scoring,
// spec §4.3 step 1.
var resultHeaderPrefixes = []string{"X-Spam-"}

// compiledRule pairs a Rule with its precompiled regex (when
// applicable), mirroring the "compile once, run fast" shape of the
// example pack's trie rule engine.
type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Engine holds a compiled RuleSet, grouped per kind and priority, and
// is safe for concurrent Check calls; UpdateRules recompiles under a
// write lock so a config reload never races an in-flight scan.
type Engine struct {
	mu   sync.RWMutex
	byKind map[Kind][]compiledRule
	threshold float64

	evalReg *evalfn.Registry
	metaEval *meta.Evaluator

	// BayesOn / NetOn select the active scoreset; StopAtThreshold
	// enables spec §4.3's early-exit behavior.
	BayesOn         bool
	NetOn           bool
	StopAtThreshold bool
}

// NewEngine compiles rs into an Engine. evalReg supplies the
// local/network eval-callback implementations (pkg/rules/evalfn);
// meta rules are evaluated with meta.NewEvaluator().
func NewEngine(rs *RuleSet, evalReg *evalfn.Registry) *Engine {
	e := &Engine{
		evalReg:  evalReg,
		metaEval: meta.NewEvaluator(),
	}
	e.UpdateRules(rs)
	return e
}

// UpdateRules recompiles the engine's driver tables from rs, allowing
// hot reload without disrupting in-flight Check calls (held off by the
// write lock), per the trie-engine precedent's RWMutex-guarded rebuild.
func (e *Engine) UpdateRules(rs *RuleSet) {
	byKind := make(map[Kind][]compiledRule)
	for _, r := range rs.Rules {
		cr := compiledRule{Rule: r}
		if needsRegex(r.Kind) {
			pattern := r.Pattern
			if r.Kind == KindHeaderRegex {
				pattern = headerRegexPattern(pattern)
			}
			if re, err := regexp.Compile(pattern); err == nil {
				cr.re = re
			}
		}
		byKind[r.Kind] = append(byKind[r.Kind], cr)
	}
	for k := range byKind {
		sortByPriorityThenScore(byKind[k])
	}

	e.mu.Lock()
	e.byKind = byKind
	e.threshold = rs.Threshold
	e.mu.Unlock()
}

func needsRegex(k Kind) bool {
	switch k {
	case KindHeaderRegex, KindBodyRegex, KindRawBodyRegex, KindURIRegex, KindFullRegex:
		return true
	}
	return false
}

// sortByPriorityThenScore groups rules by ascending priority and,
// within a group, runs negative-score rules first then positive-score
// rules by descending score, per spec §4.3 step 3.
func sortByPriorityThenScore(rules []compiledRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		si, sj := rules[i].Scores[3], rules[j].Scores[3]
		negI, negJ := si < 0, sj < 0
		if negI != negJ {
			return negI // negatives first
		}
		return si > sj // descending within the same sign
	})
}

// Check runs the ten-step scoring order against msg, accumulating into
// status. It never aborts on an individual rule failure: a rule whose
// regex failed to compile, or an eval callback that returns an error or
// panics, is counted in status.RuleErrors and skipped.
func (e *Engine) Check(ctx context.Context, msg *message.Message, status *PerMsgStatus) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	scoreIdx := ScoreSetIndex(e.BayesOn, e.NetOn)

	// Step 1: strip pre-existing result headers.
	msg.StripResultHeaders(resultHeaderPrefixes)

	// Step 2: kick off asynchronous reputation queries (launch-only).
	rblResults := e.launchRBLQueries(ctx, msg)

	// Non-header regex rules whose pattern failed to compile are counted
	// here; the line and full-text drivers skip them.
	for _, k := range []Kind{KindBodyRegex, KindRawBodyRegex, KindURIRegex, KindFullRegex} {
		for _, r := range e.byKind[k] {
			if r.re == nil {
				status.RuleErrors++
			}
		}
	}

	// Step 3: header regex tests, priority-grouped.
	e.runHeaderRegex(msg, status, scoreIdx)

	// Step 4: body regex tests.
	e.runLineDriver(KindBodyRegex, msg.BodyLines(), status, scoreIdx)

	// Step 5: raw-body regex + URI tests.
	e.runLineDriver(KindRawBodyRegex, msg.RawBodyLines(), status, scoreIdx)
	e.runLineDriver(KindURIRegex, msg.URIs(), status, scoreIdx)

	// Step 6: full-text regex tests.
	e.runFullRegex(msg, status, scoreIdx)

	// Step 7: eval tests (head/body/rawbody/full).
	e.runEval(ctx, KindHeaderEval, msg, status, scoreIdx)
	e.runEval(ctx, KindBodyEval, msg, status, scoreIdx)
	e.runEval(ctx, KindRawBodyEval, msg, status, scoreIdx)
	e.runEval(ctx, KindFullEval, msg, status, scoreIdx)

	// Step 8: harvest reputation queries, rbl-result-eval tests.
	e.runRBLResultEval(ctx, msg, status, scoreIdx, rblResults)

	// Step 9: meta tests.
	e.runMeta(status, scoreIdx)

	// Step 10: auto-whitelist regression adjustment is an external
	// collaborator invoked by the caller after Check returns; the
	// engine's contract ends at producing the final score and hits.

	return nil
}

func (e *Engine) runHeaderRegex(msg *message.Message, status *PerMsgStatus, scoreIdx int) {
	for _, r := range e.byKind[KindHeaderRegex] {
		if r.re == nil {
			status.RuleErrors++
			continue
		}
		value := msg.HeaderDefault(headerRequestKey(r.Pattern), r.IfUnset)
		matched := r.re.MatchString(value)
		if r.Negate {
			matched = !matched
		}
		if matched && !status.HasHit(r.Name) {
			status.RecordHit(r.Rule, r.Scores[scoreIdx], "header")
		}
	}
	for _, r := range e.byKind[KindHeaderExists] {
		if msg.Header(r.Pattern) != "" && !status.HasHit(r.Name) {
			status.RecordHit(r.Rule, r.Scores[scoreIdx], "header")
		}
	}
}

// headerRequestKey extracts the header name a header-regex rule
// targets; pkg/rules/conf encodes it as Pattern = "<name>\x00<regex>".
func headerRequestKey(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == 0 {
			return pattern[:i]
		}
	}
	return "Subject"
}

// headerRegexPattern strips the "<header-name>\x00" prefix conf.go
// encodes onto a header-regex rule's Pattern, leaving just the regex
// source to compile.
func headerRegexPattern(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == 0 {
			return pattern[i+1:]
		}
	}
	return pattern
}

func (e *Engine) runLineDriver(kind Kind, lines []string, status *PerMsgStatus, scoreIdx int) {
	rules := e.byKind[kind]
	if len(rules) == 0 {
		return
	}
	for _, line := range lines {
		for _, r := range rules {
			if status.HasHit(r.Name) || r.re == nil {
				continue
			}
			if r.re.MatchString(line) {
				status.RecordHit(r.Rule, r.Scores[scoreIdx], kindArea(kind))
			}
		}
	}
}

func (e *Engine) runFullRegex(msg *message.Message, status *PerMsgStatus, scoreIdx int) {
	full := string(msg.FullText())
	for _, r := range e.byKind[KindFullRegex] {
		if status.HasHit(r.Name) || r.re == nil {
			continue
		}
		if r.re.MatchString(full) {
			status.RecordHit(r.Rule, r.Scores[scoreIdx], "full")
		}
	}
}

func kindArea(k Kind) string {
	switch k {
	case KindBodyRegex:
		return "body"
	case KindRawBodyRegex:
		return "rawbody"
	case KindURIRegex:
		return "uri"
	default:
		return "full"
	}
}

func (e *Engine) runEval(ctx context.Context, kind Kind, msg *message.Message, status *PerMsgStatus, scoreIdx int) {
	if e.evalReg == nil {
		return
	}
	for _, r := range e.byKind[kind] {
		if status.HasHit(r.Name) {
			continue
		}
		panicked := false
		hit, err := func() (bool, error) {
			defer func() {
				if recover() != nil {
					panicked = true
				}
			}()
			return e.evalReg.CallLocal(ctx, r.Pattern, msg)
		}()
		if err != nil || panicked {
			status.RuleErrors++
			continue
		}
		if hit {
			status.RecordHit(r.Rule, r.Scores[scoreIdx], evalArea(kind))
		}
	}
}

func evalArea(k Kind) string {
	switch k {
	case KindHeaderEval:
		return "header"
	case KindBodyEval:
		return "body"
	case KindRawBodyEval:
		return "rawbody"
	default:
		return "full"
	}
}

// launchRBLQueries starts every rbl-eval rule's network probe
// concurrently and returns a map of rule name to a channel the result
// will arrive on, implementing spec step 2's launch-only phase.
func (e *Engine) launchRBLQueries(ctx context.Context, msg *message.Message) map[string]<-chan evalfn.NetworkResult {
	rules := e.byKind[KindRBLEval]
	if len(rules) == 0 || e.evalReg == nil {
		return nil
	}
	out := make(map[string]<-chan evalfn.NetworkResult, len(rules))
	for _, r := range rules {
		out[r.Name] = e.evalReg.LaunchNetwork(ctx, r.Pattern, msg)
	}
	return out
}

func (e *Engine) runRBLResultEval(ctx context.Context, msg *message.Message, status *PerMsgStatus, scoreIdx int, pending map[string]<-chan evalfn.NetworkResult) {
	if len(pending) == 0 {
		return
	}
	results := make(map[string]evalfn.NetworkResult, len(pending))
	for name, ch := range pending {
		select {
		case res := <-ch:
			results[name] = res
		case <-ctx.Done():
			status.RuleErrors++
		}
	}

	for _, r := range e.byKind[KindRBLResultEval] {
		if status.HasHit(r.Name) {
			continue
		}
		if e.evalReg.EvaluateRBLResult(r.Pattern, results) {
			status.RecordHit(r.Rule, r.Scores[scoreIdx], "rbl")
		}
	}
}

func (e *Engine) runMeta(status *PerMsgStatus, scoreIdx int) {
	// status.Hits omits sub-rules (RecordHit returns early for them
	// before appending), but meta rules reference sub-rules by name, so
	// count from the full hit set instead.
	hitCounts := make(map[string]float64, len(status.hit))
	for name, hit := range status.hit {
		if hit {
			hitCounts[name]++
		}
	}
	for _, r := range e.byKind[KindMetaBoolean] {
		if status.HasHit(r.Name) {
			continue
		}
		val, err := e.metaEval.Eval(r.Pattern, hitCounts)
		if err != nil {
			status.RuleErrors++
			continue
		}
		if val != 0 {
			status.RecordHit(r.Rule, r.Scores[scoreIdx], "meta")
		}
	}
}
