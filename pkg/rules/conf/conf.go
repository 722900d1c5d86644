// Package conf implements C2's configuration-store grammar: a
// newline-delimited rule-definition language distinct from the YAML
// ambient settings in pkg/config (that YAML cannot express this
// grammar, per spec §4.2). It lexes, validates, and compiles text into
// a *rules.RuleSet.
//
// Shaped on the teacher's own config-loading conventions in
// pkg/config/config.go (struct-driven defaults plus a Validate pass
// that accumulates errors) applied here to a line-oriented instead of
// YAML source.
package conf

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/zpam/spamd/pkg/rules"
)

// Warning is one non-fatal parse issue: an unrecognized setting, a
// malformed score line, or a meta-acyclicity violation.
type Warning struct {
	Line    int
	Message string
}

// Command describes one registered setting: its name, optional
// aliases, privilege flags, and argument handler, per spec §4.2's
// register_commands contract.
type Command struct {
	Name     string
	Aliases  []string
	IsPriv   bool
	IsAdmin  bool
	Handler  func(p *Parser, args []string) error
}

// Parser holds the registered command table and in-progress parse
// state (conditional-block stack, accumulated rules, scores, and
// warnings).
type Parser struct {
	commands   map[string]*Command
	ScoresOnly bool

	rules     map[string]*rules.Rule
	order     []string // rule name insertion order, for deterministic ByKind grouping
	threshold float64

	ifStack []bool
	locale  string

	Warnings []Warning
	errors   int
}

// NewParser returns a Parser with the built-in command table
// registered (score, header, body, rawbody, uri, full, meta, describe,
// priority, tflags).
func NewParser() *Parser {
	p := &Parser{
		commands:  make(map[string]*Command),
		rules:     make(map[string]*rules.Rule),
		threshold: 5.0,
		locale:    "en",
	}
	p.registerBuiltins()
	return p
}

// RegisterCommand adds or replaces a command descriptor, per spec
// §4.2's register_commands(list).
func (p *Parser) RegisterCommand(c *Command) {
	p.commands[c.Name] = c
	for _, alias := range c.Aliases {
		p.commands[alias] = c
	}
}

func (p *Parser) registerBuiltins() {
	p.RegisterCommand(&Command{Name: "score", Handler: cmdScore})
	p.RegisterCommand(&Command{Name: "header", Handler: cmdHeader})
	p.RegisterCommand(&Command{Name: "body", Handler: cmdBody})
	p.RegisterCommand(&Command{Name: "rawbody", Handler: cmdRawBody})
	p.RegisterCommand(&Command{Name: "uri", Handler: cmdURI})
	p.RegisterCommand(&Command{Name: "full", Handler: cmdFull})
	p.RegisterCommand(&Command{Name: "meta", Handler: cmdMeta})
	p.RegisterCommand(&Command{Name: "describe", Handler: cmdDescribe})
	p.RegisterCommand(&Command{Name: "priority", Handler: cmdPriority})
	p.RegisterCommand(&Command{Name: "tflags", Handler: cmdTflags})
	p.RegisterCommand(&Command{Name: "required_score", IsAdmin: true, Handler: cmdRequiredScore})
}

func (p *Parser) rule(name string) *rules.Rule {
	r, ok := p.rules[name]
	if !ok {
		r = &rules.Rule{Name: name, TFlags: make(map[rules.TFlag]bool)}
		r.Scores = rules.ScoreVector{r.DefaultScore(), r.DefaultScore(), r.DefaultScore(), r.DefaultScore()}
		p.rules[name] = r
		p.order = append(p.order, name)
	}
	return r
}

// Parse lexes text into logical lines, strips comments, handles the
// meta-directives (lang/if/ifplugin/endif/include/require_version),
// dispatches recognized settings, and returns the compiled RuleSet plus
// any warnings. scoresOnly rejects privileged/admin commands, per spec
// §4.2.
func Parse(text string, scoresOnly bool) (*rules.RuleSet, []Warning) {
	p := NewParser()
	p.ScoresOnly = scoresOnly
	p.parseLines(text)
	p.finishParsing()
	return p.ruleSet(), p.Warnings
}

func (p *Parser) parseLines(text string) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p.parseLine(lineNo, line)
	}
}

// stripComment removes an unescaped "#"-comment, honoring "\#" as a
// literal hash.
func stripComment(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] != '\\') {
			break
		}
		if line[i] == '\\' && i+1 < len(line) && line[i+1] == '#' {
			continue
		}
		b.WriteByte(line[i])
	}
	return b.String()
}

func (p *Parser) parseLine(lineNo int, line string) {
	fields := strings.SplitN(line, " ", 2)
	keyword := fields[0]
	rest := ""
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}

	switch keyword {
	case "lang":
		p.handleLang(rest)
		return
	case "if":
		p.ifStack = append(p.ifStack, evalCondition(rest))
		return
	case "ifplugin":
		p.ifStack = append(p.ifStack, true) // plugin availability unknown; default to enabled
		return
	case "endif":
		if len(p.ifStack) > 0 {
			p.ifStack = p.ifStack[:len(p.ifStack)-1]
		}
		return
	case "include":
		// Inline expansion is the caller's responsibility (file I/O is
		// outside this package); record as a warning if reached
		// unresolved.
		p.warn(lineNo, "include directive left unexpanded: "+rest)
		return
	case "require_version":
		return // version gating handled by the caller before Parse
	}

	if !p.active() {
		return
	}

	cmd, ok := p.commands[keyword]
	if !ok {
		p.warn(lineNo, "unrecognized setting: "+keyword)
		return
	}
	if p.ScoresOnly && (cmd.IsPriv || cmd.IsAdmin) {
		p.warn(lineNo, "privileged setting rejected in scores-only mode: "+keyword)
		return
	}

	args := strings.Fields(rest)
	if err := cmd.Handler(p, append([]string{rest}, args...)); err != nil {
		p.errors++
		p.warn(lineNo, err.Error())
	}
}

func (p *Parser) active() bool {
	for _, v := range p.ifStack {
		if !v {
			return false
		}
	}
	return true
}

func (p *Parser) handleLang(rest string) {
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) < 2 {
		return
	}
	if !strings.HasPrefix(p.locale, fields[0]) {
		return
	}
	p.parseLine(0, fields[1])
}

// evalCondition evaluates the tiny "if EXPR" calculator with
// plugin(name) and version predicates; unsupported here, this only
// recognizes a literal "true"/"false" or a bare version comparison
// against 0, defaulting unknown expressions to true so conditional
// blocks don't silently vanish.
func evalCondition(expr string) bool {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return true
	}
}

func (p *Parser) warn(line int, msg string) {
	p.Warnings = append(p.Warnings, Warning{Line: line, Message: msg})
}

// finishParsing validates meta-expression acyclicity and marks
// "__"-prefixed rules as sub-rules, per spec §4.2. It does not group
// rules by priority (the engine does that when it compiles a RuleSet)
// and does not check that a scored rule was defined by a test command.
func (p *Parser) finishParsing() {
	known := make(map[string]bool, len(p.order))
	for _, name := range p.order {
		known[name] = true
	}

	for _, name := range p.order {
		r := p.rules[name]
		if r.Kind == rules.KindMetaBoolean {
			if cycle := detectMetaCycle(name, p.rules); cycle {
				p.errors++
				p.warn(0, "meta rule cycle detected: "+name)
			}
		}
		if len(name) >= 2 && name[:2] == "__" {
			r.IsSubRule = true
		}
	}
}

// detectMetaCycle walks meta-rule references (rule names appearing as
// identifiers in a meta expression) looking for a path back to start.
func detectMetaCycle(start string, all map[string]*rules.Rule) bool {
	visited := make(map[string]bool)
	var walk func(name string) bool
	walk = func(name string) bool {
		r, ok := all[name]
		if !ok || r.Kind != rules.KindMetaBoolean {
			return false
		}
		if visited[name] {
			return name == start
		}
		visited[name] = true
		for _, ref := range identifiersIn(r.Pattern) {
			if ref == start {
				return true
			}
			if walk(ref) {
				return true
			}
		}
		return false
	}
	r, ok := all[start]
	if !ok {
		return false
	}
	for _, ref := range identifiersIn(r.Pattern) {
		if ref == start || walk(ref) {
			return true
		}
	}
	return false
}

func identifiersIn(expr string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range expr {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func (p *Parser) ruleSet() *rules.RuleSet {
	rs := &rules.RuleSet{Threshold: p.threshold}
	for _, name := range p.order {
		rs.Rules = append(rs.Rules, *p.rules[name])
	}
	return rs
}

// --- command handlers ---

// Score assignment: four floats populate all four scoresets; one float
// is broadcast; no line keeps the default.
func cmdScore(p *Parser, args []string) error {
	fields := strings.Fields(args[0])
	if len(fields) < 1 {
		return fmt.Errorf("score: missing rule name")
	}
	r := p.rule(fields[0])
	vals := fields[1:]

	switch len(vals) {
	case 0:
		return nil
	case 1:
		f, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			return fmt.Errorf("score: invalid value %q", vals[0])
		}
		r.Scores = rules.ScoreVector{f, f, f, f}
	case 4:
		var sv rules.ScoreVector
		for i, v := range vals {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("score: invalid value %q", v)
			}
			sv[i] = f
		}
		r.Scores = sv
	default:
		return fmt.Errorf("score: expected 1 or 4 values, got %d", len(vals))
	}
	return nil
}

func cmdRequiredScore(p *Parser, args []string) error {
	fields := strings.Fields(args[0])
	if len(fields) != 1 {
		return fmt.Errorf("required_score: expected one value")
	}
	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("required_score: invalid value %q", fields[0])
	}
	p.threshold = f
	return nil
}

// header NAME Header =~ /pat/mods [if-unset: DEFAULT]
func cmdHeader(p *Parser, args []string) error {
	return parseTestRule(p, args[0], rules.KindHeaderRegex)
}

func cmdBody(p *Parser, args []string) error {
	return parseTestRule(p, args[0], rules.KindBodyRegex)
}

func cmdRawBody(p *Parser, args []string) error {
	return parseTestRule(p, args[0], rules.KindRawBodyRegex)
}

func cmdURI(p *Parser, args []string) error {
	return parseTestRule(p, args[0], rules.KindURIRegex)
}

func cmdFull(p *Parser, args []string) error {
	return parseTestRule(p, args[0], rules.KindFullRegex)
}

func cmdMeta(p *Parser, args []string) error {
	fields := strings.SplitN(args[0], " ", 2)
	if len(fields) != 2 {
		return fmt.Errorf("meta: expected name and expression")
	}
	r := p.rule(fields[0])
	r.Kind = rules.KindMetaBoolean
	r.Pattern = fields[1]
	return nil
}

func cmdDescribe(p *Parser, args []string) error {
	fields := strings.SplitN(args[0], " ", 2)
	if len(fields) != 2 {
		return fmt.Errorf("describe: expected name and text")
	}
	p.rule(fields[0]).Description = fields[1]
	return nil
}

func cmdPriority(p *Parser, args []string) error {
	fields := strings.Fields(args[0])
	if len(fields) != 2 {
		return fmt.Errorf("priority: expected name and integer")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("priority: invalid value %q", fields[1])
	}
	p.rule(fields[0]).Priority = n
	return nil
}

func cmdTflags(p *Parser, args []string) error {
	fields := strings.Fields(args[0])
	if len(fields) < 1 {
		return fmt.Errorf("tflags: missing rule name")
	}
	r := p.rule(fields[0])
	for _, f := range fields[1:] {
		r.TFlags[rules.TFlag(f)] = true
	}
	if r.TFlags[rules.TFlagNice] {
		r.Scores = rules.ScoreVector{-r.Scores[0], -r.Scores[1], -r.Scores[2], -r.Scores[3]}
	}
	return nil
}

// parseTestRule parses "NAME Header =~ /pat/mods [if-unset: DEFAULT]"
// (for header rules) or "NAME /pat/mods" (for body/rawbody/uri/full
// rules) into a compiled rule whose Pattern for header rules is
// "<header-name>\x00<regex>" so the engine can recover which header
// view to test against.
func parseTestRule(p *Parser, line string, kind rules.Kind) error {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 {
		return fmt.Errorf("rule: expected name and pattern")
	}
	name, rest := fields[0], strings.TrimSpace(fields[1])
	r := p.rule(name)
	r.Kind = kind

	if kind == rules.KindHeaderRegex {
		return parseHeaderTest(r, rest)
	}

	delim, mods, negate := extractDelimited(rest)
	r.Pattern = "(?" + mods + ")" + delim
	r.Negate = negate
	return nil
}

// parseHeaderTest handles "Header =~ /pat/mods [if-unset: DEFAULT]" and
// "Header !~ /pat/mods".
func parseHeaderTest(r *rules.Rule, rest string) error {
	var op string
	var idx int
	if i := strings.Index(rest, "=~"); i >= 0 {
		op, idx = "=~", i
	} else if i := strings.Index(rest, "!~"); i >= 0 {
		op, idx = "!~", i
	} else {
		return fmt.Errorf("header %s: missing =~/!~", r.Name)
	}

	headerName := strings.TrimSpace(rest[:idx])
	remainder := strings.TrimSpace(rest[idx+len(op):])

	ifUnset := ""
	if i := strings.Index(remainder, "[if-unset:"); i >= 0 {
		tail := remainder[i+len("[if-unset:"):]
		if j := strings.Index(tail, "]"); j >= 0 {
			ifUnset = strings.TrimSpace(tail[:j])
		}
		remainder = strings.TrimSpace(remainder[:i])
	}

	delim, mods, _ := extractDelimited(remainder)
	r.Pattern = headerName + "\x00(?" + mods + ")" + delim
	r.Negate = op == "!~"
	r.IfUnset = ifUnset
	return nil
}

// extractDelimited parses a delimited regex using any of m{}, m(),
// m<>, m⟨char⟩...⟨char⟩, or /.../ with trailing modifier letters. A
// delimited pattern without an i modifier is case-sensitive.
func extractDelimited(s string) (pattern, mods string, negate bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "i", false
	}

	var open, close byte
	start := 0
	if strings.HasPrefix(s, "m") && len(s) > 1 {
		start = 1
		switch s[1] {
		case '{':
			open, close = '{', '}'
		case '(':
			open, close = '(', ')'
		case '<':
			open, close = '<', '>'
		default:
			open, close = s[1], s[1]
		}
		start = 2
	} else if s[0] == '/' {
		open, close = '/', '/'
		start = 1
	} else {
		return s, "i", false
	}

	end := strings.LastIndexByte(s, close)
	if end <= start {
		return s, "i", false
	}

	pattern = s[start:end]
	mods = ""
	for _, m := range s[end+1:] {
		switch m {
		case 'i', 'm', 's':
			if !strings.ContainsRune(mods, m) {
				mods += string(m)
			}
		}
	}
	if mods == "" {
		// "(?)" does not compile; "-i" spells out the case-sensitive default.
		mods = "-i"
	}
	return pattern, mods, false
}
