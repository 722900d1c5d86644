// Package bayes implements the C4 Bayesian classifier: a deterministic
// tokenizer, a persistent token store (Redis or file/journal backed),
// and the naive/chi-squared Robinson combiners.
//
// The tokenizer replaces zpam's pkg/learning OSBTokenizer.GenerateOSBTokens
// (Rspamd-style sparse bigrams) with the exact body/header token rules
// this system specifies; the overall shape — normalize, split, per-token
// filter, cap count — is kept from that precedent.
package bayes

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	minTokenLen  = 3
	maxTokenLen  = 15
	maxTokens    = 1000
)

// bodyCharset matches the characters a body token may contain; anything
// else is treated as a separator.
var bodyCharset = regexp.MustCompile(`[A-Za-z0-9,@*!_'"$.\x{A1}-\x{FF}]+`)

var dotDashRun = regexp.MustCompile(`(\.{3,6}|-{2,6})`)

var digitRun = regexp.MustCompile(`[0-9]`)

// stopWords is the fixed stoplist of very common short English words the
// tokenizer rejects outright, preserved verbatim as a short list of
// high-frequency function words.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "day": true,
	"get": true, "has": true, "him": true, "his": true, "how": true,
	"man": true, "new": true, "now": true, "old": true, "see": true,
	"two": true, "way": true, "who": true, "boy": true, "did": true,
	"its": true, "let": true, "put": true, "say": true, "she": true,
	"too": true, "use": true,
}

// junkDigitFingerprints is the stoplist of digit-substituted tokens that
// are useless received-line fingerprints (e.g. IP-octet runs, long
// numeric ids) and should be discarded once their digits are folded to
// "N".
var junkDigitFingerprints = map[string]bool{
	"N": true, "N.N": true, "N.N.N": true, "N.N.N.N": true,
	"NNNN": true, "NNNNNN": true,
}

// compressedHeaderCodes maps common header names to the 2-character
// codes used to prefix header tokens.
var compressedHeaderCodes = map[string]string{
	"Message-ID":  "*m",
	"Received":    "*r",
	"Subject":     "*s",
	"From":        "*f",
	"To":          "*t",
	"Content-Type": "*c",
	"Date":        "*d",
	"Return-Path": "*p",
}

// headerIgnoreList names headers excluded from header tokenization
// entirely; List-* and X-Spam-* are excluded by prefix in
// isHeaderIgnored. Dropping all but the last two Received lines needs
// the whole header list and is done by classifier.Tokens.
var headerIgnoreList = map[string]bool{
	"Date": true,
}

func isHeaderIgnored(name string) bool {
	if headerIgnoreList[name] {
		return true
	}
	return strings.HasPrefix(name, "List-") || strings.HasPrefix(name, "X-Spam-")
}

// Tokenize produces the deduplicated token set for a body string,
// applying dot/dash run expansion, Title-Case lowering, trimming,
// length rejection, the stoplist, long-token folding, and digit
// fingerprinting, in that order, and capping the result at maxTokens.
func Tokenize(body string) []string {
	expanded := dotDashRun.ReplaceAllStringFunc(body, func(run string) string {
		return " " + run + " "
	})

	var tokens []string
	for _, raw := range strings.Fields(expanded) {
		for _, candidate := range bodyCharset.FindAllString(raw, -1) {
			tokens = append(tokens, tokenizeCandidate(candidate)...)
			if len(tokens) >= maxTokens {
				return dedupe(tokens)
			}
		}
	}
	return dedupe(tokens)
}

func tokenizeCandidate(candidate string) []string {
	candidate = lowerTitleCase(candidate)
	candidate = strings.Trim(candidate, "-'\".,")

	if len(candidate) < minTokenLen {
		return nil
	}
	if stopWords[strings.ToLower(candidate)] {
		return nil
	}

	var out []string

	if len(candidate) > maxTokenLen {
		out = append(out, foldLongToken(candidate)...)
	} else {
		out = append(out, candidate)
	}

	if digitRun.MatchString(candidate) {
		folded := digitRun.ReplaceAllString(candidate, "N")
		if !junkDigitFingerprints[folded] {
			out = append(out, folded)
		}
	}

	return out
}

// lowerTitleCase lowers the initial capital of a Latin-style "Title
// Case" word (e.g. "Viagra" -> "viagra") but leaves ALL-CAPS and
// already-lowercase words untouched.
func lowerTitleCase(word string) string {
	r := []rune(word)
	if len(r) < 2 || !unicode.IsUpper(r[0]) {
		return word
	}
	if unicode.IsUpper(r[1]) {
		return word // ALL-CAPS or abbreviation, leave as-is
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// foldLongToken folds a token over 15 bytes per spec: each
// non-overlapping pair of consecutive high-ASCII bytes (0xA0-0xFF)
// emits an "8:XX" two-byte token; a token with no such pair emits "sk:"
// plus its first 7 characters.
func foldLongToken(token string) []string {
	var pairs []string
	for i := 0; i+1 < len(token); i++ {
		if token[i] >= 0xA0 && token[i+1] >= 0xA0 {
			pairs = append(pairs, "8:"+token[i:i+2])
			i++
		}
	}
	if len(pairs) > 0 {
		return pairs
	}
	if len(token) > 7 {
		return []string{"sk:" + token[:7]}
	}
	return []string{"sk:" + token}
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// HeaderTokens emits "H<code>:<value-token>" tokens for a header not on
// the ignore list (Date, List-*, X-Spam-*), applying the per-header
// preprocessing the spec calls for Message-ID / Received / Content-Type.
// It sees one header at a time, so dropping all but the last two
// Received lines is left to the caller.
func HeaderTokens(headerName, value string) []string {
	if isHeaderIgnored(headerName) {
		return nil
	}

	code, known := compressedHeaderCodes[headerName]
	if !known {
		code = "*u"
	}

	switch headerName {
	case "Message-ID":
		value = reduceMessageID(value)
	case "Received":
		value = reduceReceived(value)
	case "Content-Type":
		value = reduceContentType(value)
	}

	var out []string
	for _, word := range Tokenize(value) {
		out = append(out, "H"+code+":"+word)
	}
	return out
}

var mtaIDPattern = regexp.MustCompile(`^<?[0-9A-Za-z.\-]+@[0-9A-Za-z.\-]+>?$`)

// reduceMessageID pattern-reduces common MTA id formats so a spammer's
// nonstandard Message-ID still shows through the token stream.
func reduceMessageID(value string) string {
	if mtaIDPattern.MatchString(strings.TrimSpace(value)) {
		if at := strings.Index(value, "@"); at >= 0 {
			return value[at:]
		}
	}
	return value
}

var (
	sendmailIDRe = regexp.MustCompile(`(?i)\bid\s+[0-9A-Za-z]+\b`)
	ipv4LastOctet = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3})\.\d{1,3}\b`)
	receivedKeywordRe = regexp.MustCompile(`(?i)\b(with|from|for)\b`)
)

// reduceReceived strips the sendmail/ESMTP delivery id, approximates the
// last IP octet to a /24, and lowercases the with/from/for keywords.
func reduceReceived(value string) string {
	value = sendmailIDRe.ReplaceAllString(value, "")
	value = ipv4LastOctet.ReplaceAllString(value, "$1.0/24")
	value = receivedKeywordRe.ReplaceAllStringFunc(value, strings.ToLower)
	return value
}

var charsetWordRe = regexp.MustCompile(`(?i)\b(text|charset)\b`)

// reduceContentType extracts the boundary parameter and strips the
// "text"/"charset" words, which carry little signal on their own.
func reduceContentType(value string) string {
	stripped := charsetWordRe.ReplaceAllString(value, "")
	if idx := strings.Index(strings.ToLower(stripped), "boundary="); idx >= 0 {
		return stripped[idx:]
	}
	return stripped
}
