package bayes

import (
	"strings"
	"testing"
)

func contains(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func TestTokenizeRejectsStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("the cat and a dog sat")
	for _, stop := range []string{"the", "and"} {
		if contains(tokens, stop) {
			t.Fatalf("stop word %q should be rejected, got %v", stop, tokens)
		}
	}
}

func TestTokenizeLowersTitleCaseNotAllCaps(t *testing.T) {
	tokens := Tokenize("Viagra CHEAP pills")
	if !contains(tokens, "viagra") {
		t.Fatalf("expected Title-Case word lowered to 'viagra', got %v", tokens)
	}
	if !contains(tokens, "CHEAP") {
		t.Fatalf("ALL-CAPS word should be left untouched, got %v", tokens)
	}
}

func TestTokenizeFoldsDigitRuns(t *testing.T) {
	tokens := Tokenize("call 5551234 now")
	if !contains(tokens, "call") {
		t.Fatalf("expected 'call' to survive tokenization, got %v", tokens)
	}
	foundFold := false
	for _, tok := range tokens {
		if strings.Contains(tok, "N") && !strings.ContainsAny(tok, "0123456789") {
			foundFold = true
		}
	}
	if !foundFold {
		t.Fatalf("expected a digit-folded fingerprint token, got %v", tokens)
	}
}

func TestTokenizeFoldsLongTokens(t *testing.T) {
	long := "supercalifragilisticexpialidocious"
	tokens := Tokenize(long)
	for _, tok := range tokens {
		if tok == long {
			t.Fatalf("long token should have been folded, got raw token in %v", tokens)
		}
	}
	if !contains(tokens, "sk:"+long[:7]) {
		t.Fatalf("expected sk:-folded token, got %v", tokens)
	}
}

func TestTokenizeDeduplicates(t *testing.T) {
	tokens := Tokenize("buy buy buy now now")
	count := 0
	for _, tok := range tokens {
		if tok == "buy" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected 'buy' deduplicated to one entry, got %d in %v", count, tokens)
	}
}

func TestHeaderTokensIgnoresDateAndSpamHeaders(t *testing.T) {
	if got := HeaderTokens("Date", "Mon, 1 Jan 2024 00:00:00 +0000"); got != nil {
		t.Fatalf("Date header should be ignored, got %v", got)
	}
	if got := HeaderTokens("X-Spam-Status", "No"); got != nil {
		t.Fatalf("X-Spam- headers should be ignored, got %v", got)
	}
}

func TestHeaderTokensPrefixesWithCompressedCode(t *testing.T) {
	tokens := HeaderTokens("Subject", "free money now")
	if len(tokens) == 0 {
		t.Fatalf("expected subject tokens, got none")
	}
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "H*s:") {
			t.Fatalf("expected Subject tokens prefixed H*s:, got %q", tok)
		}
	}
}

func TestReduceMessageIDKeepsDomainPortion(t *testing.T) {
	got := reduceMessageID("<abc123.456@mail.example.com>")
	if !strings.HasPrefix(got, "@mail.example.com") {
		t.Fatalf("expected message-id reduced to its domain portion, got %q", got)
	}
}

func TestReduceReceivedLowercasesKeywordsAndApproximatesIP(t *testing.T) {
	got := reduceReceived("FROM mail.example.com (1.2.3.4) WITH ESMTP id ABC123")
	if strings.Contains(got, "ABC123") {
		t.Fatalf("expected sendmail id stripped, got %q", got)
	}
	if !strings.Contains(got, "1.2.3.0/24") {
		t.Fatalf("expected last IP octet approximated to /24, got %q", got)
	}
	if strings.Contains(got, "FROM") || strings.Contains(got, "WITH") {
		t.Fatalf("expected with/from/for keywords lowercased, got %q", got)
	}
}
