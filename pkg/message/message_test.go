package message

import (
	"encoding/base64"
	"strings"
	"testing"
)

const sampleRaw = "From: \"Alice Example\" <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Cc: carol@example.com\r\n" +
	"Subject: hello\r\n" +
	"X-Spam-Status: Yes, score=9.0\r\n" +
	"\r\n" +
	"Check out http://spammy.example/click and www.bare-host.test\r\n" +
	"also mailto:reply@example.com\r\n"

func TestParseSplitsHeadersAndBody(t *testing.T) {
	msg, err := Parse([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := msg.Header("Subject"); got != "hello" {
		t.Errorf("Subject = %q, want %q", got, "hello")
	}

	if got := msg.Header("From:addr"); got != "alice@example.com" {
		t.Errorf("From:addr = %q, want %q", got, "alice@example.com")
	}

	if got := msg.Header("From:name"); got != "Alice Example" {
		t.Errorf("From:name = %q, want %q", got, "Alice Example")
	}

	if got := msg.Header("ToCc"); got != "bob@example.com, carol@example.com" {
		t.Errorf("ToCc = %q, want %q", got, "bob@example.com, carol@example.com")
	}
}

func TestHeaderDefaultFallsBackOnMiss(t *testing.T) {
	msg, err := Parse([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := msg.HeaderDefault("X-Nope", "fallback"); got != "fallback" {
		t.Errorf("HeaderDefault = %q, want %q", got, "fallback")
	}
}

func TestStripResultHeadersInvalidatesCache(t *testing.T) {
	msg, err := Parse([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := msg.Header("X-Spam-Status"); got == "" {
		t.Fatal("expected X-Spam-Status to be present before stripping")
	}

	msg.StripResultHeaders([]string{"X-Spam-"})

	if got := msg.Header("X-Spam-Status"); got != "" {
		t.Errorf("X-Spam-Status = %q, want empty after strip", got)
	}

	if got := msg.Header("ALL"); strings.Contains(got, "X-Spam-Status") {
		t.Errorf("ALL still contains stripped header: %q", got)
	}
}

func TestURIsExtractsSchemedBareAndMailto(t *testing.T) {
	msg, err := Parse([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	uris := msg.URIs()
	want := map[string]bool{
		"http://spammy.example/click":    true,
		"http://www.bare-host.test":      true,
		"mailto:reply@example.com":       true,
	}
	for _, u := range uris {
		delete(want, u)
	}
	if len(want) != 0 {
		t.Errorf("missing expected URIs: %v (got %v)", want, uris)
	}
}

func TestBodyLinesTruncatesLongLines(t *testing.T) {
	long := strings.Repeat("a", maxBodyLineLen+500)
	raw := "Subject: long\r\n\r\n" + long + "\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	lines := msg.BodyLines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if len(lines[0]) != maxBodyLineLen {
		t.Errorf("line length = %d, want %d", len(lines[0]), maxBodyLineLen)
	}
}

func TestRawBodyLinesDecodesQuotedPrintable(t *testing.T) {
	raw := "Subject: qp\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=C3=A9 au lait=\r\nmore text\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	lines := msg.RawBodyLines()
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "café au laitmore text") {
		t.Fatalf("expected decoded quoted-printable body, got %q", joined)
	}

	// RawBody() itself stays wire-exact.
	if !strings.Contains(string(msg.RawBody()), "=C3=A9") {
		t.Error("RawBody() should still return the pre-decode bytes")
	}
}

func TestRawBodyLinesDecodesBase64Run(t *testing.T) {
	payload := []byte("this is the plaintext payload that gets base64 encoded for the test")
	encoded := base64.StdEncoding.EncodeToString(payload)

	// Wrap at a constant width so three consecutive lines look alike.
	var chunks []string
	for i := 0; i < len(encoded); i += 16 {
		end := i + 16
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, encoded[i:end])
	}
	body := strings.Join(chunks, "\r\n")

	raw := "Subject: b64\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		body + "\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	joined := strings.Join(msg.RawBodyLines(), "\n")
	if !strings.Contains(joined, string(payload)) {
		t.Fatalf("expected decoded base64 payload in raw body lines, got %q", joined)
	}
}

func TestFullTextIncludesHeadersAndBody(t *testing.T) {
	msg, err := Parse([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	full := string(msg.FullText())
	if !strings.Contains(full, "Subject: hello") {
		t.Error("FullText missing Subject header")
	}
	if !strings.Contains(full, "spammy.example") {
		t.Error("FullText missing body content")
	}
}
