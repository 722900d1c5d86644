package email

import (
	"strings"
	"testing"
)

func TestParseDecodesQuotedPrintableBody(t *testing.T) {
	raw := "From: sender@example.com\r\n" +
		"Subject: qp test\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=C3=A9 au lait\r\n"

	p := NewParser()
	e, err := p.Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !strings.Contains(e.Body, "café au lait") {
		t.Errorf("expected decoded body, got %q", e.Body)
	}
}

func TestParseDecodesBase64Body(t *testing.T) {
	// "hello from a base64 encoded body" base64-encoded
	raw := "From: sender@example.com\r\n" +
		"Subject: b64 test\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"aGVsbG8gZnJvbSBhIGJhc2U2NCBlbmNvZGVkIGJvZHk=\r\n"

	p := NewParser()
	e, err := p.Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !strings.Contains(e.Body, "hello from a base64 encoded body") {
		t.Errorf("expected decoded body, got %q", e.Body)
	}
}

func TestExtractFeaturesComputesSubjectAndBodyStats(t *testing.T) {
	raw := "From: spammer@example.com\r\n" +
		"Subject: FREE MONEY NOW!!!\r\n" +
		"\r\n" +
		"CLICK HERE http://spam.example/a and www.spam.example/b !!!\r\n"

	p := NewParser()
	e, err := p.Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if e.Features.SubjectExclamations != 3 {
		t.Errorf("SubjectExclamations = %d, want 3", e.Features.SubjectExclamations)
	}
	if e.Features.BodyURLCount < 2 {
		t.Errorf("BodyURLCount = %d, want at least 2", e.Features.BodyURLCount)
	}
	if e.Features.SubjectCapsRatio != 1.0 {
		t.Errorf("SubjectCapsRatio = %v, want 1.0 for an all-caps subject", e.Features.SubjectCapsRatio)
	}
}
