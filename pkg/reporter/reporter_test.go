package reporter

import (
	"strings"
	"testing"

	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/rules"
)

func headerValue(headers []message.Header, name string) (string, bool) {
	for _, h := range headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

func TestBuildAddsStatusHeaderForHam(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 1.0
	cfg := DefaultConfig()

	rep := Build(status, "hello", []byte("body text"), cfg)

	v, ok := headerValue(rep.Headers, HeaderPrefix+"Status")
	if !ok {
		t.Fatalf("expected an X-Spam-Status header")
	}
	if !strings.HasPrefix(v, "No, score=1.0") {
		t.Fatalf("Status = %q", v)
	}
	if _, ok := headerValue(rep.Headers, HeaderPrefix+"Flag"); ok {
		t.Fatalf("ham message should not carry X-Spam-Flag")
	}
	if rep.Subject != "hello" {
		t.Fatalf("ham subject should be unchanged, got %q", rep.Subject)
	}
}

func TestBuildTagsSubjectAndFlagsSpam(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 10.0
	status.Hits = []string{"BODY_FREE", "SUBJ_FREE"}
	cfg := DefaultConfig()
	cfg.SubjectTag = "*****SPAM*****"

	rep := Build(status, "buy now", nil, cfg)

	if _, ok := headerValue(rep.Headers, HeaderPrefix+"Flag"); !ok {
		t.Fatalf("spam message should carry X-Spam-Flag")
	}
	if !strings.HasPrefix(rep.Subject, "*****SPAM*****") {
		t.Fatalf("Subject = %q", rep.Subject)
	}
}

func TestBuildLevelHeaderReflectsScore(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 7.0
	cfg := DefaultConfig()

	rep := Build(status, "x", nil, cfg)
	v, ok := headerValue(rep.Headers, HeaderPrefix+"Level")
	if !ok {
		t.Fatalf("expected an X-Spam-Level header")
	}
	if v != "*******" {
		t.Fatalf("Level = %q, want 7 stars", v)
	}
}

func TestBuildReportSafeMode1WrapsOriginalAsRFC822(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 10.0
	cfg := DefaultConfig()
	cfg.ReportSafe = 1

	rep := Build(status, "subj", []byte("From: a@b\r\n\r\nbody\r\n"), cfg)
	if rep.Body == nil {
		t.Fatalf("expected a wrapped body in report-safe mode 1")
	}
	if !strings.Contains(string(rep.Body), "message/rfc822") {
		t.Fatalf("expected message/rfc822 content type, got %q", rep.Body)
	}
}

func TestRemoveMarkupIsInverseOfBuild(t *testing.T) {
	headers := []message.Header{
		{Name: "From", Value: "a@b"},
		{Name: HeaderPrefix + "Status", Value: "Yes, score=10.0"},
		{Name: HeaderPrefix + "Flag", Value: "YES"},
	}
	body := []byte("preamble\n\n" + reportSentinel + "\nsome report text\n\noriginal body\n")

	kept, subject, cleanBody := RemoveMarkup(headers, "*****SPAM***** ", "*****SPAM***** hello", body)

	if _, ok := headerValue(kept, HeaderPrefix+"Status"); ok {
		t.Fatalf("expected X-Spam-Status stripped")
	}
	if _, ok := headerValue(kept, "From"); !ok {
		t.Fatalf("expected non-spam headers preserved")
	}
	if subject != "hello" {
		t.Fatalf("subject = %q, want 'hello'", subject)
	}
	if strings.Contains(string(cleanBody), reportSentinel) {
		t.Fatalf("expected report sentinel excised, got %q", cleanBody)
	}
	if !strings.Contains(string(cleanBody), "original body") {
		t.Fatalf("expected original body preserved, got %q", cleanBody)
	}
}

func TestRenderTemplateSubstitutesPlaceholders(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 6.5
	status.Log = []string{"3.0 header SUBJ_FREE", "3.5 body BODY_FREE"}
	cfg := DefaultConfig()
	cfg.Threshold = 5.0

	out := RenderTemplate(TemplateReport, status, cfg)
	if !strings.Contains(out, "6.5 points") {
		t.Fatalf("expected hits substituted, got %q", out)
	}
	if !strings.Contains(out, "5.0 required") {
		t.Fatalf("expected threshold substituted, got %q", out)
	}
	if !strings.Contains(out, "SUBJ_FREE") {
		t.Fatalf("expected summary lines substituted, got %q", out)
	}
}
