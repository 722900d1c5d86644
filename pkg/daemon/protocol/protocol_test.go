package protocol

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/zpam/spamd/pkg/message"
	"github.com/zpam/spamd/pkg/reporter"
	"github.com/zpam/spamd/pkg/rules"
)

const sampleMessage = "From: a@b.com\r\nSubject: hello\r\n\r\nbody text\r\n"

func buildRequest(verb Verb, body string) []byte {
	var b strings.Builder
	b.WriteString(string(verb) + " SPAMC/1.5\r\n")
	b.WriteString("User: tester\r\n")
	b.WriteString("Content-length: " + itoa(len(body)) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestReadRequestParsesVerbUserAndBody(t *testing.T) {
	raw := buildRequest(VerbCheck, sampleMessage)
	req, err := ReadRequest(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Verb != VerbCheck {
		t.Fatalf("Verb = %q, want CHECK", req.Verb)
	}
	if req.User != "tester" {
		t.Fatalf("User = %q, want tester", req.User)
	}
	if string(req.Body) != sampleMessage {
		t.Fatalf("Body = %q, want %q", req.Body, sampleMessage)
	}
}

func TestReadRequestMissingContentLengthErrors(t *testing.T) {
	raw := []byte("CHECK SPAMC/1.5\r\n\r\n")
	if _, err := ReadRequest(bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected an error for missing Content-length")
	}
}

func TestWriteResponseRendersLocaleIndependentFloats(t *testing.T) {
	var buf bytes.Buffer
	resp := &Response{Code: 0, Message: "EX_OK", IsSpam: true, Score: 12.3, Threshold: 5.0}
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Spam: True ; 12.3 / 5.0") {
		t.Fatalf("unexpected response: %q", out)
	}
	if !strings.HasPrefix(out, "SPAMD/"+Version) {
		t.Fatalf("unexpected banner: %q", out)
	}
}

// fakeClassifier returns a fixed PerMsgStatus so Handle's verb branching
// can be tested without a real rule engine.
type fakeClassifier struct {
	status *rules.PerMsgStatus
}

func (f *fakeClassifier) Classify(ctx context.Context, msg *message.Message) (*rules.PerMsgStatus, error) {
	return f.status, nil
}

func TestHandleSymbolsListsHits(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 1.0
	status.Hits = []string{"RULE_A", "RULE_B"}

	srv := &Server{Classifier: &fakeClassifier{status: status}, Reporter: reporter.DefaultConfig()}
	resp, err := srv.Handle(context.Background(), &Request{Verb: VerbSymbols, Body: []byte(sampleMessage)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if string(resp.Body) != "RULE_A,RULE_B" {
		t.Fatalf("Body = %q", resp.Body)
	}
}

func TestHandleReportIfSpamOmitsBodyWhenHam(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 1.0
	cfg := reporter.DefaultConfig()
	cfg.Threshold = 5.0

	srv := &Server{Classifier: &fakeClassifier{status: status}, Reporter: cfg}
	resp, err := srv.Handle(context.Background(), &Request{Verb: VerbReportIfSpam, Body: []byte(sampleMessage)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Body != nil {
		t.Fatalf("expected no body for a ham verdict under REPORT_IFSPAM, got %q", resp.Body)
	}
	if resp.IsSpam {
		t.Fatalf("expected IsSpam=false")
	}
}

func TestHandleProcessRewritesMessage(t *testing.T) {
	status := rules.NewPerMsgStatus()
	status.Score = 10.0
	cfg := reporter.DefaultConfig()
	cfg.Threshold = 5.0

	srv := &Server{Classifier: &fakeClassifier{status: status}, Reporter: cfg}
	resp, err := srv.Handle(context.Background(), &Request{Verb: VerbProcess, Body: []byte(sampleMessage)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(string(resp.Body), "X-Spam-Status") {
		t.Fatalf("expected rewritten message to carry X-Spam-Status, got %q", resp.Body)
	}
}
