package plugins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zpam/spamd/pkg/email"
)

func TestCheckReputationScoresAttachmentByHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := VTResponse{}
		resp.Data.Attributes.LastAnalysisStats.Malicious = 10
		resp.Data.Attributes.LastAnalysisStats.Harmless = 10
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	vt := NewVirusTotalPlugin()
	vt.enabled = true
	vt.apiKey = "test-key"
	vt.baseURL = server.URL

	e := &email.Email{
		Attachments: []email.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("fake payload bytes")},
		},
	}

	result, err := vt.CheckReputation(context.Background(), e)
	if err != nil {
		t.Fatalf("CheckReputation failed: %v", err)
	}
	if result.Score <= 0 {
		t.Errorf("Score = %v, want > 0 when the hash lookup reports malicious detections", result.Score)
	}
	if vt.stats.HashesChecked != 1 {
		t.Errorf("HashesChecked = %d, want 1", vt.stats.HashesChecked)
	}
}

func TestScoreAttachmentBySuspicionFlagsExecutables(t *testing.T) {
	vt := NewVirusTotalPlugin()
	score := vt.scoreAttachmentBySuspicion(email.Attachment{Filename: "invoice.pdf.exe", ContentType: "application/octet-stream"})
	if score <= 0 {
		t.Errorf("expected a nonzero suspicion score for a double-extension executable, got %v", score)
	}
}
