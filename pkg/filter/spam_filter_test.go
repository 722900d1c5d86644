package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zpam/spamd/pkg/config"
)

func TestSpamFilterCreation(t *testing.T) {
	sf, err := NewSpamFilter()
	if err != nil {
		t.Fatalf("Failed to create spam filter: %v", err)
	}
	if sf.svc == nil {
		t.Error("classifier service not initialized")
	}
}

func TestEmailFileDetection(t *testing.T) {
	sf, err := NewSpamFilter()
	if err != nil {
		t.Fatalf("Failed to create spam filter: %v", err)
	}

	testCases := []struct {
		filename string
		expected bool
	}{
		{"email.eml", true},
		{"message.msg", true},
		{"email.txt", true},
		{"mail.email", true},
		{"emailfile", true}, // No extension
		{"document.pdf", false},
		{"image.jpg", false},
		{"script.exe", false},
	}

	for _, tc := range testCases {
		result := sf.isEmailFile(tc.filename)
		if result != tc.expected {
			t.Errorf("isEmailFile(%s) = %v, expected %v", tc.filename, result, tc.expected)
		}
	}
}

func TestTestEmailClassifiesMessage(t *testing.T) {
	sf, err := NewSpamFilterWithConfig(config.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create spam filter: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.eml")
	raw := "From: spammer@example.com\r\nSubject: FREE MONEY GUARANTEED\r\n\r\nAct now to get rich quick, click here!!!\r\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("failed to write sample message: %v", err)
	}

	score, err := sf.TestEmail(path)
	if err != nil {
		t.Fatalf("TestEmail failed: %v", err)
	}
	if score < 1 || score > 5 {
		t.Errorf("expected score on a 1-5 scale, got %d", score)
	}
}

func TestProcessEmailsMovesFiles(t *testing.T) {
	sf, err := NewSpamFilterWithConfig(config.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create spam filter: %v", err)
	}

	inputDir := t.TempDir()
	outputDir := t.TempDir()
	spamDir := t.TempDir()

	samples := map[string]string{
		"clean.eml": "From: friend@example.com\r\nSubject: Lunch tomorrow\r\n\r\nWant to get lunch tomorrow around noon?\r\n",
		"spam.eml":  "From: spammer@example.com\r\nSubject: FREE VIAGRA GUARANTEED WIN LOTTERY\r\n\r\nAct now, click here, free money, guaranteed income!!!\r\n",
	}
	for name, content := range samples {
		if err := os.WriteFile(filepath.Join(inputDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write sample %s: %v", name, err)
		}
	}

	results, err := sf.ProcessEmails(inputDir, outputDir, spamDir, 3)
	if err != nil {
		t.Fatalf("ProcessEmails failed: %v", err)
	}
	if results.Total != 2 {
		t.Errorf("expected 2 processed messages, got %d", results.Total)
	}
	if results.Spam+results.Ham != results.Total {
		t.Errorf("spam (%d) + ham (%d) should equal total (%d)", results.Spam, results.Ham, results.Total)
	}
}
