package tracker

import "testing"

func TestTrackSenderFlagsFrequentSender(t *testing.T) {
	ft := NewFrequencyTracker(60, 1000)

	var result *FrequencyResult
	for i := 0; i < 7; i++ {
		result = ft.TrackSender("bulk@example.com", "example.com", false)
	}

	if !result.IsFrequentSender {
		t.Fatalf("expected sender to be flagged as frequent after 7 sends, got %+v", result)
	}
	if result.EmailsInWindow != 7 {
		t.Errorf("EmailsInWindow = %d, want 7", result.EmailsInWindow)
	}
}

func TestTrackSenderRecordsLastFrequencyScore(t *testing.T) {
	ft := NewFrequencyTracker(60, 1000)

	var result *FrequencyResult
	for i := 0; i < 12; i++ {
		result = ft.TrackSender("spammy@example.com", "example.com", true)
	}

	stats := ft.GetSenderStats("spammy@example.com")
	if stats == nil {
		t.Fatal("expected sender stats to exist")
	}
	if stats.SpamScore != result.FrequencyScore {
		t.Errorf("SpamScore = %v, want last FrequencyScore %v", stats.SpamScore, result.FrequencyScore)
	}
	if stats.TotalEmails != 12 {
		t.Errorf("TotalEmails = %d, want 12", stats.TotalEmails)
	}
}

func TestGetDomainStatsGroupsBySenderDomain(t *testing.T) {
	ft := NewFrequencyTracker(60, 1000)
	ft.TrackSender("a@example.com", "example.com", false)
	ft.TrackSender("b@example.com", "example.com", false)
	ft.TrackSender("c@other.com", "other.com", false)

	stats := ft.GetDomainStats("example.com")
	if len(stats) != 2 {
		t.Fatalf("expected 2 senders for example.com, got %d", len(stats))
	}
}

func TestResetClearsTrackedSenders(t *testing.T) {
	ft := NewFrequencyTracker(60, 1000)
	ft.TrackSender("a@example.com", "example.com", false)
	ft.Reset()

	if stats := ft.GetSenderStats("a@example.com"); stats != nil {
		t.Error("expected no stats after Reset")
	}
}
