package bayes

import (
	"context"
	"testing"
	"time"
)

// fakeStore is a minimal in-memory Store for Classifier tests.
type fakeStore struct {
	tokens map[string]TokenRecord
	global GlobalStats
	seen   map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens: make(map[string]TokenRecord),
		seen:   make(map[string]string),
	}
}

func (f *fakeStore) GetTokens(ctx context.Context, tokens []string) (map[string]TokenRecord, error) {
	out := make(map[string]TokenRecord)
	for _, t := range tokens {
		if rec, ok := f.tokens[t]; ok {
			out[t] = rec
		}
	}
	return out, nil
}

func (f *fakeStore) IncrementTokens(ctx context.Context, tokens []string, spam bool) error {
	for _, t := range tokens {
		rec := f.tokens[t]
		if spam {
			rec.Spam++
		} else {
			rec.Ham++
		}
		rec.Atime = time.Unix(0, 0)
		f.tokens[t] = rec
	}
	return nil
}

func (f *fakeStore) DecrementTokens(ctx context.Context, tokens []string, spam bool) error {
	for _, t := range tokens {
		rec := f.tokens[t]
		if spam {
			rec.Spam--
		} else {
			rec.Ham--
		}
		f.tokens[t] = rec
	}
	return nil
}

func (f *fakeStore) Global(ctx context.Context) (GlobalStats, error) { return f.global, nil }

func (f *fakeStore) AdjustGlobal(ctx context.Context, spamDelta, hamDelta int64) error {
	f.global.NSpam += spamDelta
	f.global.NHam += hamDelta
	return nil
}

func (f *fakeStore) SeenLabel(ctx context.Context, messageID string) (string, error) {
	return f.seen[messageID], nil
}

func (f *fakeStore) SetSeen(ctx context.Context, messageID, label string) error {
	f.seen[messageID] = label
	return nil
}

func (f *fakeStore) ClearSeen(ctx context.Context, messageID string) error {
	delete(f.seen, messageID)
	return nil
}

func (f *fakeStore) Expire(ctx context.Context, cutoff time.Time, minTokens int) (int64, error) {
	return 0, nil
}

func (f *fakeStore) Close() error { return nil }

func TestClassifierLearnIsIdempotentForSameLabel(t *testing.T) {
	store := newFakeStore()
	c := NewClassifier(store, NaiveCombiner{})
	ctx := context.Background()

	if err := c.Learn(ctx, "msg-1", []string{"free", "money"}, true); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if err := c.Learn(ctx, "msg-1", []string{"free", "money"}, true); err != nil {
		t.Fatalf("Learn (repeat): %v", err)
	}
	if store.global.NSpam != 1 {
		t.Fatalf("expected NSpam=1 after re-learning same label, got %d", store.global.NSpam)
	}
}

func TestClassifierLearnFlipsLabelOnRelearn(t *testing.T) {
	store := newFakeStore()
	c := NewClassifier(store, NaiveCombiner{})
	ctx := context.Background()

	if err := c.Learn(ctx, "msg-1", []string{"free"}, true); err != nil {
		t.Fatalf("Learn spam: %v", err)
	}
	if err := c.Learn(ctx, "msg-1", []string{"free"}, false); err != nil {
		t.Fatalf("Learn ham: %v", err)
	}
	if store.global.NSpam != 0 || store.global.NHam != 1 {
		t.Fatalf("expected relabel to flip global counts, got spam=%d ham=%d", store.global.NSpam, store.global.NHam)
	}
	if store.tokens["free"].Spam != 0 || store.tokens["free"].Ham != 1 {
		t.Fatalf("expected token counts to flip, got %+v", store.tokens["free"])
	}
}

func TestClassifierForgetUndoesLearn(t *testing.T) {
	store := newFakeStore()
	c := NewClassifier(store, NaiveCombiner{})
	ctx := context.Background()

	if err := c.Learn(ctx, "msg-1", []string{"free", "money"}, true); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if err := c.Forget(ctx, "msg-1", []string{"free", "money"}); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if store.global.NSpam != 0 {
		t.Fatalf("expected NSpam=0 after forget, got %d", store.global.NSpam)
	}
	if _, ok := store.seen["msg-1"]; ok {
		t.Fatalf("expected seen entry cleared after forget")
	}
}

func TestClassifierScanReturnsNeutralBelowThreshold(t *testing.T) {
	store := newFakeStore()
	store.global = GlobalStats{NSpam: 5, NHam: 5}
	c := NewClassifier(store, NaiveCombiner{})

	got := c.Scan(context.Background(), "free money now")
	if got != 0.5 {
		t.Fatalf("expected neutral 0.5 below the 200-message floor, got %v", got)
	}
}

func TestClassifierScanLeansSpamWithTrainedCorpus(t *testing.T) {
	store := newFakeStore()
	store.global = GlobalStats{NSpam: 500, NHam: 500}
	for i := 0; i < 300; i++ {
		store.tokens["viagra"] = TokenRecord{Spam: 480, Ham: 2}
		store.tokens["cheap"] = TokenRecord{Spam: 450, Ham: 5}
	}
	c := NewClassifier(store, NaiveCombiner{})

	got := c.Scan(context.Background(), "viagra cheap viagra cheap")
	if got < 0.5 {
		t.Fatalf("expected spam-leaning score for spammy tokens, got %v", got)
	}
}
