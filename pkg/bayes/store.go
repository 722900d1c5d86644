package bayes

import (
	"context"
	"time"
)

// TokenRecord is the per-token record the spec's Bayes Token Store
// describes: spam-count, ham-count, last-access-time.
type TokenRecord struct {
	Spam  int64
	Ham   int64
	Atime time.Time
}

// GlobalStats is the store's single global record: nspam, nham,
// last-expire-time, last-journal-time.
type GlobalStats struct {
	NSpam       int64
	NHam        int64
	LastExpire  time.Time
	LastJournal time.Time
}

// Store is the persistence interface C4 needs: per-token records, the
// global counters, and the "seen" message-id dedup sub-store that
// prevents double-learning. It generalizes zpam's
// pkg/learning/bayes_interface.go BayesianClassifier interface to the
// spec's (spam, ham, atime)-per-token / (nspam, nham)-global shape.
type Store interface {
	// GetTokens returns the current record for each requested token;
	// tokens with no record are simply absent from the result.
	GetTokens(ctx context.Context, tokens []string) (map[string]TokenRecord, error)

	// IncrementTokens applies +1 to the given field (spam or ham) on
	// every token in tokens, and bumps atime to now.
	IncrementTokens(ctx context.Context, tokens []string, spam bool) error

	// DecrementTokens is the exact inverse of IncrementTokens, used by
	// Forget.
	DecrementTokens(ctx context.Context, tokens []string, spam bool) error

	// Global returns the current global counters.
	Global(ctx context.Context) (GlobalStats, error)

	// AdjustGlobal applies delta (+1/-1) to NSpam or NHam.
	AdjustGlobal(ctx context.Context, spamDelta, hamDelta int64) error

	// SeenLabel returns the label ('s' or 'h') previously recorded for
	// messageID, or "" if the message was never learned.
	SeenLabel(ctx context.Context, messageID string) (string, error)

	// SetSeen records messageID's label, overwriting any prior entry.
	SetSeen(ctx context.Context, messageID, label string) error

	// ClearSeen removes messageID's dedup entry (used by Forget).
	ClearSeen(ctx context.Context, messageID string) error

	// Expire removes tokens whose atime lies beyond cutoff, but never
	// lets the total token count drop below minTokens.
	Expire(ctx context.Context, cutoff time.Time, minTokens int) (removed int64, err error)

	Close() error
}

// Classifier ties a Store to the tokenizer and combiners to implement
// learn/forget/scan, spec §4.4.
type Classifier struct {
	store    Store
	combiner Combiner
}

// NewClassifier builds a Classifier over store using combiner (naive or
// chi-squared).
func NewClassifier(store Store, combiner Combiner) *Classifier {
	return &Classifier{store: store, combiner: combiner}
}

// Learn trains the classifier on a message's subject+body tokens plus
// its header tokens. It first consults the seen store: a message
// already learned with the same label is a no-op; one learned with the
// opposite label is forgotten first.
func (c *Classifier) Learn(ctx context.Context, messageID string, tokens []string, isSpam bool) error {
	label := "h"
	if isSpam {
		label = "s"
	}

	prior, err := c.store.SeenLabel(ctx, messageID)
	if err != nil {
		return err
	}
	if prior == label {
		return nil
	}
	if prior != "" {
		if err := c.forgetLabel(ctx, messageID, prior, tokens); err != nil {
			return err
		}
	}

	if err := c.store.IncrementTokens(ctx, tokens, isSpam); err != nil {
		return err
	}
	var spamDelta, hamDelta int64
	if isSpam {
		spamDelta = 1
	} else {
		hamDelta = 1
	}
	if err := c.store.AdjustGlobal(ctx, spamDelta, hamDelta); err != nil {
		return err
	}
	return c.store.SetSeen(ctx, messageID, label)
}

// Forget is the exact inverse of Learn: it looks up the message's
// recorded label and undoes the corresponding counts.
func (c *Classifier) Forget(ctx context.Context, messageID string, tokens []string) error {
	label, err := c.store.SeenLabel(ctx, messageID)
	if err != nil {
		return err
	}
	if label == "" {
		return nil
	}
	return c.forgetLabel(ctx, messageID, label, tokens)
}

func (c *Classifier) forgetLabel(ctx context.Context, messageID, label string, tokens []string) error {
	isSpam := label == "s"
	if err := c.store.DecrementTokens(ctx, tokens, isSpam); err != nil {
		return err
	}
	var spamDelta, hamDelta int64
	if isSpam {
		spamDelta = -1
	} else {
		hamDelta = -1
	}
	if err := c.store.AdjustGlobal(ctx, spamDelta, hamDelta); err != nil {
		return err
	}
	return c.store.ClearSeen(ctx, messageID)
}

// minLearnedMessages is the corpus-size floor below which Scan refuses
// to classify and returns the neutral 0.5.
const minLearnedMessages = 200

// Scan tokenizes text, looks up (spam, ham) counts for each token,
// discards tokens with spam+ham < 2, computes Robinson's f(w)-smoothed
// per-token probability, keeps the 150 most significant tokens, and
// combines them via the configured combiner. It returns 0.5 whenever
// either corpus has fewer than 200 learned messages, or on any store
// failure (scan never aborts the caller's classification).
func (c *Classifier) Scan(ctx context.Context, text string) float64 {
	global, err := c.store.Global(ctx)
	if err != nil || global.NSpam < minLearnedMessages || global.NHam < minLearnedMessages {
		return 0.5
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0.5
	}

	records, err := c.store.GetTokens(ctx, tokens)
	if err != nil {
		return 0.5
	}

	probs := probabilities(records, global)
	if len(probs) == 0 {
		return 0.5
	}

	probs = topSignificant(probs, 150)
	return c.combiner.Combine(probs)
}

// Close releases the underlying store, flushing any buffered writes
// (FileStore) or closing the connection pool (RedisStore). CLI
// one-shots must call this before exit or learned tokens may be lost.
func (c *Classifier) Close() error {
	return c.store.Close()
}
