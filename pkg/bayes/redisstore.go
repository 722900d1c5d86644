package bayes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed Store, adapted from zpam's
// pkg/learning/redis_bayes.go RedisConfig (connection, key prefix,
// per-token TTL) trimmed to the fields the spec-shaped store needs.
type RedisConfig struct {
	RedisURL  string
	KeyPrefix string
	TokenTTL  time.Duration
}

// DefaultRedisConfig mirrors the teacher's DefaultRedisConfig defaults
// for the fields this store keeps.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		RedisURL:  "redis://localhost:6379",
		KeyPrefix: "zpam:bayes",
		TokenTTL:  30 * 24 * time.Hour,
	}
}

// RedisStore is the Redis-backed Store implementation, adapted from
// RedisBayesianFilter: it keeps the pipelining and per-key hashing
// style but stores spec-shaped (spam, ham, atime) fields per token
// instead of OSB bigram counts, and hashes long token keys with xxhash
// instead of sha1 (a non-cryptographic hash is the right tool for key
// shortening, and xxhash is already pulled in transitively by go-redis).
type RedisStore struct {
	client *redis.Client
	cfg    *RedisConfig
}

const globalKeySuffix = ":global"
const seenKeySuffix = ":seen"

// NewRedisStore connects to Redis and returns a ready Store.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("bayes: invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bayes: redis connection failed: %w", err)
	}

	return &RedisStore{client: client, cfg: cfg}, nil
}

func (s *RedisStore) tokenKey(token string) string {
	if len(token) > 64 {
		h := xxhash.Sum64String(token)
		token = "hash_" + strconv.FormatUint(h, 16)
	}
	return s.cfg.KeyPrefix + ":token:" + token
}

func (s *RedisStore) globalKey() string { return s.cfg.KeyPrefix + globalKeySuffix }
func (s *RedisStore) seenKey() string   { return s.cfg.KeyPrefix + seenKeySuffix }

func (s *RedisStore) GetTokens(ctx context.Context, tokens []string) (map[string]TokenRecord, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tokens))
	for _, t := range tokens {
		cmds[t] = pipe.HGetAll(ctx, s.tokenKey(t))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("bayes: get tokens: %w", err)
	}

	out := make(map[string]TokenRecord, len(tokens))
	for token, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		spam, _ := strconv.ParseInt(fields["spam"], 10, 64)
		ham, _ := strconv.ParseInt(fields["ham"], 10, 64)
		atimeUnix, _ := strconv.ParseInt(fields["atime"], 10, 64)
		out[token] = TokenRecord{Spam: spam, Ham: ham, Atime: time.Unix(atimeUnix, 0)}
	}
	return out, nil
}

func (s *RedisStore) adjustTokens(ctx context.Context, tokens []string, spam bool, delta int64) error {
	if len(tokens) == 0 {
		return nil
	}

	field := "ham"
	if spam {
		field = "spam"
	}

	pipe := s.client.Pipeline()
	for _, t := range tokens {
		key := s.tokenKey(t)
		pipe.HIncrBy(ctx, key, field, delta)
		pipe.HSet(ctx, key, "atime", time.Now().Unix())
		if s.cfg.TokenTTL > 0 {
			pipe.Expire(ctx, key, s.cfg.TokenTTL)
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("bayes: adjust tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrementTokens(ctx context.Context, tokens []string, spam bool) error {
	return s.adjustTokens(ctx, tokens, spam, 1)
}

func (s *RedisStore) DecrementTokens(ctx context.Context, tokens []string, spam bool) error {
	return s.adjustTokens(ctx, tokens, spam, -1)
}

func (s *RedisStore) Global(ctx context.Context) (GlobalStats, error) {
	fields := s.client.HGetAll(ctx, s.globalKey()).Val()
	nspam, _ := strconv.ParseInt(fields["nspam"], 10, 64)
	nham, _ := strconv.ParseInt(fields["nham"], 10, 64)
	lastExpire, _ := strconv.ParseInt(fields["last_expire"], 10, 64)
	lastJournal, _ := strconv.ParseInt(fields["last_journal"], 10, 64)
	return GlobalStats{
		NSpam:       nspam,
		NHam:        nham,
		LastExpire:  time.Unix(lastExpire, 0),
		LastJournal: time.Unix(lastJournal, 0),
	}, nil
}

func (s *RedisStore) AdjustGlobal(ctx context.Context, spamDelta, hamDelta int64) error {
	pipe := s.client.Pipeline()
	if spamDelta != 0 {
		pipe.HIncrBy(ctx, s.globalKey(), "nspam", spamDelta)
	}
	if hamDelta != 0 {
		pipe.HIncrBy(ctx, s.globalKey(), "nham", hamDelta)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("bayes: adjust global: %w", err)
	}
	return nil
}

func (s *RedisStore) SeenLabel(ctx context.Context, messageID string) (string, error) {
	v, err := s.client.HGet(ctx, s.seenKey(), messageID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("bayes: seen label: %w", err)
	}
	return v, nil
}

func (s *RedisStore) SetSeen(ctx context.Context, messageID, label string) error {
	return s.client.HSet(ctx, s.seenKey(), messageID, label).Err()
}

func (s *RedisStore) ClearSeen(ctx context.Context, messageID string) error {
	return s.client.HDel(ctx, s.seenKey(), messageID).Err()
}

// Expire removes tokens whose atime lies beyond cutoff, scanning the
// key space with SCAN to avoid blocking Redis, but never lets the
// surviving token count fall below minTokens.
func (s *RedisStore) Expire(ctx context.Context, cutoff time.Time, minTokens int) (int64, error) {
	pattern := s.cfg.KeyPrefix + ":token:*"
	var removed int64
	var cursor uint64

	total, err := s.countTokenKeys(ctx, pattern)
	if err != nil {
		return 0, err
	}

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, fmt.Errorf("bayes: expire scan: %w", err)
		}
		cursor = next

		for _, key := range keys {
			if total-removed <= int64(minTokens) {
				return removed, nil
			}
			atimeStr, err := s.client.HGet(ctx, key, "atime").Result()
			if err != nil {
				continue
			}
			atimeUnix, _ := strconv.ParseInt(atimeStr, 10, 64)
			if time.Unix(atimeUnix, 0).Before(cutoff) {
				if err := s.client.Del(ctx, key).Err(); err == nil {
					removed++
				}
			}
		}

		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

func (s *RedisStore) countTokenKeys(ctx context.Context, pattern string) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return 0, fmt.Errorf("bayes: count tokens: %w", err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
