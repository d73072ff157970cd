// Package cache stores normalization and prediction outcomes in Redis, keyed
// by the upload digest and the parameter fingerprint that produced them.
package cache

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"digitprep/internal/config"
	"digitprep/internal/normalize"
	"digitprep/internal/recognizer"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "digit:"

// Outcome is everything the API returns for one upload.
type Outcome struct {
	MD5         string                  `json:"md5"`
	Fingerprint string                  `json:"fingerprint"`
	Box         normalize.BoundingBox   `json:"box"`
	Grid        normalize.IntensityGrid `json:"grid"`
	Stats       normalize.GridStats     `json:"stats"`
	Prediction  *recognizer.Prediction  `json:"prediction,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Store is the cache surface the server depends on. Get returns (nil, nil)
// on a miss.
type Store interface {
	Get(ctx context.Context, md5, fingerprint string) (*Outcome, error)
	Set(ctx context.Context, outcome *Outcome) error
	Close() error
}

// Key builds the Redis key for an upload digest and params fingerprint.
func Key(md5, fingerprint string) string {
	return keyPrefix + md5 + ":" + fingerprint
}

// Digest returns the hex MD5 of an upload.
func Digest(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// GridFingerprint covers everything that shapes the stored grid: the
// normalization params and the downsample limit applied after decoding.
func GridFingerprint(p normalize.Params, maxSide int) string {
	return fingerprint(fmt.Sprintf("params=%s max_side=%d", p.Fingerprint(), maxSide))
}

// PredictionFingerprint extends a grid fingerprint with the recognizer setup
// that produced the stored prediction.
func PredictionFingerprint(grid, backend string, cfg recognizer.Config) string {
	return fingerprint(fmt.Sprintf("grid=%s backend=%s endpoint=%s raw=%t scale=%g lang=%s",
		grid, backend, cfg.Endpoint, cfg.SendRaw, cfg.InputScale, cfg.Language))
}

func fingerprint(desc string) string {
	sum := sha256.Sum256([]byte(desc))
	return hex.EncodeToString(sum[:8])
}

// RedisStore is a Store backed by go-redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a store without checking connectivity.
func NewRedisStore(cfg *config.RedisConfig, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, ttl: cfg.TTL, logger: logger}
}

// Open connects to Redis and falls back to a no-op store when the server is
// disabled in config or does not answer a ping.
func Open(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("redis cache disabled by config")
		return Nop{}
	}

	store := NewRedisStore(cfg, logger)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("redis connection failed, cache disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = store.Close()
		return Nop{}
	}
	logger.Info("redis connected successfully", zap.String("addr", cfg.Addr))
	return store
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get reads a cached outcome.
func (s *RedisStore) Get(ctx context.Context, md5, fingerprint string) (*Outcome, error) {
	key := Key(md5, fingerprint)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var out Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Error("failed to unmarshal outcome", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("decode cached outcome: %w", err)
	}
	return &out, nil
}

// Set writes an outcome with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, outcome *Outcome) error {
	if outcome == nil || outcome.MD5 == "" {
		return errors.New("cache: outcome without digest")
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, Key(outcome.MD5, outcome.Fingerprint), data, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, string) (*Outcome, error) { return nil, nil }
func (Nop) Set(context.Context, *Outcome) error { return nil }
func (Nop) Close() error { return nil }
