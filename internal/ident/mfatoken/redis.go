package mfatoken

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps tokens in a hash per token so replicas share them.
type Redis struct {
	rdb         redis.UniversalClient
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewRedis returns a store over rdb whose tokens live for ttl.
func NewRedis(rdb redis.UniversalClient, ttl time.Duration, maxAttempts int) *Redis {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Redis{rdb: rdb, ttl: ttl, maxAttempts: maxAttempts, now: time.Now}
}

// NewRedisFromURL parses a redis:// URL and returns a store over it.
func NewRedisFromURL(rawURL string, ttl time.Duration, maxAttempts int) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), ttl, maxAttempts), nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Issue(ctx context.Context, s Session) (string, error) {
	token, key, err := newToken()
	if err != nil {
		return "", err
	}
	expiresAt := r.now().Add(r.ttl)

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"user_id", s.UserID,
			"credential_id", s.CredentialID,
			"attempts", 0,
			"expires_at", expiresAt.UnixMilli(),
		)
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("issue mfa token: %w", err)
	}
	return token, nil
}

func (r *Redis) Lookup(ctx context.Context, token string) (Session, error) {
	return r.load(ctx, keyFor(token))
}

func (r *Redis) load(ctx context.Context, key string) (Session, error) {
	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Session{}, fmt.Errorf("lookup mfa token: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, ErrNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	expires, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	return Session{
		UserID:       fields["user_id"],
		CredentialID: fields["credential_id"],
		Attempts:     attempts,
		ExpiresAt:    time.UnixMilli(expires).UTC(),
	}, nil
}

func (r *Redis) Fail(ctx context.Context, token string) (Session, error) {
	key := keyFor(token)
	s, err := r.load(ctx, key)
	if err != nil {
		return Session{}, err
	}

	n, err := r.rdb.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return Session{}, fmt.Errorf("record mfa failure: %w", err)
	}
	s.Attempts = int(n)
	if s.Attempts >= r.maxAttempts {
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			return s, fmt.Errorf("drop mfa token: %w", err)
		}
		return s, ErrExhausted
	}
	return s, nil
}

func (r *Redis) Delete(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, keyFor(token)).Err()
}

var _ Store = (*Redis)(nil)
