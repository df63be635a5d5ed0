// Package statestore keeps pending OAuth authorizations keyed by their CSRF
// nonce until the provider calls back. Entries are single use.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/cache"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "oauth:state:"

// Memory is the in-process store. State does not survive a restart and is
// not shared between replicas; use Redis when running more than one.
type Memory struct {
	items *cache.InMemory[domain.PendingAuthorization]
}

// NewMemory creates an in-process store.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{items: cache.New[domain.PendingAuthorization](defaultTTL)}
}

// Save stores p under nonce for ttl.
func (m *Memory) Save(_ context.Context, nonce string, p *domain.PendingAuthorization, ttl time.Duration) error {
	m.items.SetWithTTL(keyPrefix+nonce, *p, ttl)
	return nil
}

// Consume returns and deletes the entry. Missing or expired → nil, nil.
func (m *Memory) Consume(_ context.Context, nonce string) (*domain.PendingAuthorization, error) {
	p, ok := m.items.Take(keyPrefix + nonce)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutine.
func (m *Memory) Close() error {
	m.items.Close()
	return nil
}

// Redis stores pending authorizations in Redis with native expiry.
type Redis struct {
	client *redis.Client
}

// NewRedis connects using a redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("statestore: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("statestore: redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Save stores p under nonce for ttl.
func (r *Redis) Save(ctx context.Context, nonce string, p *domain.PendingAuthorization, ttl time.Duration) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+nonce, b, ttl).Err()
}

// Consume atomically reads and deletes the entry (GETDEL).
func (r *Redis) Consume(ctx context.Context, nonce string) (*domain.PendingAuthorization, error) {
	b, err := r.client.GetDel(ctx, keyPrefix+nonce).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: getdel: %w", err)
	}
	var p domain.PendingAuthorization
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("statestore: decode: %w", err)
	}
	return &p, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
