// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

/*
Package cache provides the namespaced volatile key-value store for auth state.

Every key follows the taxonomy "aegis:<category>:<identifier>" so that OTP
codes, attempt counters, resend locks, and reset exchange tokens from one
Aegis deployment can share a Redis instance with other workloads without
collisions.

Core Responsibilities:

  - Volatility: All entries carry a TTL; nothing in this store is durable.
  - Atomicity: Consume-once semantics (GETDEL) and create-if-absent locks
    (SETNX) are delegated to single Redis commands, never read-then-write.
  - Counters: Attempt counters increment atomically with a TTL bound to the
    first increment, so a counter never outlives its challenge window.
*/
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkrogh/aegis/internal/platform/constants"
)

// Redis is the go-redis backed implementation of the volatile store.
//
// The zero value is not usable; construct with [New].
type Redis struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Key builds the fully-namespaced key for a category/identifier pair.
func Key(category, identifier string) string {
	return constants.CacheKeyPrefix + category + ":" + identifier
}

/*
Get retrieves the value stored for a category/identifier pair.

Returns:
  - string: The stored value (empty when absent)
  - bool: Whether the key existed
  - error: Connectivity failures only; an absent key is not an error
*/
func (r *Redis) Get(ctx context.Context, category, identifier string) (string, bool, error) {
	value, err := r.client.Get(ctx, Key(category, identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache: get %s failed: %w", category, err)
	}
	return value, true, nil
}

// Set stores a value with the given TTL, replacing any previous entry.
func (r *Redis) Set(ctx context.Context, category, identifier, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, Key(category, identifier), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s failed: %w", category, err)
	}
	return nil
}

/*
SetIfAbsent stores a value only when no entry exists yet.

Used for resend locks: the first sender wins the lock for the TTL window
and later senders observe ok=false without learning anything else.

Returns:
  - bool: Whether the value was stored (false when an entry already existed)
  - error: Connectivity failures
*/
func (r *Redis) SetIfAbsent(ctx context.Context, category, identifier, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, Key(category, identifier), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: setnx %s failed: %w", category, err)
	}
	return ok, nil
}

/*
GetDel atomically fetches and deletes an entry.

This is the consume-exactly-once primitive behind reset exchange tokens:
two concurrent consumers of the same token cannot both observe it.
*/
func (r *Redis) GetDel(ctx context.Context, category, identifier string) (string, bool, error) {
	value, err := r.client.GetDel(ctx, Key(category, identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache: getdel %s failed: %w", category, err)
	}
	return value, true, nil
}

// Delete removes an entry. Deleting an absent key is a no-op.
func (r *Redis) Delete(ctx context.Context, category, identifier string) error {
	if err := r.client.Del(ctx, Key(category, identifier)).Err(); err != nil {
		return fmt.Errorf("cache: delete %s failed: %w", category, err)
	}
	return nil
}

/*
Increment atomically increments a counter, binding the TTL on first use.

The TTL is attached only when the increment created the key, so repeated
increments never extend the counter's life beyond its original window.

Returns:
  - int64: The counter value after incrementing
  - error: Connectivity failures
*/
func (r *Redis) Increment(ctx context.Context, category, identifier string, ttl time.Duration) (int64, error) {
	key := Key(category, identifier)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: incr %s failed: %w", category, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("cache: expire %s failed: %w", category, err)
		}
	}

	return count, nil
}
