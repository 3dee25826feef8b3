// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// list.go caches rendered JSON responses of anonymous listing endpoints
// (posts, categories, tags, search). Entries are grouped by scope so a
// write can drop every cached variant of the listings it affects.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// listKeyPrefix is the Valkey key prefix for cached listings.
	listKeyPrefix = "list:"

	// DefaultListTTL bounds staleness for writes that bypass invalidation.
	DefaultListTTL = 2 * time.Minute
)

// Scopes group cached listings by what invalidates them.
const (
	ScopePosts      = "posts"
	ScopeCategories = "categories"
	ScopeTags       = "tags"
)

// ListCache stores listing responses in Valkey.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListCache creates a listing cache backed by the given Valkey client.
func NewListCache(client *redis.Client, ttl time.Duration) *ListCache {
	if ttl == 0 {
		ttl = DefaultListTTL
	}
	return &ListCache{client: client, ttl: ttl}
}

// Key returns the cache key of a listing request. The raw query string is
// hashed so arbitrary parameters map to a fixed-length key.
func Key(scope, rawQuery string) string {
	return listKeyPrefix + scope + ":" + strconv.FormatUint(xxhash.Sum64String(rawQuery), 16)
}

// Get returns the cached body for a listing. Misses and Valkey errors
// both report false.
func (lc *ListCache) Get(ctx context.Context, scope, rawQuery string) ([]byte, bool) {
	key := Key(scope, rawQuery)
	val, err := lc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("list cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("list cache hit", "key", key)
	return val, true
}

// Set stores a listing body with the configured TTL.
func (lc *ListCache) Set(ctx context.Context, scope, rawQuery string, body []byte) {
	key := Key(scope, rawQuery)
	if err := lc.client.Set(ctx, key, body, lc.ttl).Err(); err != nil {
		slog.Warn("list cache set error", "key", key, "error", err)
	}
}

// Invalidate removes every cached listing of the given scopes.
func (lc *ListCache) Invalidate(ctx context.Context, scopes ...string) {
	for _, scope := range scopes {
		lc.invalidate(ctx, listKeyPrefix+scope+":*")
	}
}

func (lc *ListCache) invalidate(ctx context.Context, pattern string) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := lc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("list cache scan error", "pattern", pattern, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := lc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("list cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Debug("list cache invalidated", "pattern", pattern, "deleted", deleted)
	}
}
