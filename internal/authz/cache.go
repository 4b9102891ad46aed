package authz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SearchCacheTTL bounds how long search results stay cached.
const SearchCacheTTL = 300 * time.Second

// cacheKeyLen truncates the content hash for readable, debuggable keys.
const cacheKeyLen = 16

// CacheKey derives a deterministic key for a query. The hash covers a
// canonical serialization of the normalized query (default limit applied,
// cache directives stripped), so structurally equal queries collide on
// purpose and any condition change produces a new key. The societe token is
// kept as a key prefix so invalidation is a prefix delete, not a scan of
// everything.
func CacheKey(namespace, societeID, scope string, q Query) string {
	normalized := q
	normalized.SkipCache = false
	if normalized.Limit == 0 {
		normalized.Limit = DefaultQueryLimit
	}
	envelope := struct {
		Scope string `json:"scope"`
		Query Query  `json:"query"`
	}{Scope: scope, Query: normalized}
	payload, err := json.Marshal(envelope)
	if err != nil {
		// Query is plain data; marshal cannot fail in practice.
		payload = []byte(fmt.Sprintf("%+v", envelope))
	}
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])[:cacheKeyLen]
	if societeID == "" {
		societeID = "global"
	}
	return fmt.Sprintf("%s:%s:%s", namespace, societeID, digest)
}

// QueryCache stores query results in Redis under tenant-scoped keys.
// Entries are pure derived data: last-write-wins under concurrency is fine.
type QueryCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewQueryCache constructs a cache helper. A nil client disables caching.
func NewQueryCache(client *redis.Client, namespace string, ttl time.Duration) *QueryCache {
	if namespace == "" {
		namespace = "authz:search"
	}
	if ttl <= 0 {
		ttl = SearchCacheTTL
	}
	return &QueryCache{client: client, namespace: namespace, ttl: ttl}
}

// Key derives the cache key for a query in this cache's namespace. Scope
// distinguishes universes (catalog search vs one principal's effective set)
// that would otherwise hash identical queries to the same entry.
func (c *QueryCache) Key(societeID, scope string, q Query) string {
	return CacheKey(c.namespace, societeID, scope, q)
}

// Get loads a cached result; a miss returns (nil, nil).
func (c *QueryCache) Get(ctx context.Context, key string) (*QueryResult, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var result QueryResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set stores a result under the key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, key string, result QueryResult) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// InvalidateSociete removes every cached result scoped to the societe. Any
// write touching role assignments or the permission catalog for a tenant
// must call this.
func (c *QueryCache) InvalidateSociete(ctx context.Context, societeID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if societeID == "" {
		societeID = "global"
	}
	pattern := fmt.Sprintf("%s:%s:*", c.namespace, societeID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
