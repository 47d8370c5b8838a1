// Package auth caches acquired tokens per (tenant, scopes, client) key
// so concurrent requesters do not each trigger a separate interactive
// authentication prompt.
package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Key identifies one cached token. Scopes are sorted and joined so the
// key is canonical regardless of request order.
type Key struct {
	Tenant   string
	Scopes   string
	ClientID string
}

// NewKey builds a canonical cache key.
func NewKey(tenant, clientID string, scopes []string) Key {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return Key{Tenant: tenant, Scopes: strings.Join(sorted, " "), ClientID: clientID}
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// Cache is the process-lifetime token cache. Each key carries its own
// mutex, created on demand: only the first requester for a key waits on
// the external flow; the rest reuse its result once available.
type Cache struct {
	mu     sync.Mutex // guards locks and tokens maps
	locks  map[Key]*sync.Mutex
	tokens map[Key]cachedToken

	// expirySlack is subtracted from the token expiry so a token about
	// to lapse is reacquired instead of handed out.
	expirySlack time.Duration

	now func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		locks:       make(map[Key]*sync.Mutex),
		tokens:      make(map[Key]cachedToken),
		expirySlack: 2 * time.Minute,
		now:         time.Now,
	}
}

// Factory acquires a fresh token, possibly via a long-running
// interactive flow that streams prompts to the operator.
type Factory func(ctx context.Context) (string, error)

// GetOrAcquire returns the cached token for key, invoking factory under
// the per-key lock when no valid token is cached.
func (c *Cache) GetOrAcquire(ctx context.Context, key Key, factory Factory) (string, error) {
	keyLock := c.lockFor(key)
	keyLock.Lock()
	defer keyLock.Unlock()

	if token, ok := c.lookup(key); ok {
		return token, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := factory(ctx)
	if err != nil {
		return "", err
	}
	c.store(key, value)
	return value, nil
}

func (c *Cache) lockFor(key Key) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

func (c *Cache) lookup(key Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[key]
	if !ok {
		return "", false
	}
	if !token.expiresAt.IsZero() && c.now().After(token.expiresAt.Add(-c.expirySlack)) {
		delete(c.tokens, key)
		return "", false
	}
	return token.value, true
}

func (c *Cache) store(key Key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = cachedToken{value: value, expiresAt: tokenExpiry(value)}
}

// tokenExpiry reads the exp claim without verifying the signature; this
// process is not the token's audience, it only needs the lifetime. A
// token that does not parse as a JWT gets no expiry and is cached for
// the remainder of the process.
func tokenExpiry(value string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(value, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
