// internal/common/partner/token.go
package partner

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultTokenTTL applies when the backend sends an expiry we cannot parse.
const defaultTokenTTL = 10 * time.Minute

// FetchFunc obtains a fresh partner token and its absolute expiry.
type FetchFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenCache holds the process-wide partner token. Concurrent callers that
// find it missing or expired share a single fetch.
type TokenCache struct {
	fetch FetchFunc
	skew  time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenCache refreshes skew before the reported expiry.
func NewTokenCache(fetch FetchFunc, skew time.Duration) *TokenCache {
	return &TokenCache{
		fetch: fetch,
		skew:  skew,
		now:   time.Now,
	}
}

// Token returns the cached token or fetches a new one.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	ch := c.group.DoChan("partner-token", func() (interface{}, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		// The fetch outlives any single caller so that a cancelled waiter
		// does not fail the others sharing it.
		token, expiresAt, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = token
		c.expiresAt = expiresAt
		c.mu.Unlock()
		return token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached token, e.g. after a 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Add(c.skew).Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

// parseExpiry accepts an RFC 3339 string, a date-time without zone, or a
// unix timestamp in seconds or milliseconds (number or numeric string).
func parseExpiry(raw json.RawMessage, now time.Time) time.Time {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return now.Add(defaultTokenTTL)
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}

	return now.Add(defaultTokenTTL)
}
