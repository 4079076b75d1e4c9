// Package token caches the gateway's short-lived OAuth bearer credential.
package token

import (
	"context"
	"sync"
	"time"

	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"golang.org/x/sync/singleflight"
)

// safetyMargin is subtracted from the expiry so a token is never used right
// at its deadline.
const safetyMargin = 30 * time.Second

// Cache is the only shared mutable in-process state in the engine. Refresh
// is single-flight: callers arriving during an in-flight OAuth exchange wait
// for its result instead of issuing their own.
type Cache struct {
	auth   gatewaydomain.Authenticator
	now    func() time.Time
	margin time.Duration

	group singleflight.Group

	mu   sync.Mutex
	cred gatewaydomain.Credential
}

func NewCache(auth gatewaydomain.Authenticator) *Cache {
	return &Cache{
		auth:   auth,
		now:    time.Now,
		margin: safetyMargin,
	}
}

// Token returns the cached bearer token, refreshing it via the OAuth
// exchange when it is missing or within the safety margin of expiry.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	result, err, _ := c.group.Do("token", func() (any, error) {
		// a caller that queued behind the refresh may find a fresh token
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		cred, err := c.auth.Authenticate(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.cred = cred
		c.mu.Unlock()
		return cred.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Cache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred.AccessToken == "" {
		return "", false
	}
	if !c.now().Before(c.cred.ExpiresAt.Add(-c.margin)) {
		return "", false
	}
	return c.cred.AccessToken, true
}
