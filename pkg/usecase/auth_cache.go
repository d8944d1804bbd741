package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
)

const (
	authCacheTTL = 5 * time.Minute
)

type cachedUser struct {
	user      *auth.User
	expiresAt time.Time
}

// authCache keeps verified tokens keyed by their SHA-256 digest
type authCache struct {
	cache sync.Map
}

func newAuthCache() *authCache {
	return &authCache{}
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func (c *authCache) get(rawToken string) (*auth.User, bool) {
	key := tokenKey(rawToken)
	val, ok := c.cache.Load(key)
	if !ok {
		return nil, false
	}

	cached := val.(*cachedUser)
	if time.Now().After(cached.expiresAt) {
		c.cache.Delete(key)
		return nil, false
	}

	return cached.user, true
}

// set caches user for authCacheTTL, never beyond the token's own expiry
func (c *authCache) set(rawToken string, user *auth.User) {
	expiresAt := time.Now().Add(authCacheTTL)
	if !user.ExpiresAt.IsZero() && user.ExpiresAt.Before(expiresAt) {
		expiresAt = user.ExpiresAt
	}
	c.cache.Store(tokenKey(rawToken), &cachedUser{
		user:      user,
		expiresAt: expiresAt,
	})
}
