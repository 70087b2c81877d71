package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/lattice-run/lattice-host/pkg/types"
	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes the result of a successful token validation so that
// the host re-checking the same token (add_actor, replace_actor) does
// not re-verify the signature every time. It is a pure performance optimization: a
// cache miss always falls back to Validate, and nothing in the host
// treats the cache as a source of truth.
type Cache struct {
	underlying *gocache.Cache
}

// NewCache creates a claims cache whose entries expire after ttl and
// are swept every cleanupInterval.
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{underlying: gocache.New(ttl, cleanupInterval)}
}

// Get returns a cached, previously validated claims set for token, if
// present and unexpired.
func (c *Cache) Get(token string) (*types.ActorClaims, bool) {
	v, ok := c.underlying.Get(tokenKey(token))
	if !ok {
		return nil, false
	}
	claims, ok := v.(*types.ActorClaims)
	return claims, ok
}

// Put records the validated claims for token using the cache's
// default TTL.
func (c *Cache) Put(token string, claims *types.ActorClaims) {
	c.underlying.SetDefault(tokenKey(token), claims)
}

// ValidateCached is Validate with a cache in front of it.
func ValidateCached(cache *Cache, token string) (*types.ActorClaims, error) {
	if cache != nil {
		if c, ok := cache.Get(token); ok {
			return c, nil
		}
	}
	c, err := Validate(token)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Put(token, c)
	}
	return c, nil
}

// ValidateForActorCached is ValidateForActor with a cache in front of
// the signature check. The subject/pk comparison itself is cheap
// enough to redo on every call; only the signature verification is
// worth memoizing.
func ValidateForActorCached(cache *Cache, token, pk string) (*types.ActorClaims, error) {
	c, err := ValidateCached(cache, token)
	if err != nil {
		return nil, err
	}
	if c.Subject != pk {
		return nil, errKind(kindFormat, "token subject %q does not match actor public key %q", c.Subject, pk)
	}
	return c, nil
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
