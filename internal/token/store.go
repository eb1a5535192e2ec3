// Package token caches short-lived upstream credentials and serializes
// their renewal across workers.
//
// Every worker that needs a bearer credential reads the shared cache first.
// On a miss, a short-TTL lease elects a single renewer cluster-wide; the
// others back off and re-read the cache. The lease self-expires, so a
// crashed renewer never blocks renewal for longer than the lease TTL.
package token

import (
	"context"
	"errors"
	"strings"
	"time"
)

// safetyMargin is subtracted from the TTL advertised by the upstream so a
// cached token always expires locally before it expires upstream.
const safetyMargin = 60 * time.Second

// minTokenTTL is the floor applied after the safety margin, so very short
// upstream TTLs still produce a cacheable token.
const minTokenTTL = 60 * time.Second

// ErrLeaseHeld is returned by Manager when the renewal lease stayed with
// another worker for the whole retry budget and no token ever appeared in
// the cache.
var ErrLeaseHeld = errors.New("token: renewal lease held by another worker")

// Store is the persistence contract for cached tokens and renewal leases,
// keyed by integration scope (e.g. "FACTA").
type Store interface {
	// GetToken returns the cached token for scope, or "" when the cache has
	// no valid entry.
	GetToken(ctx context.Context, scope string) (string, error)

	// SaveToken caches token for scope. ttl is the validity advertised by
	// the upstream; implementations apply EffectiveTTL before storing.
	SaveToken(ctx context.Context, scope, token string, ttl time.Duration) error

	// AcquireLease attempts to take the renewal lease for scope on behalf of
	// owner. It is atomic: exactly one concurrent caller observes true.
	AcquireLease(ctx context.Context, scope, owner string, ttl time.Duration) (bool, error)

	// ReleaseLease releases the lease if it is still owned by owner.
	// Releasing a missing or stolen lease is not an error.
	ReleaseLease(ctx context.Context, scope, owner string) error
}

// EffectiveTTL converts the TTL advertised by an upstream into the TTL
// actually used for caching: the safety margin is subtracted, floored at
// minTokenTTL.
func EffectiveTTL(advertised time.Duration) time.Duration {
	ttl := advertised - safetyMargin
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	return ttl
}

// NormalizeScope canonicalizes a scope name for keying.
func NormalizeScope(scope string) string {
	return strings.ToUpper(strings.TrimSpace(scope))
}
