package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emprestedigital/creditbot/internal/observability"
)

// RenewFunc performs one upstream credential renewal and returns the new
// token together with the validity the upstream advertised for it.
type RenewFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// Manager implements the single-flight credential algorithm on top of a
// Store: cache fast path, lease-elected renewal, bounded backoff for losers.
type Manager struct {
	store  Store
	logger *slog.Logger

	leaseTTL    time.Duration
	backoff     time.Duration
	maxAttempts int
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLeaseTTL sets how long the renewal lease is held before it self-expires.
func WithLeaseTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.leaseTTL = ttl }
}

// WithBackoff sets the fixed delay a worker waits after losing the lease
// before re-reading the cache.
func WithBackoff(d time.Duration) ManagerOption {
	return func(m *Manager) { m.backoff = d }
}

// WithMaxAttempts bounds the number of cache-read/lease rounds before
// GetValidToken gives up with ErrLeaseHeld.
func WithMaxAttempts(n int) ManagerOption {
	return func(m *Manager) { m.maxAttempts = n }
}

// NewManager creates a Manager with sensible defaults: 10s lease, 2s
// backoff, 5 attempts. If logger is nil, slog.Default() is used.
func NewManager(store Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:       store,
		logger:      logger,
		leaseTTL:    10 * time.Second,
		backoff:     2 * time.Second,
		maxAttempts: 5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetValidToken returns a valid credential for scope, renewing it via renew
// when the cache is empty. At most one renewal runs per scope cluster-wide:
// the worker that wins the lease renews and caches; the rest back off and
// retry the whole procedure, bounded by the configured attempt count.
//
// Renewal failures are propagated, never cached.
func (m *Manager) GetValidToken(ctx context.Context, scope string, renew RenewFunc) (string, error) {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		tok, err := m.store.GetToken(ctx, scope)
		if err != nil {
			return "", err
		}
		if tok != "" {
			return tok, nil
		}

		owner := uuid.NewString()
		won, err := m.store.AcquireLease(ctx, scope, owner, m.leaseTTL)
		if err != nil {
			return "", err
		}

		if won {
			return m.renewUnderLease(ctx, scope, owner, renew)
		}

		m.logger.InfoContext(ctx, "token_renewal_waiting",
			slog.String("scope", scope),
			slog.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.backoff):
		}
	}

	return "", fmt.Errorf("%w (scope=%s, attempts=%d)", ErrLeaseHeld, scope, m.maxAttempts)
}

// renewUnderLease runs the upstream renewal while holding the lease. The
// lease is released on every path, including renewal failure, so a broken
// upstream does not pin the lease until expiry.
func (m *Manager) renewUnderLease(ctx context.Context, scope, owner string, renew RenewFunc) (string, error) {
	defer func() {
		if err := m.store.ReleaseLease(ctx, scope, owner); err != nil {
			m.logger.WarnContext(ctx, "token_lease_release_failed",
				slog.String("scope", scope),
				slog.Any("error", err),
			)
		}
	}()

	m.logger.InfoContext(ctx, "token_renewal_start", slog.String("scope", scope))

	tok, ttl, err := renew(ctx)
	if err != nil {
		observability.TokenRenewals.WithLabelValues(scope, "error").Inc()
		m.logger.ErrorContext(ctx, "token_renewal_failed",
			slog.String("scope", scope),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("token renewal %s: %w", scope, err)
	}
	observability.TokenRenewals.WithLabelValues(scope, "ok").Inc()

	if err := m.store.SaveToken(ctx, scope, tok, ttl); err != nil {
		// The token itself is good; hand it to the caller even though the
		// next worker will have to renew again.
		m.logger.WarnContext(ctx, "token_cache_save_failed",
			slog.String("scope", scope),
			slog.Any("error", err),
		)
		return tok, nil
	}

	m.logger.InfoContext(ctx, "token_renewed",
		slog.String("scope", scope),
		slog.Duration("effective_ttl", EffectiveTTL(ttl)),
	)
	return tok, nil
}
