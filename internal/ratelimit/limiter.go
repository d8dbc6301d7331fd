package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Rejection reasons. Callers translate these into user-facing messages.
var (
	ErrTooManyAttempts = errors.New("ratelimit: too many attempts from this address")
	ErrCooldown        = errors.New("ratelimit: email cooldown in effect")
	ErrTooManyEmails   = errors.New("ratelimit: too many emails for this address")
)

// Policy holds the tunables. The zero value is not useful; start from
// DefaultPolicy.
type Policy struct {
	Window        time.Duration
	IPMax         int
	EmailMax      int
	EmailCooldown time.Duration
}

// DefaultPolicy: 20 requests per IP and 5 sends per address every
// 10 minutes, at most one send per address per minute.
func DefaultPolicy() Policy {
	return Policy{
		Window:        10 * time.Minute,
		IPMax:         20,
		EmailMax:      5,
		EmailCooldown: time.Minute,
	}
}

// Limiter applies Policy to two independent stores, one keyed by client IP
// and one keyed by lowercased email address.
//
// Admit is serialized by mu so the read-compare-increment sequence cannot
// interleave within one process. Across processes (RedisStore) the count is
// approximate: two instances may both pass the check before either hits.
type Limiter struct {
	mu     sync.Mutex
	policy Policy
	ips    Store
	emails Store
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter over the given stores.
func NewLimiter(policy Policy, ips, emails Store, opts ...Option) *Limiter {
	l := &Limiter{
		policy: policy,
		ips:    ips,
		emails: emails,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewMemoryLimiter creates a Limiter backed by two MemoryStores.
func NewMemoryLimiter(policy Policy, opts ...Option) *Limiter {
	return NewLimiter(policy, NewMemoryStore(policy.Window), NewMemoryStore(policy.Window), opts...)
}

// CheckIP rejects with ErrTooManyAttempts when ip has used up its window.
// It does not count the request.
func (l *Limiter) CheckIP(ctx context.Context, ip string) error {
	b, err := l.ips.Peek(ctx, ipKey(ip), l.now())
	if err != nil {
		return fmt.Errorf("ratelimit: reading ip bucket: %w", err)
	}
	if b.Count >= l.policy.IPMax {
		return ErrTooManyAttempts
	}
	return nil
}

// Admit decides whether a magic link may be sent to email on behalf of ip.
//
// Order of checks:
//  1. IP cap (ErrTooManyAttempts)
//  2. email cooldown since the last accepted send (ErrCooldown), checked
//     before the cap so a burst is told to wait rather than that it is done
//  3. email cap (ErrTooManyEmails)
//
// Only an accepted request increments the counters.
func (l *Limiter) Admit(ctx context.Context, ip, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if err := l.CheckIP(ctx, ip); err != nil {
		return err
	}

	key := EmailKey(email)
	eb, err := l.emails.Peek(ctx, key, now)
	if err != nil {
		return fmt.Errorf("ratelimit: reading email bucket: %w", err)
	}
	if !eb.LastAt.IsZero() && now.Sub(eb.LastAt) < l.policy.EmailCooldown {
		return ErrCooldown
	}
	if eb.Count >= l.policy.EmailMax {
		return ErrTooManyEmails
	}

	if _, err := l.ips.Hit(ctx, ipKey(ip), now); err != nil {
		return fmt.Errorf("ratelimit: counting ip: %w", err)
	}
	if _, err := l.emails.Hit(ctx, key, now); err != nil {
		return fmt.Errorf("ratelimit: counting email: %w", err)
	}
	return nil
}

// Sweep removes expired buckets from both stores.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	now := l.now()
	a, err := l.ips.Sweep(ctx, now)
	if err != nil {
		return a, fmt.Errorf("ratelimit: sweeping ip buckets: %w", err)
	}
	b, err := l.emails.Sweep(ctx, now)
	if err != nil {
		return a + b, fmt.Errorf("ratelimit: sweeping email buckets: %w", err)
	}
	return a + b, nil
}

// Run sweeps every interval until ctx is cancelled. It is meant to be
// started in its own goroutine.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := l.Sweep(ctx)
			if err != nil {
				logger.Warn("rate limit sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Debug("rate limit buckets swept", slog.Int("removed", removed))
			}
		}
	}
}

// EmailKey normalizes an address into its bucket key.
func EmailKey(email string) string {
	return strings.ToLower(email)
}

func ipKey(ip string) string {
	if ip == "" {
		return "unknown"
	}
	return ip
}
