package auth

import (
	"sync"
	"time"
)

// Limiter throttles requests per caller. Implementations must be safe
// for concurrent use.
type Limiter interface {
	Allow(c *Caller) error
}

// WindowLimiter enforces a fixed one-minute request budget per subject.
// The budget is resolved from the caller's tier; subjects share nothing,
// so one noisy caller cannot starve another.
type WindowLimiter struct {
	budgets  map[string]int // tier -> requests per minute
	fallback int            // budget for tiers without an entry

	mu      sync.Mutex
	windows map[string]*usageWindow // subject -> current window
}

type usageWindow struct {
	startedAt time.Time
	used      int
}

// NewWindowLimiter builds a limiter from per-tier budgets. fallback
// applies to callers whose tier has no entry; a budget <= 0 disables
// limiting for that tier.
func NewWindowLimiter(budgets map[string]int, fallback int) *WindowLimiter {
	return &WindowLimiter{
		budgets:  budgets,
		fallback: fallback,
		windows:  make(map[string]*usageWindow),
	}
}

// Allow charges one request against the caller's window. Returns
// ErrRateLimited when the window's budget is spent.
func (l *WindowLimiter) Allow(c *Caller) error {
	budget := l.fallback
	if b, ok := l.budgets[c.Tier]; ok {
		budget = b
	}
	if budget <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w := l.windows[c.Subject]
	if w == nil || now.Sub(w.startedAt) >= time.Minute {
		l.windows[c.Subject] = &usageWindow{startedAt: now, used: 1}
		l.pruneLocked(now)
		return nil
	}

	w.used++
	if w.used > budget {
		return ErrRateLimited
	}
	return nil
}

// pruneLocked drops windows that rolled over without a follow-up
// request, so idle subjects do not accumulate.
func (l *WindowLimiter) pruneLocked(now time.Time) {
	for subject, w := range l.windows {
		if now.Sub(w.startedAt) >= 2*time.Minute {
			delete(l.windows, subject)
		}
	}
}
