// Package guard validates the resolved auth context and applies tier-based
// request throttling before a request reaches the provider registry. The
// guard is transport-agnostic: errors carry an HTTP status hint that the
// serving layer translates into a response.
package guard

import (
	"fmt"
	"sync"
	"time"
)

// Tier identifies a billing tier with its own request budget
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierTeam Tier = "team"
)

// AuthContext is the already-authenticated identity attached to a request.
// Authentication itself happens upstream; the guard only validates shape and
// quota.
type AuthContext struct {
	UserID string
	OrgID  string
	Tier   Tier
}

// Error is a guard rejection with an HTTP status hint
type Error struct {
	Status     int    // HTTP status hint: 401, 400 or 429
	Code       string // stable machine-readable reason
	Message    string
	RetryAfter time.Duration // nonzero only for rate-limit rejections
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Limits maps each tier to its requests-per-minute budget
type Limits map[Tier]int

// Guard applies auth-context validation and per-key sliding-window rate
// limiting. Requests are keyed by org when present, else by user, so seats
// of one organization share a budget.
type Guard struct {
	limits Limits

	mu       sync.Mutex
	requests map[string][]time.Time
}

// New creates a guard with the given tier limits
func New(limits Limits) *Guard {
	return &Guard{
		limits:   limits,
		requests: make(map[string][]time.Time),
	}
}

// Check validates the auth context and spends one request from the key's
// budget. A nil return means the request may proceed.
func (g *Guard) Check(auth AuthContext) error {
	if auth.UserID == "" {
		return &Error{Status: 401, Code: "unauthorized", Message: "missing user identity"}
	}

	limit, ok := g.limits[auth.Tier]
	if !ok {
		return &Error{Status: 400, Code: "invalid_tier", Message: fmt.Sprintf("unknown tier %q", auth.Tier)}
	}

	key := auth.UserID
	if auth.OrgID != "" {
		key = auth.OrgID
	}

	if !g.allow(key, limit) {
		return &Error{
			Status:     429,
			Code:       "rate_limited",
			Message:    fmt.Sprintf("tier %s allows %d requests per minute", auth.Tier, limit),
			RetryAfter: time.Minute,
		}
	}

	return nil
}

func (g *Guard) allow(key string, limit int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	valid := filterByTime(g.requests[key], cutoff)
	if len(valid) >= limit {
		g.requests[key] = valid
		return false
	}
	g.requests[key] = append(valid, now)
	return true
}

// Janitor evicts idle keys until ctx-free shutdown; call as a goroutine.
// Without it the window map grows with one entry per key ever seen.
func (g *Guard) Janitor(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.mu.Lock()
			cutoff := time.Now().Add(-time.Minute)
			for key, times := range g.requests {
				valid := filterByTime(times, cutoff)
				if len(valid) == 0 {
					delete(g.requests, key)
				} else {
					g.requests[key] = valid
				}
			}
			g.mu.Unlock()
		}
	}
}

func filterByTime(times []time.Time, cutoff time.Time) []time.Time {
	var result []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
