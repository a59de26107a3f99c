// Package limits gates billable requests twice: an in-process spam
// throttle rejecting bursts under three seconds apart, then the
// persistent per-KST-day quota by entitlement tier. Tier resolution from
// subscription, credits and the profile premium flag also lives here.
package limits

import (
	"sync"
	"time"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/metrics"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

const (
	// MinInterval between two requests from the same user.
	MinInterval = 3 * time.Second
	// throttleCapacity bounds the per-user map; when exceeded, the oldest
	// half of entries is swept. The guarantee is per-process only.
	throttleCapacity = 1000
)

type throttleKey struct {
	platform models.Platform
	user     string
}

// Throttle is the in-process spam gate.
type Throttle struct {
	mu   sync.Mutex
	last map[throttleKey]time.Time
}

// NewThrottle builds an empty spam gate.
func NewThrottle() *Throttle {
	return &Throttle{last: make(map[throttleKey]time.Time)}
}

// Allow records the request time and passes, or rejects with a
// RateLimited error whose RetryAfter is rounded up to whole seconds.
func (t *Throttle) Allow(platform models.Platform, user string, now time.Time) error {
	key := throttleKey{platform: platform, user: user}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.last[key]; ok {
		if wait := MinInterval - now.Sub(prev); wait > 0 {
			metrics.ThrottleRejections.WithLabelValues("spam").Inc()
			retry := wait.Truncate(time.Second)
			if retry < wait {
				retry += time.Second
			}
			return apperr.RateLimited(retry)
		}
	}

	if len(t.last) >= throttleCapacity {
		t.sweepLocked(now)
	}
	t.last[key] = now
	return nil
}

// sweepLocked drops entries older than the throttle window, then if the
// map is still full, the oldest half. Callers hold the mutex.
func (t *Throttle) sweepLocked(now time.Time) {
	for k, ts := range t.last {
		if now.Sub(ts) > MinInterval {
			delete(t.last, k)
		}
	}
	if len(t.last) < throttleCapacity {
		return
	}
	// Degenerate case: a thousand users within three seconds. Drop the
	// older half by timestamp median approximation.
	cutoff := now.Add(-MinInterval / 2)
	for k, ts := range t.last {
		if ts.Before(cutoff) {
			delete(t.last, k)
		}
	}
}

// Size reports the tracked-user count, for tests and health output.
func (t *Throttle) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
