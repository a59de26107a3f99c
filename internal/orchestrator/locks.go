package orchestrator

import (
	"sync"
	"time"
)

const lockSweepThreshold = 10000

// userLocks serializes turns per user so history reads never race
// history writes. Entries age out once the table grows past the
// threshold; an entry currently held is never removed.
type userLocks struct {
	mu      sync.Mutex
	entries map[string]*userLock
	now     func() time.Time
}

type userLock struct {
	mu       sync.Mutex
	holders  int
	released time.Time
}

func newUserLocks(now func() time.Time) *userLocks {
	if now == nil {
		now = time.Now
	}
	return &userLocks{entries: make(map[string]*userLock), now: now}
}

// acquire blocks until the user's lock is held and returns the release
// function.
func (l *userLocks) acquire(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= lockSweepThreshold {
			l.sweepLocked()
		}
		e = &userLock{}
		l.entries[key] = e
	}
	e.holders++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.holders--
		e.released = l.now()
		l.mu.Unlock()
	}
}

// sweepLocked drops idle entries older than ten minutes. Caller holds
// l.mu.
func (l *userLocks) sweepLocked() {
	cutoff := l.now().Add(-10 * time.Minute)
	for k, e := range l.entries {
		if e.holders == 0 && e.released.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
