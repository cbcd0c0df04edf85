// Package ratelimit implements a fixed-window request counter keyed by
// client address.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 40
	DefaultWindow      = 60 * time.Second
)

type entry struct {
	count       int
	windowStart time.Time
}

// Limiter admits at most max requests per key in each window. The zero value
// is not usable; call New.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]entry
	max     int
	window  time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New returns a limiter. Non-positive values fall back to the defaults.
func New(max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		entries: make(map[string]entry),
		max:     max,
		window:  window,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Max returns the per-window request budget.
func (l *Limiter) Max() int {
	return l.max
}

// Allow records one request for key at now. When the request is rejected the
// entry is left unchanged and retryAfter is the time until its window resets.
func (l *Limiter) Allow(key string, now time.Time) (allowed bool, retryAfter time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	switch {
	case !ok, now.Sub(e.windowStart) > l.window:
		l.entries[key] = entry{count: 1, windowStart: now}
		return true, 0
	case e.count < l.max:
		e.count++
		l.entries[key] = e
		return true, 0
	default:
		retryAfter = l.window - now.Sub(e.windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}
}

// Sweep drops entries whose window has elapsed and returns how many it removed.
func (l *Limiter) Sweep(now time.Time) int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.windowStart) > l.window {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start sweeps once per window on a background goroutine until Stop.
func (l *Limiter) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Stop ends the sweep goroutine and waits for it to exit. It is safe to call
// without Start and more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	started := true
	l.startOnce.Do(func() {
		started = false
	})
	if started {
		<-l.done
	}
}

func (l *Limiter) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}
