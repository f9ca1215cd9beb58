// Package ratelimiter keeps one token bucket per key (a subject id or an IP).
package ratelimiter

import (
	"sync"
	"time"
)

// bucket is a token bucket refilled continuously at rate tokens per second.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	expiry     *time.Timer
	dead       bool // removed from the map; callers holding it must look up again
}

// Limiter hands out tokens per key. Buckets idle for longer than ttl are
// dropped.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	rate     float64
	capacity float64
	ttl      time.Duration
	now      func() time.Time
}

func New(rate float64, capacity int, ttl time.Duration) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: float64(capacity),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow takes a token from key's bucket and reports whether there was one.
func (l *Limiter) Allow(key string) bool {
	for {
		b := l.bucket(key)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		allowed := l.take(b)
		b.mu.Unlock()
		return allowed
	}
}

// take refills b and spends one token. The caller holds b.mu.
func (l *Limiter) take(b *bucket) bool {
	now := l.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = &bucket{tokens: l.capacity, lastRefill: l.now()}
	b.expiry = time.AfterFunc(l.ttl, func() { l.expire(key, b) })
	l.buckets[key] = b
	return b
}

// expire drops b once it has been idle for ttl, otherwise re-arms its timer
// for the remainder. Both locks are held so no caller can spend a token from
// a bucket that is no longer in the map.
func (l *Limiter) expire(key string, b *bucket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	if idle := l.now().Sub(b.lastRefill); idle < l.ttl {
		b.expiry.Reset(l.ttl - idle)
		return
	}
	b.dead = true
	if l.buckets[key] == b {
		delete(l.buckets, key)
	}
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Stop cancels every expiry timer.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.buckets {
		b.expiry.Stop()
	}
}
