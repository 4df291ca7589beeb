// Package ratelimit provides per-client, per-endpoint request limiting backed
// by golang.org/x/time/rate token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket // client:path:method -> bucket
	config      *Config
	now         func() time.Time
	cleanupStop chan struct{}
	stopOnce    sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    300,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			EndpointConfigs: DefaultEndpointConfigs(),
		}
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
		now:     time.Now,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupStop = make(chan struct{})
		go l.cleanup(config.CleanupInterval)
	}

	return l
}

// Allow checks whether a request from clientID to endpoint is allowed and
// consumes a token if so.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	endpointConfig := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if endpointConfig == nil {
		endpointConfig = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}
	if endpointConfig.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	lim := l.getLimiter(clientID+":"+endpoint+":"+method, endpointConfig, now)

	info := Info{Limit: endpointConfig.Limit}
	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
		r.CancelAt(now)
		info.RetryAfter = delay
		if !r.OK() {
			info.RetryAfter = endpointConfig.Window
		}
	} else {
		info.Allowed = true
	}

	tokens := lim.TokensAt(now)
	info.Remaining = max(0, int(tokens))
	info.ResetTime = now
	if missing := float64(lim.Burst()) - tokens; missing > 0 {
		info.ResetTime = now.Add(time.Duration(missing / float64(lim.Limit()) * float64(time.Second)))
	}

	return info.Allowed, info
}

func (l *Limiter) getLimiter(key string, cfg *EndpointConfig, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		window := cfg.Window
		if window <= 0 {
			window = time.Minute
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Limit
		}
		every := window / time.Duration(cfg.Limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), burst)}
		l.buckets[key] = b
	}
	b.lastAccess = now
	return b.limiter
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanupBuckets(time.Hour)
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets idle for longer than maxIdle.
func (l *Limiter) cleanupBuckets(maxIdle time.Duration) {
	cutoff := l.now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
