// Package ratelimit provides a per-key token-bucket admission gate, used by
// cmd/distributor as an ingress defense-in-depth step layered in front of
// the distributor subsystem's own overload shedding: where the distributor
// sheds load only once a serializer crosses its high-water mark, this
// package caps how fast any single source address can push work at the
// pool in the first place.
package ratelimit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limiter implements a token bucket rate limiter with per-key tracking,
// backed by golang.org/x/time/rate rather than hand-rolled bucket
// arithmetic.
type Limiter struct {
	rps        float64
	burst      int
	logger     *logrus.Logger
	cleanupTTL time.Duration

	mu      sync.Mutex
	clients map[string]*clientState
}

type clientState struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	blocked    bool
	blockUntil time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled is not read by SIPLimiter; SIPEnabled switches it on and off.
	Enabled bool `json:"enabled" env:"RATE_LIMIT_ENABLED" default:"false"`

	// RequestsPerSecond is not read by SIPLimiter, which sizes its buckets
	// from the SIP* fields.
	RequestsPerSecond float64 `json:"requests_per_second" env:"RATE_LIMIT_RPS" default:"100"`

	// BurstSize is not read by SIPLimiter, which sizes its buckets from the
	// SIP* fields.
	BurstSize int `json:"burst_size" env:"RATE_LIMIT_BURST" default:"200"`

	// BlockDuration is not read: nothing in this package blocks a client on
	// its own, and Limiter.Block takes its duration as an argument.
	BlockDuration time.Duration `json:"block_duration" env:"RATE_LIMIT_BLOCK_DURATION" default:"1m"`

	// CleanupInterval is not read: a Limiter sweeps every 5 minutes and
	// drops clients unseen for 10 minutes.
	CleanupInterval time.Duration `json:"cleanup_interval" env:"RATE_LIMIT_CLEANUP_INTERVAL" default:"5m"`

	// WhitelistedIPs are IPs that bypass rate limiting
	WhitelistedIPs []string `json:"whitelisted_ips" env:"RATE_LIMIT_WHITELIST_IPS"`

	// SIP-specific settings
	SIPEnabled           bool    `json:"sip_enabled" env:"RATE_LIMIT_SIP_ENABLED" default:"false"`
	SIPInvitesPerSecond  float64 `json:"sip_invites_per_second" env:"RATE_LIMIT_SIP_INVITE_RPS" default:"10"`
	SIPInviteBurst       int     `json:"sip_invite_burst" env:"RATE_LIMIT_SIP_INVITE_BURST" default:"50"`
	SIPRequestsPerSecond float64 `json:"sip_requests_per_second" env:"RATE_LIMIT_SIP_RPS" default:"100"`
	SIPRequestBurst      int     `json:"sip_request_burst" env:"RATE_LIMIT_SIP_REQUEST_BURST" default:"200"`
}

// DefaultConfig returns sensible defaults for rate limiting.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              false,
		RequestsPerSecond:    100,
		BurstSize:            200,
		BlockDuration:        time.Minute,
		CleanupInterval:      5 * time.Minute,
		WhitelistedIPs:       []string{"127.0.0.1", "::1"},
		SIPEnabled:           false,
		SIPInvitesPerSecond:  10,
		SIPInviteBurst:       50,
		SIPRequestsPerSecond: 100,
		SIPRequestBurst:      200,
	}
}

// NewLimiter creates a rate limiter allowing rps sustained requests per
// second per key, with burst headroom.
func NewLimiter(rps float64, burst int, logger *logrus.Logger) *Limiter {
	l := &Limiter{
		rps:        rps,
		burst:      burst,
		logger:     logger,
		cleanupTTL: 10 * time.Minute,
		clients:    make(map[string]*clientState),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) stateFor(key string, now time.Time) *clientState {
	st, ok := l.clients[key]
	if !ok {
		st = &clientState{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[key] = st
	}
	st.lastSeen = now
	return st
}

// Allow checks if a single request from key should be allowed.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN checks if n requests from key should be allowed.
func (l *Limiter) AllowN(key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	st := l.stateFor(key, now)
	if st.blocked && now.Before(st.blockUntil) {
		return false
	}
	st.blocked = false
	return st.limiter.AllowN(now, n)
}

// Block temporarily blocks a client regardless of remaining tokens.
func (l *Limiter) Block(key string, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stateFor(key, time.Now())
	st.blocked = true
	st.blockUntil = time.Now().Add(duration)

	if l.logger != nil {
		l.logger.WithFields(logrus.Fields{
			"key":         key,
			"block_until": st.blockUntil,
		}).Warn("Client blocked due to rate limit violation")
	}
}

// IsBlocked checks if a client is currently blocked.
func (l *Limiter) IsBlocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.clients[key]
	if !ok {
		return false
	}
	return st.blocked && time.Now().Before(st.blockUntil)
}

// GetClientCount returns the number of tracked clients.
func (l *Limiter) GetClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Reset removes all tracked clients.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string]*clientState)
}

// cleanup periodically removes stale client entries.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, st := range l.clients {
			if now.Sub(st.lastSeen) > l.cleanupTTL && (!st.blocked || now.After(st.blockUntil)) {
				delete(l.clients, key)
			}
		}
		l.mu.Unlock()
	}
}
