package ratelimit

import (
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// SIPMethod is the subset of SIP request methods the limiter treats
// differently from one another.
type SIPMethod string

const (
	SIPMethodINVITE   SIPMethod = "INVITE"
	SIPMethodACK      SIPMethod = "ACK"
	SIPMethodBYE      SIPMethod = "BYE"
	SIPMethodCANCEL   SIPMethod = "CANCEL"
	SIPMethodOPTIONS  SIPMethod = "OPTIONS"
	SIPMethodREGISTER SIPMethod = "REGISTER"
	SIPMethodOther    SIPMethod = "OTHER"
)

// SIPLimiter is the ingress admission gate the distributor's transport
// handler consults before a message ever reaches the pipeline: INVITE gets
// its own, stricter bucket (it is what drives dialog and serializer
// creation); REGISTER and OPTIONS are each tracked per-client-per-method so
// a burst of them can't eat into that client's general budget; everything
// else from a client shares that client's looser general bucket.
type SIPLimiter struct {
	inviteLimiter  *Limiter
	requestLimiter *Limiter
	cfg            *Config
	logger         *logrus.Logger

	mu              sync.RWMutex
	whitelistedIPs  map[string]bool
	whitelistedNets []*net.IPNet
	metricsCallback func(clientIP string, method SIPMethod, allowed bool)
}

// NewSIPLimiter builds the INVITE and general-request buckets from cfg and
// pre-parses its whitelist entries (bare IPs or CIDR blocks).
func NewSIPLimiter(cfg *Config, logger *logrus.Logger) *SIPLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &SIPLimiter{
		inviteLimiter:  NewLimiter(cfg.SIPInvitesPerSecond, cfg.SIPInviteBurst, logger),
		requestLimiter: NewLimiter(cfg.SIPRequestsPerSecond, cfg.SIPRequestBurst, logger),
		cfg:            cfg,
		logger:         logger,
		whitelistedIPs: make(map[string]bool),
	}

	for _, entry := range cfg.WhitelistedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, ipNet, err := net.ParseCIDR(entry); err == nil {
				s.whitelistedNets = append(s.whitelistedNets, ipNet)
			}
			continue
		}
		s.whitelistedIPs[entry] = true
	}

	logger.WithFields(logrus.Fields{
		"invite_rps":    cfg.SIPInvitesPerSecond,
		"invite_burst":  cfg.SIPInviteBurst,
		"request_rps":   cfg.SIPRequestsPerSecond,
		"request_burst": cfg.SIPRequestBurst,
		"whitelisted":   len(s.whitelistedIPs) + len(s.whitelistedNets),
	}).Info("SIP ingress rate limiter initialized")

	return s
}

// SetMetricsCallback registers a hook invoked after every AllowRequest
// decision made by a bucket (not for requests admitted because limiting is
// disabled or the client is whitelisted), for callers that want to surface
// admission counts (e.g. as a
// Prometheus counter) without AllowRequest itself depending on a metrics
// library.
func (s *SIPLimiter) SetMetricsCallback(callback func(clientIP string, method SIPMethod, allowed bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsCallback = callback
}

// AllowRequest reports whether a request from clientIP carrying method
// should be admitted. Whitelisted clients always pass; otherwise the
// request is routed to the bucket matching its method.
func (s *SIPLimiter) AllowRequest(clientIP string, method string) bool {
	if !s.cfg.SIPEnabled {
		return true
	}
	if s.isWhitelisted(clientIP) {
		return true
	}

	sipMethod := s.parseMethod(method)
	allowed := s.admit(clientIP, sipMethod)

	s.mu.RLock()
	callback := s.metricsCallback
	s.mu.RUnlock()
	if callback != nil {
		callback(clientIP, sipMethod, allowed)
	}

	return allowed
}

func (s *SIPLimiter) admit(clientIP string, method SIPMethod) bool {
	switch method {
	case SIPMethodINVITE:
		allowed := s.inviteLimiter.Allow(clientIP)
		if !allowed {
			s.logger.WithFields(logrus.Fields{"client_ip": clientIP}).Warn("INVITE rate limit exceeded")
		}
		return allowed
	case SIPMethodREGISTER:
		// Keyed separately from the client's general bucket so a burst of
		// re-registrations doesn't starve its other in-dialog traffic.
		allowed := s.requestLimiter.Allow(clientIP + ":REGISTER")
		if !allowed {
			s.logger.WithFields(logrus.Fields{"client_ip": clientIP}).Warn("REGISTER rate limit exceeded")
		}
		return allowed
	case SIPMethodOPTIONS:
		return s.requestLimiter.Allow(clientIP + ":OPTIONS")
	default:
		return s.requestLimiter.Allow(clientIP)
	}
}

func (s *SIPLimiter) isWhitelisted(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.whitelistedIPs[ip] {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range s.whitelistedNets {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

func (s *SIPLimiter) parseMethod(method string) SIPMethod {
	switch strings.ToUpper(method) {
	case "INVITE":
		return SIPMethodINVITE
	case "ACK":
		return SIPMethodACK
	case "BYE":
		return SIPMethodBYE
	case "CANCEL":
		return SIPMethodCANCEL
	case "OPTIONS":
		return SIPMethodOPTIONS
	case "REGISTER":
		return SIPMethodREGISTER
	default:
		return SIPMethodOther
	}
}
