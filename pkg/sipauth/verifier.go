// Package sipauth implements the credential verifier the Authenticator
// module consults: digest challenge generation and response validation
// against an endpoint's configured inbound auth credentials.
package sipauth

import (
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sip-distributor/pkg/endpoint"
)

// Verdict is the four-way outcome of CheckAuthentication.
type Verdict int

const (
	// VerdictChallenge means a fresh 401 challenge should be sent.
	VerdictChallenge Verdict = iota
	// VerdictSuccess means the request authenticated and processing may
	// continue.
	VerdictSuccess
	// VerdictFailed means the presented credentials were wrong.
	VerdictFailed
	// VerdictError means an internal error prevented evaluation.
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictChallenge:
		return "challenge"
	case VerdictSuccess:
		return "success"
	case VerdictFailed:
		return "failed"
	case VerdictError:
		return "error"
	default:
		return "unknown"
	}
}

// Request carries the fields CheckAuthentication needs out of the SIP
// request and its Authorization/Proxy-Authorization header, decoupled from
// any concrete SIP library type.
type Request struct {
	Method     string
	URI        string
	AuthHeader string // raw header value, empty if the header was absent
	ClientIP   string
}

// Result is the outcome of CheckAuthentication: a verdict plus, when a
// challenge must be sent (Challenge or Failed), the WWW-Authenticate header
// value to attach to the 401.
type Result struct {
	Verdict   Verdict
	Challenge string
	Username  string
}

// Verifier is the credential-verifier collaborator consumed by the
// Authenticator module.
type Verifier interface {
	CheckAuthentication(ep *endpoint.Endpoint, req Request) Result
}

type nonceInfo struct {
	timestamp time.Time
	clientIP  string
}

// DigestVerifier implements Verifier with RFC 2617 digest authentication,
// validating the response against the matching InboundAuth on the supplied
// endpoint. Checks credentials per-endpoint rather than against one global
// user table, and returns a four-way verdict (challenge/success/failed/
// error) instead of a single success/fail boolean.
type DigestVerifier struct {
	logger       *logrus.Logger
	nonceTimeout time.Duration

	mu     sync.Mutex
	nonces map[string]*nonceInfo
}

// NewDigestVerifier creates a verifier whose nonces expire after
// nonceTimeout.
func NewDigestVerifier(nonceTimeout time.Duration, logger *logrus.Logger) *DigestVerifier {
	v := &DigestVerifier{
		logger:       logger,
		nonceTimeout: nonceTimeout,
		nonces:       make(map[string]*nonceInfo),
	}
	go v.cleanupLoop()
	return v
}

func (v *DigestVerifier) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		v.mu.Lock()
		now := time.Now()
		for nonce, info := range v.nonces {
			if now.Sub(info.timestamp) > v.nonceTimeout {
				delete(v.nonces, nonce)
			}
		}
		v.mu.Unlock()
	}
}

// CheckAuthentication implements Verifier.
func (v *DigestVerifier) CheckAuthentication(ep *endpoint.Endpoint, req Request) Result {
	if ep == nil {
		return Result{Verdict: VerdictError}
	}

	if req.AuthHeader == "" {
		return Result{Verdict: VerdictChallenge, Challenge: v.generateChallenge(ep, req.ClientIP)}
	}

	creds, err := parseDigest(req.AuthHeader)
	if err != nil {
		if v.logger != nil {
			v.logger.WithError(err).WithField("client_ip", req.ClientIP).
				Warn("Failed to parse digest authentication header")
		}
		return Result{Verdict: VerdictFailed, Challenge: v.generateChallenge(ep, req.ClientIP)}
	}

	auth := matchInboundAuth(ep, creds.Username)
	if auth == nil {
		if v.logger != nil {
			v.logger.WithField("username", creds.Username).
				Warn("Authentication failed: no matching inbound auth for endpoint")
		}
		return Result{Verdict: VerdictFailed, Challenge: v.generateChallenge(ep, req.ClientIP), Username: creds.Username}
	}

	if !v.validateNonce(creds.Nonce, req.ClientIP) {
		return Result{Verdict: VerdictChallenge, Challenge: v.generateChallenge(ep, req.ClientIP), Username: creds.Username}
	}

	expected := calculateResponse(auth.Password, req.Method, req.URI, creds)
	if creds.Response != expected {
		if v.logger != nil {
			v.logger.WithField("username", creds.Username).Warn("Authentication failed: digest response mismatch")
		}
		return Result{Verdict: VerdictFailed, Challenge: v.generateChallenge(ep, req.ClientIP), Username: creds.Username}
	}

	return Result{Verdict: VerdictSuccess, Username: creds.Username}
}

func matchInboundAuth(ep *endpoint.Endpoint, username string) *endpoint.InboundAuth {
	for _, a := range ep.InboundAuths {
		if a.Artificial {
			continue
		}
		if a.Username == username {
			return a
		}
	}
	return nil
}

func (v *DigestVerifier) generateChallenge(ep *endpoint.Endpoint, clientIP string) string {
	realm := "asterisk"
	if len(ep.InboundAuths) > 0 && ep.InboundAuths[0].Realm != "" {
		realm = ep.InboundAuths[0].Realm
	}

	nonce, err := v.generateNonce(clientIP)
	if err != nil {
		if v.logger != nil {
			v.logger.WithError(err).Error("Failed to generate digest nonce")
		}
		return fmt.Sprintf(`Digest realm="%s"`, realm)
	}

	return fmt.Sprintf(`Digest realm="%s", nonce="%s", algorithm=MD5, qop="auth"`, realm, nonce)
}

func (v *DigestVerifier) generateNonce(clientIP string) (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	data := fmt.Sprintf("%d:%s:%x", time.Now().UnixNano(), clientIP, randomBytes)
	nonce := fmt.Sprintf("%x", md5.Sum([]byte(data)))

	v.mu.Lock()
	v.nonces[nonce] = &nonceInfo{timestamp: time.Now(), clientIP: clientIP}
	v.mu.Unlock()

	return nonce, nil
}

func (v *DigestVerifier) validateNonce(nonce, clientIP string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, ok := v.nonces[nonce]
	if !ok {
		return false
	}
	if time.Since(info.timestamp) > v.nonceTimeout {
		delete(v.nonces, nonce)
		return false
	}
	delete(v.nonces, nonce) // one-shot: a nonce is consumed on use
	return info.clientIP == clientIP
}

type digestCredentials struct {
	Username string
	Realm    string
	Nonce    string
	URI      string
	Response string
	QOP      string
	NC       string
	CNonce   string
}

func parseDigest(header string) (*digestCredentials, error) {
	if !strings.HasPrefix(header, "Digest ") {
		return nil, fmt.Errorf("not a digest authentication header")
	}

	creds := &digestCredentials{}
	for _, pair := range strings.Split(strings.TrimPrefix(header, "Digest "), ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"`)

		switch key {
		case "username":
			creds.Username = value
		case "realm":
			creds.Realm = value
		case "nonce":
			creds.Nonce = value
		case "uri":
			creds.URI = value
		case "response":
			creds.Response = value
		case "qop":
			creds.QOP = value
		case "nc":
			creds.NC = value
		case "cnonce":
			creds.CNonce = value
		}
	}

	if creds.Username == "" || creds.Nonce == "" || creds.Response == "" {
		return nil, fmt.Errorf("missing required digest fields")
	}
	return creds, nil
}

func calculateResponse(password, method, uri string, creds *digestCredentials) string {
	ha1 := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s:%s:%s", creds.Username, creds.Realm, password))))
	ha2 := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s:%s", method, uri))))

	var data string
	if creds.QOP == "auth" || creds.QOP == "auth-int" {
		data = fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, creds.Nonce, creds.NC, creds.CNonce, creds.QOP, ha2)
	} else {
		data = fmt.Sprintf("%s:%s:%s", ha1, creds.Nonce, ha2)
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}
