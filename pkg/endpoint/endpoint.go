// Package endpoint models the configured SIP peer ("endpoint") the
// distributor associates with inbound traffic, the digest credentials it
// carries, and the process-wide synthetic endpoint/auth pair used whenever
// no real endpoint can be identified.
package endpoint

import "sync/atomic"

// InboundAuth is a single digest credential an endpoint accepts inbound
// requests to be challenged against. The synthetic endpoint carries exactly
// one InboundAuth whose credentials are never checked (the digest verifier
// skips Artificial entries); only its Realm is read, for the challenge. Its
// presence makes len(InboundAuths) >= 1 so RequiresAuthentication() reports
// true.
type InboundAuth struct {
	Username string
	Password string
	Realm    string

	// Artificial tags this credential as the process-wide synthetic
	// sentinel rather than a real, sorcery-configured one.
	Artificial bool
}

// Endpoint is a configured, credential-bearing SIP peer. It is reference
// counted: every holder (a dialog annotation, a receive-buffer annotation,
// a direct caller of Store.Identify) owns one reference and must Release it
// exactly once.
type Endpoint struct {
	Name         string
	InboundAuths []*InboundAuth

	// Artificial marks the process-wide synthetic endpoint. No non-test
	// code reads it; the digest verifier relies on the Artificial tag of
	// the endpoint's InboundAuth instead.
	Artificial bool

	refs int32
}

// New creates an endpoint with an initial reference count of 1, owned by the
// caller.
func New(name string) *Endpoint {
	return &Endpoint{Name: name, refs: 1}
}

// Retain bumps the reference count and returns the same endpoint, so calls
// can be chained at the point of attachment: `rd.SetEndpoint(ep.Retain())`.
func (e *Endpoint) Retain() *Endpoint {
	if e == nil {
		return nil
	}
	atomic.AddInt32(&e.refs, 1)
	return e
}

// Release drops a reference. Endpoints are not pooled or freed here (the Go
// runtime reclaims them once unreferenced); Release exists so refcount
// invariants can be asserted in tests, mirroring an ao2_ref-style discipline
// where every Retain has a matching Release.
func (e *Endpoint) Release() {
	if e == nil {
		return
	}
	atomic.AddInt32(&e.refs, -1)
}

// RefCount returns the current reference count, for tests and diagnostics.
func (e *Endpoint) RefCount() int32 {
	if e == nil {
		return 0
	}
	return atomic.LoadInt32(&e.refs)
}

// RequiresAuthentication reports whether this endpoint's policy demands a
// digest challenge. An endpoint with no inbound auth credentials never
// requires authentication.
func (e *Endpoint) RequiresAuthentication() bool {
	return e != nil && len(e.InboundAuths) > 0
}
