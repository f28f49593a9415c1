// Package sipstack adapts github.com/emiago/sipgo's request/response types
// and server hooks into the small surface the distribution core needs:
// cloned receive buffers with an endpoint annotation slot, transmit buffers
// with a serializer-name annotation slot, and dialog/transaction registries
// standing in for a full SIP stack's internal indices.
package sipstack

import (
	"fmt"
	"sync"

	"github.com/emiago/sipgo/sip"

	"sip-distributor/pkg/endpoint"
)

// RxData wraps an inbound SIP request or response the way an arena-backed
// receive buffer would: it carries the parsed message plus a single
// annotation slot for the identified endpoint. RxData produced by Clone is
// an independent copy safe to hand to a serializer after the original
// transport buffer is reused.
type RxData struct {
	Request  *sip.Request
	Response *sip.Response

	// SourceAddr is the transport-layer "address:port" the message
	// arrived from, carried alongside the parsed message since sipgo's
	// listener hands it to us separately from the decoded sip.Request.
	SourceAddr string

	mu             sync.Mutex
	endpoint       *endpoint.Endpoint
	sender         Sender
	freed          bool
	serializerName string
}

// NewRxDataFromRequest wraps an inbound request.
func NewRxDataFromRequest(req *sip.Request) *RxData {
	return &RxData{Request: req}
}

// NewRxDataFromResponse wraps an inbound response.
func NewRxDataFromResponse(resp *sip.Response) *RxData {
	return &RxData{Response: resp}
}

// IsRequest reports whether this buffer carries a request.
func (r *RxData) IsRequest() bool { return r.Request != nil }

// Method returns the request method, or "" for a response.
func (r *RxData) Method() string {
	if r.Request == nil {
		return ""
	}
	return string(r.Request.Method)
}

// CallID returns the Call-ID header value, or "" if absent.
func (r *RxData) CallID() string {
	msg := r.message()
	if msg == nil {
		return ""
	}
	if callID := msg.CallID(); callID != nil {
		return callID.Value()
	}
	return ""
}

// FromTag returns the From header's tag parameter, or "".
func (r *RxData) FromTag() string {
	msg := r.message()
	if msg == nil {
		return ""
	}
	if from := msg.From(); from != nil && from.Params != nil {
		if tag, ok := from.Params.Get("tag"); ok {
			return tag
		}
	}
	return ""
}

// ToTag returns the To header's tag parameter, or "".
func (r *RxData) ToTag() string {
	msg := r.message()
	if msg == nil {
		return ""
	}
	if to := msg.To(); to != nil && to.Params != nil {
		if tag, ok := to.Params.Get("tag"); ok {
			return tag
		}
	}
	return ""
}

// CSeqMethod returns the method named in the CSeq header, which for a
// response is the method of the request it answers.
func (r *RxData) CSeqMethod() string {
	msg := r.message()
	if msg == nil {
		return ""
	}
	if cseq := msg.CSeq(); cseq != nil {
		return string(cseq.MethodName)
	}
	return ""
}

func (r *RxData) message() sip.Message {
	if r.Request != nil {
		return r.Request
	}
	if r.Response != nil {
		return r.Response
	}
	return nil
}

// Clone produces an independent copy, the equivalent of a SIP library's
// clone_rx. Requests get a fresh sip.Request with every header cloned and
// the body copied, so the transport layer may reuse the original buffer.
// Responses share the parsed message: nothing downstream of the
// distributor mutates an inbound response, and the garbage collector keeps
// it alive for as long as the clone needs it. The copy starts with no
// endpoint attached; endpoint state is copied in by the caller after
// cloning, matching the dialog's reference being bumped onto the clone
// rather than shared.
func (r *RxData) Clone() *RxData {
	clone := &RxData{SourceAddr: r.SourceAddr, sender: r.sender, serializerName: r.serializerName}
	if r.Request != nil {
		clone.Request = cloneRequest(r.Request)
	}
	if r.Response != nil {
		clone.Response = r.Response
	}
	return clone
}

func cloneRequest(req *sip.Request) *sip.Request {
	out := sip.NewRequest(req.Method, req.Recipient)
	out.SipVersion = req.SipVersion
	seen := make(map[string]bool)
	for _, h := range req.Headers() {
		if seen[h.Name()] {
			continue
		}
		seen[h.Name()] = true
		sip.CopyHeaders(h.Name(), req, out)
	}
	if body := req.Body(); len(body) > 0 {
		out.SetBody(append([]byte(nil), body...))
	}
	return out
}

// Free marks the clone as released. Go's garbage collector reclaims the
// backing memory on its own; Free exists so tests can assert the "cloned
// buffer has been freed" invariant the distribute task must uphold.
func (r *RxData) Free() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freed = true
}

// Freed reports whether Free has been called, for tests.
func (r *RxData) Freed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freed
}

// SetEndpoint attaches ep to the receive buffer's annotation slot. ep is
// expected to already carry its own reference (bumped by the caller); the
// slot takes ownership of that reference.
func (r *RxData) SetEndpoint(ep *endpoint.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoint = ep
}

// Endpoint returns the annotated endpoint, or nil.
func (r *RxData) Endpoint() *endpoint.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoint
}

// ReleaseEndpoint releases and clears the annotated endpoint reference.
// Idempotent: calling it twice is safe, matching the "released exactly
// once by the task that consumed the buffer" invariant so long as callers
// only call it from the distribute task.
func (r *RxData) ReleaseEndpoint() {
	r.mu.Lock()
	ep := r.endpoint
	r.endpoint = nil
	r.mu.Unlock()
	ep.Release()
}

// SetSerializerName stamps the name of the serializer that owns this
// buffer. The dispatch step calls this on a clone right before pushing it,
// since the chosen serializer is already known statically at that point;
// anything downstream that later transmits a request on this buffer's
// behalf can read the name back off the RxData without any thread-local or
// context-carried lookup.
func (r *RxData) SetSerializerName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializerName = name
}

// SerializerName returns the name stamped by SetSerializerName, or "".
func (r *RxData) SerializerName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.serializerName
}

// TxData wraps an outbound transmit buffer with a serializer-name
// annotation slot: a name string, not the serializer itself, so the
// serializer may be released while the transaction lingers.
type TxData struct {
	Request  *sip.Request
	Response *sip.Response

	mu             sync.Mutex
	serializerName string
}

// NewRequestTxData wraps an outbound request buffer.
func NewRequestTxData(req *sip.Request) *TxData {
	return &TxData{Request: req}
}

// NewResponseTxData wraps an outbound response buffer.
func NewResponseTxData(resp *sip.Response) *TxData {
	return &TxData{Response: resp}
}

// SerializerName returns the annotated serializer name, or "" if none.
func (t *TxData) SerializerName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serializerName
}

// RecordSerializer stores name on the transmit buffer if it differs from
// what is already stored, matching the no-op-when-already-matching
// idempotence property. Returns true if the name was (re)written.
func (t *TxData) RecordSerializer(name string) bool {
	if name == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.serializerName == name {
		return false
	}
	t.serializerName = name
	return true
}

// String is for logging/debugging only.
func (r *RxData) String() string {
	return fmt.Sprintf("rxdata{method=%s call-id=%s from-tag=%s to-tag=%s}", r.Method(), r.CallID(), r.FromTag(), r.ToTag())
}
