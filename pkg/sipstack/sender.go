package sipstack

import "github.com/emiago/sipgo/sip"

// Sender abstracts however a response ultimately reaches the wire: through
// a live sip.ServerTransaction's Respond (the normal, retransmission-aware
// path) or through a bare transport write for a stateless reply. The
// distributor core only ever needs "send this response for that request";
// which concrete path that resolves to is a transport-adapter concern, kept
// out of the module logic so it stays testable without a live socket.
type Sender interface {
	Send(resp *sip.Response) error
}

// SetSender attaches the response sender this buffer's request arrived
// on. The transport adapter calls this when constructing the original
// RxData; Clone carries it forward so the distribute task can still reply
// after re-injecting the cloned buffer into the pipeline.
func (r *RxData) SetSender(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// Respond builds a response for this buffer's request with the given
// status and sends it through the attached Sender. Returns an error if
// there is no request to respond to or no sender attached.
func (r *RxData) Respond(code int, reason string) error {
	return r.RespondWith(code, reason, nil)
}

// RespondWith is Respond plus a hook to mutate the response (e.g. attach a
// WWW-Authenticate header) before it is sent.
func (r *RxData) RespondWith(code int, reason string, mutate func(*sip.Response)) error {
	r.mu.Lock()
	req, sender := r.Request, r.sender
	r.mu.Unlock()

	if req == nil {
		return errNoRequest
	}
	if sender == nil {
		return errNoSender
	}
	resp := sip.NewResponseFromRequest(req, code, reason, nil)
	if mutate != nil {
		mutate(resp)
	}
	return sender.Send(resp)
}
