package distributor

import (
	"sync"

	"github.com/emiago/sipgo/sip"

	"sip-distributor/pkg/endpoint"
	"sip-distributor/pkg/secevent"
	"sip-distributor/pkg/sipauth"
	"sip-distributor/pkg/sipstack"
)

// fakeVerifier returns a fixed sipauth.Result regardless of the request
// presented to it, so authenticator tests can drive every verdict branch
// without constructing real digest headers.
type fakeVerifier struct {
	result sipauth.Result
}

func (f *fakeVerifier) CheckAuthentication(ep *endpoint.Endpoint, req sipauth.Request) sipauth.Result {
	return f.result
}

// fakeReporter records every security event it is given, for tests that
// assert a side effect occurred without caring about the log line it would
// otherwise produce.
type fakeReporter struct {
	mu     sync.Mutex
	events []secevent.Event
}

func (f *fakeReporter) Report(evt secevent.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeReporter) categories() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Category
	}
	return out
}

// fakeSender records every response sent through it, standing in for a live
// sip.ServerTransaction.
type fakeSender struct {
	mu   sync.Mutex
	sent []*sip.Response
}

func (f *fakeSender) Send(resp *sip.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, resp)
	return nil
}

func (f *fakeSender) statuses() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.sent))
	for i, r := range f.sent {
		out[i] = int(r.StatusCode)
	}
	return out
}

func newInviteRxData(callID, fromTag, toTag string) (*sipstack.RxData, *fakeSender) {
	return newMethodRxData(sip.INVITE, callID, fromTag, toTag)
}

func newTestRequest(method sip.RequestMethod, callID, fromTag, toTag string) *sip.Request {
	req := sip.NewRequest(method, sip.Uri{Scheme: "sip", User: "bob", Host: "example.com"})

	fromParams := sip.NewParams()
	if fromTag != "" {
		fromParams.Add("tag", fromTag)
	}
	req.AppendHeader(&sip.FromHeader{
		Address: sip.Uri{Scheme: "sip", User: "alice", Host: "example.com"},
		Params:  fromParams,
	})

	toParams := sip.NewParams()
	if toTag != "" {
		toParams.Add("tag", toTag)
	}
	req.AppendHeader(&sip.ToHeader{
		Address: sip.Uri{Scheme: "sip", User: "bob", Host: "example.com"},
		Params:  toParams,
	})

	callIDHdr := sip.CallIDHeader(callID)
	req.AppendHeader(&callIDHdr)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: method})
	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)
	return req
}

func newMethodRxData(method sip.RequestMethod, callID, fromTag, toTag string) (*sipstack.RxData, *fakeSender) {
	req := newTestRequest(method, callID, fromTag, toTag)
	rd := sipstack.NewRxDataFromRequest(req)
	rd.SourceAddr = "198.51.100.1:5060"
	sender := &fakeSender{}
	rd.SetSender(sender)
	return rd, sender
}

// newResponseRxData builds an inbound response RxData the way it would
// arrive for a request this process sent: the response's From is the
// request's From (our local tag), To carries the remote tag.
func newResponseRxData(method sip.RequestMethod, callID, fromTag, toTag string) *sipstack.RxData {
	req := newTestRequest(method, callID, fromTag, toTag)
	resp := sip.NewResponseFromRequest(req, 200, "OK", nil)
	rd := sipstack.NewRxDataFromResponse(resp)
	rd.SourceAddr = "198.51.100.1:5060"
	return rd
}
