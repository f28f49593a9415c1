package distributor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sip-distributor/pkg/endpoint"
	"sip-distributor/pkg/sipauth"
	"sip-distributor/pkg/sipstack"
)

func TestAuthenticatorSkipsACK(t *testing.T) {
	sub := newTestSubsystem(t)
	rd, sender := newMethodRxData("ACK", "call-1", "", "")
	rd.SetEndpoint(endpoint.New("alice"))

	auth := &Authenticator{sub: sub}
	result := auth.OnRxRequest(rd)

	assert.Equal(t, sipstack.NotConsumed, result)
	assert.Empty(t, sender.sent)
}

func TestAuthenticatorSkipsEndpointThatDoesNotRequireAuth(t *testing.T) {
	sub := newTestSubsystem(t)
	rd, sender := newInviteRxData("call-2", "", "")
	rd.SetEndpoint(endpoint.New("alice")) // no InboundAuths configured

	auth := &Authenticator{sub: sub}
	result := auth.OnRxRequest(rd)

	assert.Equal(t, sipstack.NotConsumed, result)
	assert.Empty(t, sender.sent)
}

func TestAuthenticatorChallengesWithWWWAuthenticateHeader(t *testing.T) {
	sub := newTestSubsystem(t)
	sub.verifier = &fakeVerifier{result: sipauth.Result{Verdict: sipauth.VerdictChallenge, Challenge: `Digest realm="test-realm"`}}

	rd, sender := newInviteRxData("call-3", "", "")
	ep := endpoint.New("alice")
	ep.InboundAuths = []*endpoint.InboundAuth{{Username: "alice", Password: "x", Realm: "test-realm"}}
	rd.SetEndpoint(ep)

	auth := &Authenticator{sub: sub}
	result := auth.OnRxRequest(rd)

	assert.Equal(t, sipstack.Consumed, result)
	require.Len(t, sender.sent, 1)
	assert.EqualValues(t, 401, sender.sent[0].StatusCode)
	hdr := sender.sent[0].GetHeader("WWW-Authenticate")
	require.NotNil(t, hdr)
	assert.Contains(t, hdr.Value(), "test-realm")
}

func TestAuthenticatorAllowsSuccessfulAuthenticationThrough(t *testing.T) {
	sub := newTestSubsystem(t)
	sub.verifier = &fakeVerifier{result: sipauth.Result{Verdict: sipauth.VerdictSuccess, Username: "alice"}}
	reporter := &fakeReporter{}
	sub.secRep = reporter

	rd, sender := newInviteRxData("call-4", "", "")
	ep := endpoint.New("alice")
	ep.InboundAuths = []*endpoint.InboundAuth{{Username: "alice", Password: "x", Realm: "test-realm"}}
	rd.SetEndpoint(ep)

	auth := &Authenticator{sub: sub}
	result := auth.OnRxRequest(rd)

	assert.Equal(t, sipstack.NotConsumed, result)
	assert.Empty(t, sender.sent)
	assert.Contains(t, reporter.categories(), "auth_success")
}

func TestAuthenticatorRejectsFailedCredentials(t *testing.T) {
	sub := newTestSubsystem(t)
	sub.verifier = &fakeVerifier{result: sipauth.Result{Verdict: sipauth.VerdictFailed, Challenge: `Digest realm="test-realm"`, Username: "alice"}}
	reporter := &fakeReporter{}
	sub.secRep = reporter

	rd, sender := newInviteRxData("call-5", "", "")
	ep := endpoint.New("alice")
	ep.InboundAuths = []*endpoint.InboundAuth{{Username: "alice", Password: "x", Realm: "test-realm"}}
	rd.SetEndpoint(ep)

	auth := &Authenticator{sub: sub}
	result := auth.OnRxRequest(rd)

	assert.Equal(t, sipstack.Consumed, result)
	require.Len(t, sender.sent, 1)
	assert.EqualValues(t, 401, sender.sent[0].StatusCode)
	assert.Contains(t, reporter.categories(), "auth_failed_challenge_response")
}

func TestAuthenticatorRespondsServerErrorOnVerifierError(t *testing.T) {
	sub := newTestSubsystem(t)
	sub.verifier = &fakeVerifier{result: sipauth.Result{Verdict: sipauth.VerdictError}}
	reporter := &fakeReporter{}
	sub.secRep = reporter

	rd, sender := newInviteRxData("call-6", "", "")
	ep := endpoint.New("alice")
	ep.InboundAuths = []*endpoint.InboundAuth{{Username: "alice", Password: "x", Realm: "test-realm"}}
	rd.SetEndpoint(ep)

	auth := &Authenticator{sub: sub}
	result := auth.OnRxRequest(rd)

	assert.Equal(t, sipstack.Consumed, result)
	require.Len(t, sender.sent, 1)
	assert.EqualValues(t, 500, sender.sent[0].StatusCode)
}
