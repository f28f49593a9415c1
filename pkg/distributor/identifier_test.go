package distributor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sip-distributor/pkg/endpoint"
	"sip-distributor/pkg/sipstack"
)

func TestEndpointIdentifierLeavesAlreadyAnnotatedRequestAlone(t *testing.T) {
	sub := newTestSubsystem(t)
	rd, _ := newInviteRxData("call-1", "", "")
	ep := endpoint.New("alice")
	rd.SetEndpoint(ep)

	ident := &EndpointIdentifier{sub: sub}
	result := ident.OnRxRequest(rd)

	assert.Equal(t, sipstack.NotConsumed, result)
	assert.Same(t, ep, rd.Endpoint())
}

func TestEndpointIdentifierResolvesConfiguredEndpoint(t *testing.T) {
	sub := newTestSubsystem(t)
	store := sub.store.(*endpoint.MemoryStore)
	store.Add("alice", endpoint.New("alice"))

	rd, _ := newInviteRxData("call-2", "", "")
	ident := &EndpointIdentifier{sub: sub}
	ident.OnRxRequest(rd)

	require.NotNil(t, rd.Endpoint())
	assert.Equal(t, "alice", rd.Endpoint().Name)
	assert.False(t, rd.Endpoint().Artificial)
}

func TestEndpointIdentifierAttachesSyntheticEndpointWhenUnidentified(t *testing.T) {
	sub := newTestSubsystem(t)
	reporter := &fakeReporter{}
	sub.secRep = reporter

	rd, _ := newInviteRxData("call-3", "", "")
	ident := &EndpointIdentifier{sub: sub}
	ident.OnRxRequest(rd)

	require.NotNil(t, rd.Endpoint())
	assert.True(t, rd.Endpoint().Artificial)
	assert.Contains(t, reporter.categories(), "invalid_endpoint")
}

func TestEndpointIdentifierLetsUnidentifiedACKPassWithoutSynthetic(t *testing.T) {
	sub := newTestSubsystem(t)
	reporter := &fakeReporter{}
	sub.secRep = reporter

	rd, _ := newMethodRxData("ACK", "call-4", "", "")
	ident := &EndpointIdentifier{sub: sub}
	ident.OnRxRequest(rd)

	assert.Nil(t, rd.Endpoint())
	assert.Empty(t, reporter.categories())
}
