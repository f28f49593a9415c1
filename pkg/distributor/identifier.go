package distributor

import (
	"sip-distributor/pkg/metrics"
	"sip-distributor/pkg/secevent"
	"sip-distributor/pkg/sipstack"
)

const endpointIdentifierName = "endpoint_identifier"

// EndpointIdentifier resolves the receive buffer's endpoint annotation from
// the configured Store, falling back to the synthetic endpoint for anything
// but an ACK so later modules always see an endpoint attached.
type EndpointIdentifier struct {
	sub *Subsystem
}

func (e *EndpointIdentifier) Name() string  { return endpointIdentifierName }
func (e *EndpointIdentifier) Priority() int { return PriorityEndpointIdentifier }

// OnRxRequest never claims the message: identification only annotates it,
// it never decides whether to keep processing.
func (e *EndpointIdentifier) OnRxRequest(rd *sipstack.RxData) sipstack.Result {
	if rd.Endpoint() != nil {
		return sipstack.NotConsumed
	}

	ep, err := e.sub.store.Identify(rd.FromUser(), rd.SourceAddr)
	if err == nil && ep != nil {
		rd.SetEndpoint(ep)
		return sipstack.NotConsumed
	}

	if rd.IsACK() {
		return sipstack.NotConsumed
	}

	if e.sub.logger != nil {
		e.sub.logger.WithFields(map[string]interface{}{
			"from_uri":    rd.FromURI(),
			"source_addr": rd.SourceAddr,
			"call_id":     rd.CallID(),
		}).Warn("Unidentified request")
	}

	if metrics.DistributorUnidentifiedRequests != nil {
		metrics.DistributorUnidentifiedRequests.Inc()
	}
	secevent.ReportInvalidEndpoint(e.sub.secRep, rd.FromUser(), rd.SourceAddr, rd.CallID())

	rd.SetEndpoint(e.sub.synthetic.Retain())
	return sipstack.NotConsumed
}

func (e *EndpointIdentifier) OnRxResponse(rd *sipstack.RxData) sipstack.Result {
	return sipstack.NotConsumed
}

func (e *EndpointIdentifier) OnTxRequest(rd *sipstack.RxData, td *sipstack.TxData) sipstack.Result {
	return sipstack.NotConsumed
}
