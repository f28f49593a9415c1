package distributor

import (
	"github.com/emiago/sipgo/sip"

	"sip-distributor/pkg/metrics"
	"sip-distributor/pkg/secevent"
	"sip-distributor/pkg/sipauth"
	"sip-distributor/pkg/sipstack"
)

const authenticatorName = "authenticator"

// Authenticator challenges, accepts or rejects an inbound request's digest
// credentials against its annotated endpoint, and reports every outcome as
// a security event.
type Authenticator struct {
	sub *Subsystem
}

func (a *Authenticator) Name() string  { return authenticatorName }
func (a *Authenticator) Priority() int { return PriorityAuthenticator }

func (a *Authenticator) OnRxRequest(rd *sipstack.RxData) sipstack.Result {
	if rd.IsACK() {
		return sipstack.NotConsumed
	}

	ep := rd.Endpoint()
	if ep == nil || !ep.RequiresAuthentication() {
		return sipstack.NotConsumed
	}

	req := sipauth.Request{
		Method:     rd.Method(),
		URI:        rd.Request.Recipient.String(),
		AuthHeader: rd.AuthHeader(),
		ClientIP:   rd.SourceAddr,
	}
	result := a.sub.verifier.CheckAuthentication(ep, req)

	if metrics.DistributorAuthVerdicts != nil {
		metrics.DistributorAuthVerdicts.WithLabelValues(result.Verdict.String()).Inc()
	}

	switch result.Verdict {
	case sipauth.VerdictChallenge:
		a.challenge(rd, result)
		secevent.ReportAuthChallengeSent(a.sub.secRep, result.Username, rd.SourceAddr, rd.CallID())
		return sipstack.Consumed

	case sipauth.VerdictSuccess:
		secevent.ReportAuthSuccess(a.sub.secRep, result.Username, rd.SourceAddr, rd.CallID())
		return sipstack.NotConsumed

	case sipauth.VerdictFailed:
		a.challenge(rd, result)
		secevent.ReportAuthFailedChallengeResponse(a.sub.secRep, result.Username, rd.SourceAddr, rd.CallID())
		return sipstack.Consumed

	default: // sipauth.VerdictError
		rd.Respond(500, "Server Internal Error")
		if metrics.DistributorStatelessResponses != nil {
			metrics.DistributorStatelessResponses.WithLabelValues("500").Inc()
		}
		secevent.ReportAuthFailedChallengeResponse(a.sub.secRep, result.Username, rd.SourceAddr, rd.CallID())
		return sipstack.Consumed
	}
}

func (a *Authenticator) challenge(rd *sipstack.RxData, result sipauth.Result) {
	rd.RespondWith(401, "Unauthorized", func(resp *sip.Response) {
		resp.AppendHeader(sip.NewHeader("WWW-Authenticate", result.Challenge))
	})
	if metrics.DistributorStatelessResponses != nil {
		metrics.DistributorStatelessResponses.WithLabelValues("401").Inc()
	}
}

func (a *Authenticator) OnRxResponse(rd *sipstack.RxData) sipstack.Result {
	return sipstack.NotConsumed
}

func (a *Authenticator) OnTxRequest(rd *sipstack.RxData, td *sipstack.TxData) sipstack.Result {
	return sipstack.NotConsumed
}
