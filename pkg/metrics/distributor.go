package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	distributorOnce sync.Once

	// DistributorEnqueuedTotal counts messages successfully enqueued onto a
	// serializer, labeled by how affinity was resolved.
	DistributorEnqueuedTotal *prometheus.CounterVec

	// DistributorDroppedTotal counts messages dropped before reaching a
	// serializer (boot gate, overload, missing serializer, enqueue failure,
	// ingress rate limit), labeled by reason.
	DistributorDroppedTotal *prometheus.CounterVec

	// DistributorStatelessResponses counts responses emitted by the
	// distributor subsystem's own modules (481 and 501 from the Distributor,
	// 401 and 500 from the Authenticator), labeled by status code.
	DistributorStatelessResponses *prometheus.CounterVec

	// DistributorOverloadAlert reports the current overload signal (0/1).
	DistributorOverloadAlert prometheus.Gauge

	// DistributorSerializerQueueDepth reports per-serializer queue depth.
	DistributorSerializerQueueDepth *prometheus.GaugeVec

	// DistributorAuthVerdicts counts authenticator verdicts.
	DistributorAuthVerdicts *prometheus.CounterVec

	// DistributorUnidentifiedRequests counts requests for which no
	// endpoint could be identified.
	DistributorUnidentifiedRequests prometheus.Counter
)

// InitDistributor registers the distributor subsystem's collectors with the
// given registry. Safe to call multiple times; registration happens once.
func InitDistributor(registry *prometheus.Registry) {
	distributorOnce.Do(func() {
		DistributorEnqueuedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_distributor_enqueued_total",
				Help: "Messages enqueued onto a serializer, by affinity source",
			},
			[]string{"affinity"},
		)
		DistributorDroppedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_distributor_dropped_total",
				Help: "Messages dropped by the distributor, by reason",
			},
			[]string{"reason"},
		)
		DistributorStatelessResponses = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_distributor_stateless_responses_total",
				Help: "Stateless responses emitted by the distributor, by status code",
			},
			[]string{"status"},
		)
		DistributorOverloadAlert = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sip_distributor_overload_alert",
				Help: "1 if the process-wide overload alert is currently set",
			},
		)
		DistributorSerializerQueueDepth = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sip_distributor_serializer_queue_depth",
				Help: "Current queue depth for a named serializer",
			},
			[]string{"serializer"},
		)
		DistributorAuthVerdicts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sip_distributor_auth_verdicts_total",
				Help: "Authenticator verdicts, by verdict",
			},
			[]string{"verdict"},
		)
		DistributorUnidentifiedRequests = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sip_distributor_unidentified_requests_total",
				Help: "Requests for which no endpoint could be identified",
			},
		)

		if registry != nil {
			registry.MustRegister(
				DistributorEnqueuedTotal,
				DistributorDroppedTotal,
				DistributorStatelessResponses,
				DistributorOverloadAlert,
				DistributorSerializerQueueDepth,
				DistributorAuthVerdicts,
				DistributorUnidentifiedRequests,
			)
		}
	})
}
