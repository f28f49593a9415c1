// Package distributor implements the three inbound modules the rest of
// this repository exists to support: Distributor (affinity resolution,
// overload shedding, dispatch), EndpointIdentifier (endpoint resolution)
// and Authenticator (digest challenge/accept/reject). It also owns the
// subsystem's lifecycle: the serializer pool, the synthetic endpoint/auth
// singletons, and the boot gate.
package distributor

import (
	"sync/atomic"

	"github.com/emiago/sipgo/sip"
	"github.com/sirupsen/logrus"

	"sip-distributor/pkg/config"
	"sip-distributor/pkg/endpoint"
	derrors "sip-distributor/pkg/errors"
	"sip-distributor/pkg/metrics"
	"sip-distributor/pkg/secevent"
	"sip-distributor/pkg/serializer"
	"sip-distributor/pkg/sipauth"
	"sip-distributor/pkg/sipstack"
)

// Priority constants fix the three modules' relative order in the
// pipeline: Distributor earliest, then EndpointIdentifier, then
// Authenticator last. The absolute numbers are framed relative to a
// notional transaction layer and application layer but carry no meaning
// beyond their ordering.
const (
	priorityTransactionLayer = 100
	priorityApplication      = 300

	PriorityDistributor        = priorityTransactionLayer - 6
	PriorityEndpointIdentifier = priorityTransactionLayer - 3
	PriorityAuthenticator      = priorityApplication - 2
)

// ModuleName is the name the Distributor module registers itself under,
// and the name the distribute task resumes the pipeline after.
const ModuleName = "distributor"

// Subsystem bundles everything the three modules share: the serializer
// pool and overload registry, the dialog/transaction registries, the
// endpoint store and synthetic endpoint/auth, the credential verifier, and
// the security-event reporter. One Subsystem is created per process.
type Subsystem struct {
	cfg    *config.DistributorConfig
	logger *logrus.Logger

	overload *serializer.Registry
	dir      *serializer.Directory
	pool     *serializer.Pool

	dialogs *sipstack.DialogRegistry
	txs     *sipstack.TransactionRegistry

	store    endpoint.Store
	verifier sipauth.Verifier
	secRep   secevent.Reporter

	synthetic *endpoint.Endpoint

	booted atomic.Bool

	Pipeline *sipstack.Pipeline
}

// New creates a subsystem and its serializer pool, synthetic endpoint/auth,
// and module pipeline, but leaves the boot gate closed — callers must call
// Boot once every other subsystem has finished initializing. If pool
// creation fails the partially built subsystem is torn down and an error
// returned.
func New(cfg *config.DistributorConfig, store endpoint.Store, verifier sipauth.Verifier, secRep secevent.Reporter, logger *logrus.Logger) (*Subsystem, error) {
	if cfg == nil {
		cfg = config.DefaultDistributorConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Subsystem{
		cfg:      cfg,
		logger:   logger,
		overload: serializer.NewRegistry(),
		dialogs:  sipstack.NewDialogRegistry(),
		txs:      sipstack.NewTransactionRegistry(),
		store:    store,
		verifier: verifier,
		secRep:   secRep,
	}

	s.overload.OnAlertChange(func(alert bool) {
		if metrics.DistributorOverloadAlert == nil {
			return
		}
		if alert {
			metrics.DistributorOverloadAlert.Set(1)
		} else {
			metrics.DistributorOverloadAlert.Set(0)
		}
	})
	s.dir = serializer.NewDirectory(s.overload, cfg.OverloadHighWaterMark, logger)
	s.pool = serializer.NewPool(s.dir, cfg.PoolBaseName, cfg.PoolSize, logger)
	if s.pool.Size() != cfg.PoolSize {
		s.pool.Shutdown()
		return nil, derrors.Wrap(derrors.ErrInitFailed, "serializer pool size mismatch")
	}

	s.synthetic = endpoint.NewSynthetic(cfg.Realm)

	s.Pipeline = sipstack.NewPipeline()
	s.Pipeline.Register(&Distributor{sub: s})
	s.Pipeline.Register(&EndpointIdentifier{sub: s})
	s.Pipeline.Register(&Authenticator{sub: s})

	if metrics.DistributorOverloadAlert != nil {
		metrics.DistributorOverloadAlert.Set(0)
	}

	s.booted.Store(cfg.BootGateOpen)
	return s, nil
}

// Boot opens the boot gate: from this point on, inbound messages are
// cloned and dispatched rather than dropped.
func (s *Subsystem) Boot() {
	s.booted.Store(true)
}

// Booted reports whether the boot gate is open.
func (s *Subsystem) Booted() bool {
	return s.booted.Load()
}

// Shutdown unregisters the modules, releases the synthetic endpoint, and
// tears down the pool, in that order: unregistering the modules first
// quiesces the pipeline before serializers start draining.
func (s *Subsystem) Shutdown() {
	s.booted.Store(false)
	s.Pipeline.Unregister(ModuleName)
	s.Pipeline.Unregister(endpointIdentifierName)
	s.Pipeline.Unregister(authenticatorName)
	s.synthetic.Release()
	s.pool.Shutdown()
}

// TrackOutboundRequest is the transmit path for a request the application
// sends while processing rd on a serializer. It wraps req in a transmit
// buffer, runs the pipeline's tx hooks over it — which is where the
// Distributor records the owning serializer's name — and registers the
// UAC transaction holding that buffer as its last transmitted request, so
// the matching response is routed back to the same serializer if it still
// exists. The caller remains responsible for putting req on the wire.
func (s *Subsystem) TrackOutboundRequest(rd *sipstack.RxData, req *sip.Request) *sipstack.TxData {
	td := sipstack.NewRequestTxData(req)
	s.Pipeline.NotifyTxRequest(rd, td)

	callID := ""
	if id := req.CallID(); id != nil {
		callID = id.Value()
	}
	s.txs.Put(sipstack.TransactionKey{
		Role:   sipstack.RoleUAC,
		Method: string(req.Method),
		CallID: callID,
	}, &sipstack.Transaction{LastRequestTxData: td})
	return td
}

// Dialogs exposes the dialog registry so the owning application can
// annotate dialogs as they're created — a callback this core treats as an
// external collaborator it merely provides storage for.
func (s *Subsystem) Dialogs() *sipstack.DialogRegistry { return s.dialogs }

// Transactions exposes the transaction registry for the same reason.
func (s *Subsystem) Transactions() *sipstack.TransactionRegistry { return s.txs }

// PoolSize returns the serializer pool's fixed size, which never changes
// between init-complete and shutdown-start.
func (s *Subsystem) PoolSize() int { return s.pool.Size() }

// SyntheticEndpoint returns the process-wide synthetic endpoint, which
// holds its own reference for the whole lifetime between init and
// shutdown.
func (s *Subsystem) SyntheticEndpoint() *endpoint.Endpoint { return s.synthetic }

// OverloadAlert reports the process-wide overload signal.
func (s *Subsystem) OverloadAlert() bool { return s.overload.Alert() }
