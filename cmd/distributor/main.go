package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"sip-distributor/pkg/config"
	"sip-distributor/pkg/distributor"
	"sip-distributor/pkg/endpoint"
	"sip-distributor/pkg/metrics"
	"sip-distributor/pkg/ratelimit"
	"sip-distributor/pkg/secevent"
	"sip-distributor/pkg/sipauth"
	"sip-distributor/pkg/sipstack"
)

var (
	logger = logrus.New()

	cfg    *config.DistributorConfig
	sub    *distributor.Subsystem
	sipLim *ratelimit.SIPLimiter

	sipServer *sipgo.Server

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize distributor")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go startSIPServer(&wg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

		rootCancel()

		logger.Debug("Shutting down distributor subsystem...")
		sub.Shutdown()
		logger.Info("Distributor subsystem shut down")

		logger.Info("Distributor shut down gracefully")
		os.Exit(0)
	}()

	wg.Wait()
}

// initialize loads configuration and wires the endpoint store, credential
// verifier and security reporter into a distributor subsystem, then opens
// the boot gate. A real deployment would load endpoints from the sorcery
// equivalent it has on hand; this wiring seeds one example endpoint so the
// server is immediately useful against a test UA.
func initialize() error {
	cfg = config.LoadDistributorConfig(".env", logger)

	metrics.InitDistributor(prometheus.NewRegistry())

	store := endpoint.NewMemoryStore()
	seedExampleEndpoints(store)

	verifier := sipauth.NewDigestVerifier(cfg.NonceTimeout, logger)
	secRep := secevent.NewLogReporter(logger)

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.SIPEnabled = cfg.RateLimitEnabled
	rlCfg.SIPInvitesPerSecond = cfg.RateLimitInviteRPS
	rlCfg.SIPInviteBurst = cfg.RateLimitInviteBurst
	rlCfg.SIPRequestsPerSecond = cfg.RateLimitRequestRPS
	rlCfg.SIPRequestBurst = cfg.RateLimitRequestBurst
	sipLim = ratelimit.NewSIPLimiter(rlCfg, logger)
	sipLim.SetMetricsCallback(func(clientIP string, method ratelimit.SIPMethod, allowed bool) {
		if !allowed && metrics.DistributorDroppedTotal != nil {
			metrics.DistributorDroppedTotal.WithLabelValues("rate_limited").Inc()
		}
	})

	var err error
	sub, err = distributor.New(cfg, store, verifier, secRep, logger)
	if err != nil {
		return fmt.Errorf("failed to create distributor subsystem: %w", err)
	}

	sub.Boot()
	logger.WithFields(logrus.Fields{
		"pool_size": sub.PoolSize(),
		"realm":     cfg.Realm,
	}).Info("Distributor subsystem booted")

	return nil
}

func seedExampleEndpoints(store *endpoint.MemoryStore) {
	alice := endpoint.New("alice")
	alice.InboundAuths = []*endpoint.InboundAuth{
		{Username: "alice", Password: "changeme", Realm: cfg.Realm},
	}
	store.Add("alice", alice)
}

// startSIPServer builds the sipgo UA/server, registers a handler for every
// request method that forwards into the distributor's pipeline, and listens
// on UDP until the root context is cancelled. Only requests are bound here:
// this example is a pure UAS, so it never sends a request of its own and
// sipgo delivers responses to its own client transactions rather than to
// OnRequest handlers. An application that originates requests registers
// each one through Subsystem.TrackOutboundRequest and feeds the responses
// it receives into Pipeline.ProcessRxResponse to get them routed back to
// the sending serializer.
func startSIPServer(wg *sync.WaitGroup) {
	defer wg.Done()

	ua, err := sipgo.NewUA()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create SIP user agent")
	}

	sipServer, err = sipgo.NewServer(ua)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create SIP server")
	}

	for _, method := range []sip.RequestMethod{
		sip.INVITE, sip.ACK, sip.BYE, sip.CANCEL, sip.OPTIONS,
		sip.REGISTER, sip.INFO, sip.PRACK, sip.UPDATE,
		sip.SUBSCRIBE, sip.NOTIFY, sip.MESSAGE, sip.REFER,
	} {
		sipServer.OnRequest(method, handleRequest)
	}

	address := "0.0.0.0:5060"
	logger.WithField("address", address).Info("Starting SIP distributor on UDP")
	if err := sipServer.ListenAndServe(rootCtx, "udp", address); err != nil {
		logger.WithError(err).Error("SIP server exited")
	}
}

// handleRequest is the transport-thread entry point: apply the ingress rate
// limiter, build the original receive buffer, hand it to the pipeline, and
// return. The Distributor module resolves affinity and admission
// synchronously on this goroutine; everything after it — endpoint
// identification, authentication — runs on the chosen serializer.
func handleRequest(req *sip.Request, tx sip.ServerTransaction) {
	addr := req.Source()
	if sipLim != nil && !sipLim.AllowRequest(hostOf(addr), string(req.Method)) {
		return
	}
	rd := sipstack.NewRequestRxData(req, tx, addr)
	sub.Pipeline.ProcessRxRequest(rd, "")
}

// hostOf strips the port from an "address:port" string so rate limiting
// tracks a client by IP rather than by ephemeral source port.
func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
