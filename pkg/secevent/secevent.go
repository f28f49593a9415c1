// Package secevent reports the security-relevant outcomes the distributor
// and authenticator surface: unidentified requests, and the result of every
// authentication challenge. The event shape mirrors a structured security
// audit log, narrowed to the handful of event kinds the endpoint identifier
// and authenticator modules raise.
package secevent

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Category values identify each kind of security event.
const (
	CategoryInvalidEndpoint = "invalid_endpoint"
	CategoryAuthChallenge   = "auth_challenge_sent"
	CategoryAuthSuccess     = "auth_success"
	CategoryAuthFailed      = "auth_failed_challenge_response"
)

// Event is a structured security record.
type Event struct {
	Category  string
	Username  string
	CallID    string
	SourceIP  string
	Timestamp time.Time
	Details   map[string]interface{}
}

// Reporter emits security events. The default implementation logs them
// structurally; production wiring can swap in a Reporter that also pushes to
// a SIEM or audit-chain writer the way pkg/security/audit's ChainWriter does.
type Reporter interface {
	Report(evt Event)
}

// LogReporter logs every event through a *logrus.Logger.
type LogReporter struct {
	Logger *logrus.Logger
}

// NewLogReporter creates a Reporter that logs through logger.
func NewLogReporter(logger *logrus.Logger) *LogReporter {
	return &LogReporter{Logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(evt Event) {
	if r.Logger == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	fields := logrus.Fields{
		"category":  evt.Category,
		"call_id":   evt.CallID,
		"source_ip": evt.SourceIP,
		"timestamp": evt.Timestamp,
	}
	if evt.Username != "" {
		fields["username"] = evt.Username
	}
	for k, v := range evt.Details {
		fields[k] = v
	}

	entry := r.Logger.WithFields(fields)
	switch evt.Category {
	case CategoryInvalidEndpoint, CategoryAuthFailed:
		entry.Warn("Security event")
	default:
		entry.Info("Security event")
	}
}

// ReportInvalidEndpoint reports that a non-ACK request arrived from an
// origin that could not be matched to a configured endpoint.
func ReportInvalidEndpoint(r Reporter, fromUser, sourceIP, callID string) {
	if r == nil {
		return
	}
	r.Report(Event{
		Category: CategoryInvalidEndpoint,
		Username: fromUser,
		CallID:   callID,
		SourceIP: sourceIP,
	})
}

// ReportAuthChallengeSent reports that a 401 challenge was sent.
func ReportAuthChallengeSent(r Reporter, username, sourceIP, callID string) {
	if r == nil {
		return
	}
	r.Report(Event{Category: CategoryAuthChallenge, Username: username, SourceIP: sourceIP, CallID: callID})
}

// ReportAuthSuccess reports a successfully authenticated request.
func ReportAuthSuccess(r Reporter, username, sourceIP, callID string) {
	if r == nil {
		return
	}
	r.Report(Event{Category: CategoryAuthSuccess, Username: username, SourceIP: sourceIP, CallID: callID})
}

// ReportAuthFailedChallengeResponse reports a failed or erroring digest
// response.
func ReportAuthFailedChallengeResponse(r Reporter, username, sourceIP, callID string) {
	if r == nil {
		return
	}
	r.Report(Event{Category: CategoryAuthFailed, Username: username, SourceIP: sourceIP, CallID: callID})
}
