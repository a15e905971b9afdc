package pathacl

import (
	"github.com/fjordsec/fjordftpd/pkg/ipmatch"
	"github.com/fjordsec/fjordftpd/pkg/logging"
)

// Decision describes one permission check outcome.
type Decision struct {
	User       string
	ClientIP   string
	Path       string
	Permission string
	Allowed    bool
	Cached     bool
	Reason     string
}

// Observer receives every decision the engine makes. Implementations must
// be safe for concurrent use and should return quickly; they run on the
// request path.
type Observer interface {
	ObserveDecision(d Decision)
}

// NopObserver discards all decisions.
type NopObserver struct{}

// ObserveDecision implements Observer
func (NopObserver) ObserveDecision(Decision) {}

// AccessLogObserver writes decisions to the global access logger with
// anonymized client addresses.
type AccessLogObserver struct{}

// ObserveDecision implements Observer
func (AccessLogObserver) ObserveDecision(d Decision) {
	logging.Access.LogDecision(d.User, ipmatch.Anonymize(d.ClientIP), d.Path, d.Permission, d.Allowed, d.Cached, "reason", d.Reason)
}
