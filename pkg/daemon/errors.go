package daemon

import (
	"fmt"

	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// InstallError reports a package installation failure. Recoverable: the next
// event re-attempts the full reconciliation pass.
type InstallError struct {
	Daemon types.DaemonID
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed: %s: %v", e.Daemon, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Reason returns the operator-facing blocked reason.
func (e *InstallError) Reason() string {
	return fmt.Sprintf("install failed: %s", e.Daemon)
}

// WriteError reports a configuration write failure.
type WriteError struct {
	Daemon types.DaemonID
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed: %s: %v", e.Daemon, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Reason returns the operator-facing blocked reason.
func (e *WriteError) Reason() string {
	return fmt.Sprintf("write failed: %s", e.Daemon)
}

// ServiceError reports a service manager failure.
type ServiceError struct {
	Daemon types.DaemonID
	Err    error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("restart failed: %s: %v", e.Daemon, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Reason returns the operator-facing blocked reason.
func (e *ServiceError) Reason() string {
	return fmt.Sprintf("restart failed: %s", e.Daemon)
}

// Reasoner is implemented by the daemon error types; it yields the short
// reason string surfaced through the status reporter.
type Reasoner interface {
	Reason() string
}

// ReasonFor returns the status reason for a daemon error, falling back to the
// error text for anything untyped.
func ReasonFor(err error) string {
	if r, ok := err.(Reasoner); ok {
		return r.Reason()
	}
	return err.Error()
}
