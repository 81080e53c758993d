package daemon

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/canonical/hpct-slurm-client-operator/pkg/log"
	"github.com/canonical/hpct-slurm-client-operator/pkg/metrics"
	"github.com/canonical/hpct-slurm-client-operator/pkg/system"
	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Spec describes how one managed daemon maps onto the host: the package that
// provides it, its systemd unit, and where its configuration lives.
type Spec struct {
	ID         types.DaemonID
	Package    string
	Service    string
	ConfigPath string
	ConfigMode os.FileMode
}

// DefaultSpecs returns the production daemon table: munge for authentication,
// slurmd for compute.
func DefaultSpecs() map[types.DaemonID]Spec {
	return map[types.DaemonID]Spec{
		types.DaemonAuth: {
			ID:         types.DaemonAuth,
			Package:    "munge",
			Service:    "munge",
			ConfigPath: "/etc/munge/munge.key",
			ConfigMode: 0400,
		},
		types.DaemonCompute: {
			ID:         types.DaemonCompute,
			Package:    "slurmd",
			Service:    "slurmd",
			ConfigPath: "/etc/slurm/slurm.conf",
			ConfigMode: 0644,
		},
	}
}

// Controller applies idempotent install/configure/restart operations to the
// managed daemons. DaemonState is passed in and returned explicitly; the
// controller keeps no state of its own beyond the spec table and the host
// capability interface.
type Controller struct {
	sys   system.Interface
	specs map[types.DaemonID]Spec
}

// NewController creates a controller over the given host capabilities.
func NewController(sys system.Interface, specs map[types.DaemonID]Spec) *Controller {
	return &Controller{sys: sys, specs: specs}
}

// Fingerprint returns the hex SHA-224 digest of configuration content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum224(content)
	return hex.EncodeToString(sum[:])
}

// EnsureInstalled installs the daemon's package unless the state already
// records it as installed.
func (c *Controller) EnsureInstalled(state types.DaemonState) (types.DaemonState, error) {
	if state.Installed {
		return state, nil
	}
	spec := c.specs[state.ID]
	logger := log.WithDaemon(string(state.ID))
	logger.Debug().Str("package", spec.Package).Msg("installing package")
	if err := c.sys.InstallPackage(spec.Package); err != nil {
		return state, &InstallError{Daemon: state.ID, Err: err}
	}
	state.Installed = true
	state.UpdatedAt = time.Now()
	logger.Info().Str("package", spec.Package).Msg("package installed")
	return state, nil
}

// EnsureConfigured writes content to the daemon's configuration path when its
// fingerprint differs from the last applied one, and marks the daemon dirty.
// Identical content is a no-op: repeated reconciliation passes triggered by
// unrelated events must not churn the filesystem or the service.
func (c *Controller) EnsureConfigured(state types.DaemonState, content []byte) (types.DaemonState, error) {
	fp := Fingerprint(content)
	if fp == state.Fingerprint {
		return state, nil
	}
	spec := c.specs[state.ID]
	logger := log.WithDaemon(string(state.ID))
	logger.Debug().Str("path", spec.ConfigPath).Msg("writing configuration")
	if err := c.sys.WriteFile(spec.ConfigPath, content, spec.ConfigMode); err != nil {
		return state, &WriteError{Daemon: state.ID, Err: err}
	}
	// Fingerprint is updated only after the write succeeded.
	state.Fingerprint = fp
	state.Dirty = true
	state.UpdatedAt = time.Now()
	metrics.ConfigWritesTotal.WithLabelValues(string(state.ID)).Inc()
	logger.Info().Str("path", spec.ConfigPath).Msg("configuration applied")
	return state, nil
}

// EnsureRunning restarts the daemon when it is dirty or not active, clearing
// the dirty flag. An already-running daemon with clean configuration is left
// alone.
func (c *Controller) EnsureRunning(state types.DaemonState) (types.DaemonState, error) {
	spec := c.specs[state.ID]
	active, err := c.sys.IsServiceActive(spec.Service)
	if err != nil {
		return state, &ServiceError{Daemon: state.ID, Err: err}
	}
	if active && !state.Dirty {
		state.Running = true
		return state, nil
	}
	logger := log.WithDaemon(string(state.ID))
	logger.Debug().Str("service", spec.Service).Msg("restarting service")
	if err := c.sys.RestartService(spec.Service); err != nil {
		state.Running = false
		return state, &ServiceError{Daemon: state.ID, Err: err}
	}
	state.Running = true
	state.Dirty = false
	state.UpdatedAt = time.Now()
	metrics.ServiceRestartsTotal.WithLabelValues(string(state.ID)).Inc()
	logger.Info().Str("service", spec.Service).Msg("service running")
	return state, nil
}

// Stop stops the daemon's service and records it as not running.
func (c *Controller) Stop(state types.DaemonState) (types.DaemonState, error) {
	spec := c.specs[state.ID]
	if err := c.sys.StopService(spec.Service); err != nil {
		return state, &ServiceError{Daemon: state.ID, Err: err}
	}
	state.Running = false
	state.UpdatedAt = time.Now()
	return state, nil
}
