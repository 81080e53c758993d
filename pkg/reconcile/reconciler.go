package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/hpct-slurm-client-operator/pkg/daemon"
	"github.com/canonical/hpct-slurm-client-operator/pkg/facts"
	"github.com/canonical/hpct-slurm-client-operator/pkg/log"
	"github.com/canonical/hpct-slurm-client-operator/pkg/metrics"
	"github.com/canonical/hpct-slurm-client-operator/pkg/relation"
	"github.com/canonical/hpct-slurm-client-operator/pkg/status"
	"github.com/canonical/hpct-slurm-client-operator/pkg/sysinfo"
	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Reconciler converges local daemon state with the facts currently in the
// store. Every pass is a pure function of the fact snapshot: it recomputes the
// converged configuration from scratch, issues only the daemon operations whose
// effects are missing, and republishes outbound facts when they changed.
//
// Re-running the full pass on every event, instead of diffing events, is the
// point of the design: arrival order, repetition, and temporary absence of
// inputs all collapse into "what does the snapshot say right now".
type Reconciler struct {
	store    facts.Store
	ctrl     *daemon.Controller
	bags     relation.Bags
	probe    sysinfo.Probe
	identity string
}

// New creates a reconciler. identity is the unit identity published to the
// compute peer.
func New(store facts.Store, ctrl *daemon.Controller, bags relation.Bags, probe sysinfo.Probe, identity string) *Reconciler {
	return &Reconciler{
		store:    store,
		ctrl:     ctrl,
		bags:     bags,
		probe:    probe,
		identity: identity,
	}
}

// Run executes one full reconciliation pass and returns the derived unit
// status. The returned error is reserved for fact store persistence failures,
// which are fatal; daemon errors are recorded in the outcome and surface as a
// blocked status instead.
func (r *Reconciler) Run() (types.Status, error) {
	timer := prometheus.NewTimer(metrics.ReconcileDuration)
	defer timer.ObserveDuration()

	logger := log.WithComponent("reconciler")

	snapshot, err := r.store.Snapshot()
	if err != nil {
		return types.Status{}, err
	}

	var firstErr error
	record := func(err error) {
		logger.Error().Err(err).Msg("daemon operation failed")
		if firstErr == nil {
			firstErr = err
		}
	}

	hostname := r.hostname(snapshot)

	// A failure in one daemon aborts that daemon's remaining steps only; the
	// other daemon is independent and still attempted. Persistence failures
	// are not daemon failures and escalate immediately.
	authContent, authReady := AuthConfig(snapshot)
	if err := r.convergeDaemon(types.DaemonAuth, authContent, authReady); err != nil {
		var perr *facts.PersistenceError
		if errors.As(err, &perr) {
			return types.Status{}, err
		}
		record(err)
	}

	computeContent, computeReady := ComputeConfig(snapshot, hostname)
	if err := r.convergeDaemon(types.DaemonCompute, computeContent, computeReady); err != nil {
		var perr *facts.PersistenceError
		if errors.As(err, &perr) {
			return types.Status{}, err
		}
		record(err)
	}

	// Publish unit facts whenever a compute peer is present, so a peer that
	// joined late still observes them.
	if scope, ok := snapshot.ScopeFor(types.RelationCompute); ok {
		if err := r.publish(scope, snapshot, hostname); err != nil {
			record(fmt.Errorf("publish failed: %s: %w", scope.Relation, err))
		}
	}

	outcome := types.Outcome{
		Failed:    firstErr != nil,
		Converged: firstErr == nil && authReady && computeReady,
		Time:      time.Now(),
	}
	if firstErr != nil {
		outcome.Reason = daemon.ReasonFor(firstErr)
	}
	if err := r.store.SaveOutcome(outcome); err != nil {
		return types.Status{}, err
	}

	result := "ok"
	if outcome.Failed {
		result = "failed"
	}
	metrics.ReconcilePassesTotal.WithLabelValues(result).Inc()

	st := status.Derive(snapshot, outcome)
	metrics.SetUnitStatus(string(st.Kind))
	logger.Debug().Str("status", st.String()).Bool("converged", outcome.Converged).Msg("pass complete")
	return st, nil
}

// convergeDaemon runs the ensure chain for one daemon. Installation is
// unconditional and safe before any facts arrive; configure and restart wait
// until the daemon's dependent facts are present.
func (r *Reconciler) convergeDaemon(id types.DaemonID, content []byte, configure bool) (err error) {
	state, err := r.store.DaemonState(id)
	if err != nil {
		return err
	}
	// Persist whatever progress was made even when a later step fails, so a
	// restarted process does not repeat completed work. A save failure is a
	// durability loss and outranks any daemon error: the caller escalates it
	// instead of recording a blocked outcome.
	defer func() {
		if saveErr := r.store.SaveDaemonState(state); saveErr != nil {
			err = saveErr
		}
	}()

	state, err = r.ctrl.EnsureInstalled(state)
	if err != nil {
		return err
	}
	if !configure {
		return nil
	}
	state, err = r.ctrl.EnsureConfigured(state, content)
	if err != nil {
		return err
	}
	state, err = r.ctrl.EnsureRunning(state)
	return err
}

// hostname resolves the node name: the principal-supplied identity wins, the
// local probe is the fallback.
func (r *Reconciler) hostname(snapshot types.Snapshot) string {
	if h, ok := snapshot.Value(types.RelationHostIntegration, types.KeyHostHostname); ok {
		return h
	}
	h, err := r.probe.Hostname()
	if err != nil {
		logger := log.WithComponent("reconciler")
		logger.Warn().Err(err).Msg("hostname probe failed")
		return ""
	}
	return h
}

// address resolves the published unit address the same way as hostname.
func (r *Reconciler) address(snapshot types.Snapshot) string {
	if a, ok := snapshot.Value(types.RelationHostIntegration, types.KeyHostAddress); ok {
		return a
	}
	a, err := r.probe.Address()
	if err != nil {
		logger := log.WithComponent("reconciler")
		logger.Warn().Err(err).Msg("address probe failed")
		return ""
	}
	return a
}

// publish writes the unit facts to the compute relation's outbound bag, but
// only when something actually changed; the nonce is bumped alongside so the
// peer can cheaply detect the update.
func (r *Reconciler) publish(scope types.Scope, snapshot types.Snapshot, hostname string) error {
	logger := log.WithRelation(string(scope.Relation))

	bag, err := r.bags.Outbound(scope)
	if err != nil {
		return err
	}

	outbound := map[string]string{
		types.KeyUnitHostname: hostname,
		types.KeyUnitAddress:  r.address(snapshot),
		types.KeyUnitIdentity: r.identity,
		types.KeyUnitCPUCount: strconv.Itoa(r.probe.CPUCount()),
	}
	if mem, err := r.probe.FreeMemoryMB(); err == nil {
		outbound[types.KeyUnitFreeMemory] = strconv.FormatUint(mem, 10)
	} else {
		logger.Warn().Err(err).Msg("memory probe failed")
	}

	changed := false
	for k, v := range outbound {
		if cur, _ := bag.Read(k); cur != v {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	keys := make([]string, 0, len(outbound))
	for k := range outbound {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := bag.Write(k, outbound[k]); err != nil {
			return err
		}
	}
	if err := bag.Write(types.KeyNonce, uuid.NewString()); err != nil {
		return err
	}
	metrics.FactsPublishedTotal.Inc()
	logger.Info().Msg("unit facts published")
	return nil
}
