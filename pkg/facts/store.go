package facts

import (
	"fmt"

	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Store is the durable fact store. It holds the last-known values of inbound
// configuration fragments, the observed state of the managed daemons, and the
// outcome of the most recent reconciliation pass.
//
// Correctness of the agent depends on fact state surviving process restarts, so
// every method that touches the underlying database returns a *PersistenceError
// on failure. Callers treat that as fatal rather than retrying.
type Store interface {
	// Put records a fact for a relation scope, replacing any previous value.
	Put(scope types.Scope, name, value string) error
	// Get returns a fact value, or ok=false when the fact is absent.
	Get(scope types.Scope, name string) (value string, ok bool, err error)
	// Clear removes every fact belonging to a departed relation scope.
	Clear(scope types.Scope) error
	// Snapshot returns a copy of all facts for a reconciliation pass.
	Snapshot() (types.Snapshot, error)

	// DaemonState returns the persisted state for a daemon; a zero-value state
	// with the given ID when the daemon has never been touched.
	DaemonState(id types.DaemonID) (types.DaemonState, error)
	// SaveDaemonState persists a daemon state record.
	SaveDaemonState(state types.DaemonState) error

	// Outcome returns the last persisted reconciliation outcome.
	Outcome() (types.Outcome, error)
	// SaveOutcome persists a reconciliation outcome.
	SaveOutcome(outcome types.Outcome) error

	// LastSequence returns the sequence number of the last handled event.
	LastSequence() (uint64, error)
	// SaveLastSequence records the sequence number of a handled event.
	SaveLastSequence(seq uint64) error

	Close() error
}

// PersistenceError reports a fact store durability failure. The agent cannot
// guarantee correctness past one of these and halts.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("fact store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
