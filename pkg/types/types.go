package types

import (
	"fmt"
	"time"
)

// RelationName identifies a relation type by its charm-visible name.
type RelationName string

const (
	// RelationAuthMunge supplies the cluster-wide munge key (secret provider).
	RelationAuthMunge RelationName = "auth-munge"
	// RelationController supplies the slurmctld connection facts (controller provider).
	RelationController RelationName = "slurm-controller"
	// RelationHostIntegration supplies local unit identity from the principal.
	RelationHostIntegration RelationName = "juju-info"
	// RelationCompute is the outbound relation on which this unit publishes its
	// node facts so the controller can admit it into the cluster.
	RelationCompute RelationName = "slurm-compute"
)

// Bag keys read from peer relation data.
const (
	KeySecretValue       = "secret-value"
	KeyControllerAddress = "controller-address"
	KeyControllerPort    = "controller-port"
	KeyClusterName       = "cluster-name"
	KeyPartitionName     = "partition-name"
	KeyHostHostname      = "host-hostname"
	KeyHostAddress       = "host-address"
)

// KeyPeerJoined is a bookkeeping fact recording that a publishing relation has
// a live peer. It never appears in a bag.
const KeyPeerJoined = "peer-joined"

// Bag keys written to the slurm-compute relation for the peer to observe.
const (
	KeyUnitHostname   = "unit-hostname"
	KeyUnitAddress    = "unit-address"
	KeyUnitIdentity   = "unit-identity"
	KeyUnitCPUCount   = "unit-cpu-count"
	KeyUnitFreeMemory = "unit-free-memory"
	KeyNonce          = "nonce"
)

// Scope identifies one concrete relation instance. Facts are stored per scope so
// that relation departure can clear exactly the facts that came from it.
type Scope struct {
	Relation RelationName `json:"relation"`
	ID       int          `json:"id"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%d", s.Relation, s.ID)
}

// EventKind is a relation lifecycle notification type.
type EventKind string

const (
	EventJoined   EventKind = "joined"
	EventChanged  EventKind = "changed"
	EventDeparted EventKind = "departed"
)

// Event is one inbound relation lifecycle notification. Events are handled
// strictly in Sequence order, one at a time.
type Event struct {
	Sequence   uint64       `json:"sequence"`
	Relation   RelationName `json:"relation"`
	RelationID int          `json:"relation_id"`
	Kind       EventKind    `json:"kind"`
}

// Scope returns the fact scope this event belongs to.
func (e Event) Scope() Scope {
	return Scope{Relation: e.Relation, ID: e.RelationID}
}

// DaemonID names one of the two managed daemons.
type DaemonID string

const (
	// DaemonAuth is the munge authentication-key daemon.
	DaemonAuth DaemonID = "auth"
	// DaemonCompute is the slurmd compute daemon.
	DaemonCompute DaemonID = "compute"
)

// DaemonState is the observed condition of one managed daemon. Fingerprint holds
// the hash of the last configuration content successfully written to disk; it is
// updated only after the write succeeds. Dirty means a restart is still owed for
// a configuration change.
type DaemonState struct {
	ID          DaemonID  `json:"id"`
	Installed   bool      `json:"installed"`
	Running     bool      `json:"running"`
	Fingerprint string    `json:"fingerprint"`
	Dirty       bool      `json:"dirty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time copy of all facts, keyed by scope then fact name.
// Reconciliation is a pure function of a Snapshot; it never reads the store
// directly.
type Snapshot map[Scope]map[string]string

// Value returns a fact by relation name, searching whichever scope of that
// relation is present. At most one live relation instance per relation name is
// assumed on this unit.
func (s Snapshot) Value(rel RelationName, name string) (string, bool) {
	for scope, facts := range s {
		if scope.Relation != rel {
			continue
		}
		if v, ok := facts[name]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// ScopeFor returns the scope of the live relation instance with the given name.
func (s Snapshot) ScopeFor(rel RelationName) (Scope, bool) {
	for scope := range s {
		if scope.Relation == rel {
			return scope, true
		}
	}
	return Scope{}, false
}

// Outcome records the result of the most recent reconciliation pass. It is
// persisted alongside the facts so status survives process restarts.
type Outcome struct {
	Failed    bool      `json:"failed"`
	Reason    string    `json:"reason,omitempty"`
	Converged bool      `json:"converged"`
	Time      time.Time `json:"time"`
}

// StatusKind is the coarse unit readiness classification.
type StatusKind string

const (
	StatusBlocked StatusKind = "blocked"
	StatusWaiting StatusKind = "waiting"
	StatusActive  StatusKind = "active"
)

// Status is the operator-visible readiness value derived from fact completeness
// and the last reconciliation outcome.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

func (s Status) String() string {
	if s.Reason == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Reason)
}
