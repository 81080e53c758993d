/*
Package types defines the core data structures shared across the operator.

This package contains the domain model for a single host's membership in a SLURM
cluster: relations and their lifecycle events, facts scoped to relations, the
observed state of the two managed daemons (munge and slurmd), reconciliation
outcomes, and the operator-visible readiness status.

# Core Types

Relations and facts:
  - RelationName: auth-munge, slurm-controller, juju-info, slurm-compute
  - Scope: one concrete relation instance; the unit facts are scoped to
  - Event: a joined/changed/departed notification, handled in sequence order
  - Snapshot: point-in-time copy of all facts, the sole input to reconciliation

Daemon management:
  - DaemonID: auth (munge) or compute (slurmd)
  - DaemonState: installed/running flags, config fingerprint, dirty flag

Readiness:
  - Outcome: result of the last reconciliation pass, persisted
  - Status: blocked/waiting/active with a human-readable reason

All types are JSON-serializable; the fact store persists them as-is.
*/
package types
