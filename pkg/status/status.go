package status

import (
	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Derive computes the operator-visible readiness status from the current fact
// snapshot and the last reconciliation outcome. It is a pure function: it
// never mutates state and is recomputed after every pass.
//
// Precedence: a recorded failure always wins (the operator must see why the
// unit is stuck), then missing required facts in dependency order (the munge
// key gates everything, then the controller), then active.
func Derive(snapshot types.Snapshot, outcome types.Outcome) types.Status {
	if outcome.Failed {
		return types.Status{Kind: types.StatusBlocked, Reason: outcome.Reason}
	}
	if _, ok := snapshot.Value(types.RelationAuthMunge, types.KeySecretValue); !ok {
		return types.Status{Kind: types.StatusWaiting, Reason: "secret"}
	}
	if _, ok := snapshot.Value(types.RelationController, types.KeyControllerAddress); !ok {
		return types.Status{Kind: types.StatusWaiting, Reason: "controller"}
	}
	return types.Status{Kind: types.StatusActive}
}
