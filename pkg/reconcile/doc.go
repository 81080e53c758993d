/*
Package reconcile implements the convergence core of the operator.

A reconciliation pass is a pure function of the current fact snapshot. It moves
the unit through three implicit readiness states:

	Incomplete   required facts absent; packages are still installed, since
	             installation is unconditional and safe early
	Configuring  facts present but daemon configuration missing or stale;
	             ensure-configured and ensure-running are issued
	Converged    applied configuration matches the facts and both daemons run

Every fact store mutation triggers a full pass. There is no event diffing: the
pass recomputes the converged configuration per daemon, relies on the daemon
controller's idempotency to bound churn, and rewrites outbound facts only when
their values changed. This trades redundant computation for immunity to event
ordering, repetition, and partial arrival.

A daemon controller failure aborts that daemon's remaining steps, is recorded
in the persisted outcome, and surfaces as a blocked status. It is not retried
here; the next externally triggered event re-attempts the whole pass.
*/
package reconcile
