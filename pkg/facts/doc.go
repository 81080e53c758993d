/*
Package facts provides BoltDB-backed persistence for relation facts and daemon
state.

The fact store holds the last-known values of the configuration fragments
received over relations (munge key, controller address, host identity), the
observed state of the two managed daemons, and the outcome of the most recent
reconciliation pass. All of it must survive process restarts: the event loop is
resumable only because every handled event leaves the store in a consistent,
durable state.

# Layout

One BoltDB file (<dataDir>/facts.db) with three buckets:

	facts    "<relation>:<id>/<name>" -> raw value bytes
	daemons  "<daemon-id>"            -> JSON DaemonState
	meta     "outcome", "sequence"    -> JSON Outcome, big-endian uint64

Scoping facts by relation instance makes departure cheap and exact: Clear walks
the key prefix of the departed scope and deletes only those entries, leaving
facts from other relations untouched.

# Failure model

Any BoltDB failure surfaces as *PersistenceError. The agent treats these as
fatal; it never retries a failed write because a store that cannot persist
cannot uphold the restart guarantee.
*/
package facts
