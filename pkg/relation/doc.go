/*
Package relation models relation data bags and the per-relation event handlers.

A relation is a bidirectional channel with two key/value bags, one writable by
each side. The transport synchronizing bags between units is external; DirBags
reads and writes the local JSON copies under the agent data directory.

Handlers are deliberately thin. Each one maps a joined/changed/departed event
onto fact store updates and nothing else:

  - auth-munge: records the munge key when non-empty
  - slurm-controller: records each controller field that is present
  - juju-info: records host identity from the principal
  - slurm-compute: records peer presence only (publish happens in the reconciler)

Departure always clears the departed scope, which is the only mechanism by
which stale facts leave the store.
*/
package relation
