/*
Package daemon wraps the two managed daemons (munge and slurmd) behind
idempotent ensure operations.

The controller exposes three operations, all safe to call repeatedly:

  - EnsureInstalled: installs the package once, no-op afterwards
  - EnsureConfigured: writes configuration only when its SHA-224 fingerprint
    differs from the last applied one, marking the daemon dirty
  - EnsureRunning: restarts only a dirty or inactive service

This contract bounds churn: the reconciler re-runs the full pass on every
relation event, and the ensure operations guarantee that passes with unchanged
inputs issue zero writes and zero restarts.

Failures are typed (InstallError, WriteError, ServiceError) and carry the
daemon ID; their Reason() strings become the blocked status the operator sees.
*/
package daemon
