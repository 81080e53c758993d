// Package status derives the single operator-visible readiness value
// (blocked, waiting, or active, with a reason) from fact completeness and the
// last reconciliation outcome.
package status
