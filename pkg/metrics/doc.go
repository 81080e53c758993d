// Package metrics exposes Prometheus metrics for event handling,
// reconciliation passes, daemon churn, and unit readiness.
package metrics
