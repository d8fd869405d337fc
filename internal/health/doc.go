// Package health holds the probe state machine: two toggleable flags
// (live, ready) plus the process start time, and composable probes that
// turn them into liveness, readiness, and startup checks.
//
// Probes are evaluated at request time; nil = OK, non-nil = FAIL with a
// reason. Time gating is a pure comparison of now against the recorded
// start time, so there are no timers or background goroutines.
//
// [ShutdownGate] coordinates graceful shutdown: once closed, readiness
// probes fail immediately (via atomic.Bool) so load balancers stop
// sending traffic before in-flight requests are drained.
package health
