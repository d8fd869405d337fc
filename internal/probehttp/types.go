package probehttp

import (
	"github.com/podpulse/podpulse/internal/podinfo"
)

// ProbeResponse is the body for /healthz, /ready, and /startup. Status
// carries the probe verdict; Reason is present only on failures and
// distinguishes a time gate ("starting up") from an explicit toggle.
type ProbeResponse struct {
	Status        string  `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	Pod           string  `json:"pod"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ToggleResponse reports the flag's new value after a flip.
type ToggleResponse struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
	Pod   string `json:"pod"`
}

// InfoResponse is the /info payload: identity, flag state, and the
// (masked) environment. Read-only; serving it mutates nothing.
type InfoResponse struct {
	podinfo.Snapshot
	Live          bool             `json:"live"`
	Ready         bool             `json:"ready"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Env           []podinfo.EnvVar `json:"env"`
}

// StressResponse reports the completed CPU-burn window.
type StressResponse struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Iterations      uint64  `json:"iterations"`
	Pod             string  `json:"pod"`
}
