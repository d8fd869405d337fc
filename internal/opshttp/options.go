package opshttp

import (
	"net/http"

	"github.com/podpulse/podpulse/internal/health"
)

type Options struct {
	Host        string
	Port        int
	Metrics     http.Handler
	EnablePprof bool

	// Health and Readiness back /-/healthy and /-/ready for the cluster
	// operator; they include the shutdown gate, unlike the demo-facing
	// probe endpoints on the public port.
	Health    health.Probe
	Readiness health.Probe
}
