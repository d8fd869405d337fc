// Package probehttp serves the probe contract: liveness, readiness, and
// startup checks plus the chaos toggles, pod identity, and CPU burn.
package probehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/podpulse/podpulse/internal/health"
	"github.com/podpulse/podpulse/internal/log"
	"github.com/podpulse/podpulse/internal/podinfo"
	"github.com/podpulse/podpulse/internal/stress"
)

type Options struct {
	State        *health.State
	StartupDelay time.Duration
	StartupGrace time.Duration
	StressWindow time.Duration
	Logger       log.Logger

	// OnToggle fires after a flag flip with the flag name and new value,
	// used to keep prometheus gauges in step with the state.
	OnToggle func(flag string, value bool)

	// OnStress fires after each completed burn with the elapsed seconds.
	OnStress func(seconds float64)

	// Info overrides pod identity gathering in tests. Only /info pays
	// for the full snapshot; everything else uses Name.
	Info func() podinfo.Snapshot

	// Name supplies the pod name for probe, toggle, and stress bodies.
	// Must stay cheap: the full snapshot may resolve the pod IP over
	// DNS, and probe responses must return promptly.
	Name func() string

	// Environ overrides environment listing in tests.
	Environ func() []podinfo.EnvVar
}

// API carries the probe handlers and their cached probe closures.
type API struct {
	opts Options

	liveness  health.Probe
	readiness health.Probe
	startup   health.Probe
}

func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Info == nil {
		opts.Info = podinfo.Gather
	}
	if opts.Name == nil {
		opts.Name = podinfo.Name
	}
	if opts.Environ == nil {
		opts.Environ = podinfo.Environ
	}
	return &API{
		opts:      opts,
		liveness:  opts.State.LivenessProbe(),
		readiness: opts.State.ReadinessProbe(opts.StartupDelay),
		startup:   opts.State.StartupProbe(opts.StartupGrace),
	}
}

// RegisterRoutes attaches the probe surface to the main chi router.
// Everything is GET by design: the toggles are meant to be clickable
// from a browser during a demo.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", api.HandleLiveness)
	r.Get("/ready", api.HandleReadiness)
	r.Get("/startup", api.HandleStartup)
	r.Get("/toggle-health", api.HandleToggleHealth)
	r.Get("/toggle-ready", api.HandleToggleReady)
	r.Get("/info", api.HandleInfo)
	r.Get("/stress", api.HandleStress)
}

// HandleLiveness answers the liveness probe from the live flag alone.
func (api *API) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	api.respondProbe(w, r, api.liveness, "healthy")
}

// HandleReadiness answers the readiness probe: 503 inside the startup
// delay window, then the ready flag decides.
func (api *API) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	api.respondProbe(w, r, api.readiness, "ready")
}

// HandleStartup answers the startup probe, a pure function of uptime.
func (api *API) HandleStartup(w http.ResponseWriter, r *http.Request) {
	api.respondProbe(w, r, api.startup, "started")
}

func (api *API) respondProbe(w http.ResponseWriter, r *http.Request, p health.Probe, okStatus string) {
	resp := ProbeResponse{
		Pod:           api.opts.Name(),
		UptimeSeconds: api.opts.State.Uptime().Seconds(),
	}
	if err := p.Check(r.Context()); err != nil {
		reason := err.Error()
		resp.Status = statusWord(reason)
		resp.Reason = reason
		api.writeJSON(r.Context(), w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = okStatus
	api.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// statusWord trims a probe failure reason to its leading word, e.g.
// "starting up: 1.5s remaining" -> "starting up".
func statusWord(reason string) string {
	if i := strings.IndexByte(reason, ':'); i > 0 {
		return reason[:i]
	}
	return reason
}

// HandleToggleHealth flips the live flag and reports the new value.
func (api *API) HandleToggleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := api.opts.State.ToggleLive()
	if api.opts.OnToggle != nil {
		api.opts.OnToggle("live", v)
	}
	api.opts.Logger.Info(ctx, "liveness toggled", "live", v)
	api.writeJSON(ctx, w, http.StatusOK, ToggleResponse{
		Flag:  "live",
		Value: v,
		Pod:   api.opts.Name(),
	})
}

// HandleToggleReady flips the ready flag and reports the new value.
func (api *API) HandleToggleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := api.opts.State.ToggleReady()
	if api.opts.OnToggle != nil {
		api.opts.OnToggle("ready", v)
	}
	api.opts.Logger.Info(ctx, "readiness toggled", "ready", v)
	api.writeJSON(ctx, w, http.StatusOK, ToggleResponse{
		Flag:  "ready",
		Value: v,
		Pod:   api.opts.Name(),
	})
}

// HandleInfo serves a read-only identity snapshot. Recomputed per
// request so a changed environment shows up immediately.
func (api *API) HandleInfo(w http.ResponseWriter, r *http.Request) {
	resp := InfoResponse{
		Snapshot:      api.opts.Info(),
		Live:          api.opts.State.Live(),
		Ready:         api.opts.State.Ready(),
		UptimeSeconds: api.opts.State.Uptime().Seconds(),
		Env:           api.opts.Environ(),
	}
	api.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// HandleStress burns CPU for the configured window, then reports what
// it did. Runs in the request goroutine and always to completion.
func (api *API) HandleStress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := stress.Burn(api.opts.StressWindow)
	if api.opts.OnStress != nil {
		api.opts.OnStress(res.Elapsed.Seconds())
	}
	api.opts.Logger.Info(ctx, "stress window complete",
		"duration_seconds", res.Elapsed.Seconds(),
		"iterations", res.Iterations,
	)
	api.writeJSON(ctx, w, http.StatusOK, StressResponse{
		DurationSeconds: res.Elapsed.Seconds(),
		Iterations:      res.Iterations,
		Pod:             api.opts.Name(),
	})
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.opts.Logger.Error(ctx, err, "encode probe response")
	}
}
