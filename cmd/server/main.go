package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podpulse/podpulse/internal/cfg"
	"github.com/podpulse/podpulse/internal/health"
	"github.com/podpulse/podpulse/internal/httpserver"
	"github.com/podpulse/podpulse/internal/log"
	"github.com/podpulse/podpulse/internal/metrics"
	"github.com/podpulse/podpulse/internal/opshttp"
	"github.com/podpulse/podpulse/internal/otelx"
	"github.com/podpulse/podpulse/internal/probehttp"
	"github.com/podpulse/podpulse/internal/prof"
	"github.com/podpulse/podpulse/internal/ratelimit"
	"github.com/podpulse/podpulse/internal/sitehandler"
	v "github.com/podpulse/podpulse/internal/version"
	"github.com/podpulse/podpulse/internal/webassets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix PODPULSE_ and validate
	cfg.FillFromEnv(flag.CommandLine, "PODPULSE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// validate config
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:        v.AppName,
		Level:      lvl,
		JsonFormat: conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"startup_delay", conf.StartupDelay,
		"startup_grace", conf.StartupGrace,
		"stress_duration", conf.StressDuration,
		"drain_period", conf.DrainPeriod,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"pyro_tenant", conf.PyroTenantID,
		"trace_sample", conf.TraceSample,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       vi.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	profilingActive := err == nil && conf.EnablePyroscope
	if err != nil {
		L.Error(ctx, err, "failed to start pyroscope profiling, continuing without it")
	}

	// Setup OTLP tracing
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true, // in-cluster collector
		Sample:    conf.TraceSample,
		Service:   vi.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "failed to initialize tracing, continuing without it")
	}

	// Setup prometheus metrics
	m := metrics.New()
	m.SetBuildInfoFromVersion(vi.AppName, "server", &vi)
	m.SetProfilingActive(profilingActive)

	// Probe state: both flags start true, uptime clock starts now
	state := health.NewState()
	m.SetProbeFlag("live", true)
	m.SetProbeFlag("ready", true)

	// Probe API served on the public port
	probeAPI := probehttp.NewAPI(probehttp.Options{
		State:        state,
		StartupDelay: conf.StartupDelay,
		StartupGrace: conf.StartupGrace,
		StressWindow: conf.StressDuration,
		Logger:       L,
		OnToggle: func(flag string, value bool) {
			m.SetProbeFlag(flag, value)
			m.IncToggle(flag)
		},
		OnStress: m.ObserveStress,
	})

	// Landing page handler
	siteHandler, err := sitehandler.New(&sitehandler.Options{
		Logger:     L,
		State:      state,
		TemplateFS: webassets.TemplateFS(),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}

	// Rate limiter middleware, keeps a curl loop on /stress from starving
	// the probe endpoints
	limiter := ratelimit.New(ctx,
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
	)

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// start public http server with probe endpoints and landing page
	appHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Host:         conf.HTTPHost,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		APIRoutes:    probeAPI.RegisterRoutes,
		SiteHandler:  siteHandler,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = appHTTPStop(context.Background()) }()

	// start admin/ops listener to serve metrics, health checks and pprof.
	// the admin port is never exposed via Service/Ingress; connections from
	// public ips are rejected in middleware in case that ever changes.
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Host:        conf.HTTPHost,
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		// the operator-facing probes honor the shutdown gate so rollouts
		// drain cleanly, unlike the demo toggles on the public port
		Health:    health.All(gate.Probe(), state.LivenessProbe()),
		Readiness: health.All(gate.Probe(), state.ReadinessProbe(conf.StartupDelay)),
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	L.Info(ctx, "application started",
		"http_addr", fmt.Sprintf("%s:%d", conf.HTTPHost, conf.HTTPPort),
		"admin_addr", fmt.Sprintf("%s:%d", conf.HTTPHost, conf.AdminPort),
	)

	// block until ctrl+c / sigterm
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail the ops readiness probe so the endpoints controller stops
	// routing new traffic before we close the listeners
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining",
		"drain_period", conf.DrainPeriod,
	)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := appHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "app http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	if shutdownOTEL != nil {
		if err := shutdownOTEL(shutdownCtx); err != nil {
			L.Error(context.Background(), err, "otel shutdown")
		}
	}

	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}
