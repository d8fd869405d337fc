package opshttp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/podpulse/podpulse/internal/health"
	"github.com/podpulse/podpulse/internal/log"
	"github.com/podpulse/podpulse/internal/metrics"
)

// test helpers

func getFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startOps(t *testing.T, opts Options) int {
	t.Helper()
	if opts.Port == 0 {
		opts.Port = getFreePort(t)
	}
	opts.Host = "127.0.0.1"
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { stop(ctx) })
	return opts.Port
}

func opsGet(t *testing.T, port int, path string) *http.Response {
	t.Helper()
	addr := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	resp, err := http.Get(addr)
	if err != nil {
		t.Fatalf("GET %s: %v", addr, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

// lifecycle

func TestStart_GracefulShutdown(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop, err := Start(ctx, log.Nop(), Options{Host: "127.0.0.1", Port: port})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp := opsGet(t, port, "/-/healthy")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthy = %d", resp.StatusCode)
	}

	if err := stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// idempotent
	if err := stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	if _, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/-/healthy", port)); err == nil {
		t.Fatal("server still answering after shutdown")
	}
}

func TestStart_PortConflict(t *testing.T) {
	port := startOps(t, Options{})

	_, err := Start(context.Background(), log.Nop(), Options{Host: "127.0.0.1", Port: port})
	if err == nil {
		t.Fatal("expected error on port conflict")
	}
}

// health endpoints

func TestStart_HealthyAndReady(t *testing.T) {
	port := startOps(t, Options{
		Health:    health.Fixed(true, ""),
		Readiness: health.Fixed(true, ""),
	})

	resp := opsGet(t, port, "/-/healthy")
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK || body != "ok\n" {
		t.Fatalf("healthy: code=%d body=%q", resp.StatusCode, body)
	}

	resp = opsGet(t, port, "/-/ready")
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK || body != "ready\n" {
		t.Fatalf("ready: code=%d body=%q", resp.StatusCode, body)
	}
}

func TestStart_ReadinessGateClosed(t *testing.T) {
	var gate health.ShutdownGate
	gate.Set("draining")

	port := startOps(t, Options{
		Health:    health.Fixed(true, ""),
		Readiness: gate.Probe(),
	})

	resp := opsGet(t, port, "/-/ready")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(body, "draining") {
		t.Fatalf("body = %q, want drain reason", body)
	}
}

func TestStart_NilProbesServe200(t *testing.T) {
	port := startOps(t, Options{})

	for _, path := range []string{"/-/healthy", "/-/ready"} {
		resp := opsGet(t, port, path)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s = %d, want 200 with nil probe", path, resp.StatusCode)
		}
	}
}

// metrics

func TestStart_MetricsEndpoint(t *testing.T) {
	m := metrics.New()
	port := startOps(t, Options{Metrics: m.Handler()})

	resp := opsGet(t, port, "/metrics")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatal("metrics output missing go_goroutines")
	}
	if !strings.Contains(body, "probe_live") {
		t.Fatal("metrics output missing probe_live")
	}
}

func TestStart_MetricsEndpoint_Nil(t *testing.T) {
	port := startOps(t, Options{})

	resp := opsGet(t, port, "/metrics")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("metrics with nil handler = %d, want 404", resp.StatusCode)
	}
}

// pprof

func TestStart_PprofEnabled(t *testing.T) {
	port := startOps(t, Options{EnablePprof: true})

	resp := opsGet(t, port, "/debug/pprof/")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pprof index = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "goroutine") {
		t.Fatal("pprof index missing profiles")
	}
}

func TestStart_PprofDisabled(t *testing.T) {
	port := startOps(t, Options{EnablePprof: false})

	resp := opsGet(t, port, "/debug/pprof/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("pprof disabled = %d, want 404", resp.StatusCode)
	}
}

// network guard

func TestRequireNonPublicNetwork_Loopback(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := requireNonPublicNetwork(log.Nop(), inner)

	for _, addr := range []string{"127.0.0.1:12345", "[::1]:12345"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/-/healthy", http.NoBody)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("loopback %s: status = %d, want 200", addr, rec.Code)
		}
	}
}

func TestRequireNonPublicNetwork_PrivateAndLinkLocal(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := requireNonPublicNetwork(log.Nop(), inner)

	for _, addr := range []string{"10.0.0.1:8080", "172.16.0.1:8080", "192.168.1.1:8080", "169.254.1.1:8080"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/-/healthy", http.NoBody)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", addr, rec.Code)
		}
	}
}

func TestRequireNonPublicNetwork_PublicIP_Rejected(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for public IPs")
	})

	h := requireNonPublicNetwork(log.Nop(), inner)

	for _, addr := range []string{"8.8.8.8:12345", "203.0.113.1:80", "198.51.100.1:9000"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/-/healthy", http.NoBody)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("public IP %s: status = %d, want 403", addr, rec.Code)
		}
	}
}

func TestRequireNonPublicNetwork_BadRemoteAddr(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for bad remote addr")
	})

	h := requireNonPublicNetwork(log.Nop(), inner)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/-/healthy", http.NoBody)
	req.RemoteAddr = "not-an-address"
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad addr: status = %d, want 403", rec.Code)
	}
}
