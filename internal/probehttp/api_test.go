package probehttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/podpulse/podpulse/internal/health"
	"github.com/podpulse/podpulse/internal/podinfo"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	api     *API
	router  chi.Router
	state   *health.State
	clock   *fakeClock
	toggles []string
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: start}
	st := health.NewStateAt(start, clk.Now)

	f := &fixture{state: st, clock: clk}
	opts := Options{
		State:        st,
		StartupDelay: 5 * time.Second,
		StartupGrace: 2 * time.Second,
		StressWindow: 10 * time.Millisecond,
		OnToggle: func(flag string, value bool) {
			f.toggles = append(f.toggles, flag)
		},
		Info: func() podinfo.Snapshot {
			return podinfo.Snapshot{PodName: "test-pod", Namespace: "default", NodeName: "node-1", PodIP: "10.0.0.5", Hostname: "test-pod"}
		},
		Name: func() string { return "test-pod" },
		Environ: func() []podinfo.EnvVar {
			return []podinfo.EnvVar{{Name: "NODE_NAME", Value: "node-1"}}
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.api = NewAPI(opts)
	f.router = chi.NewRouter()
	f.api.RegisterRoutes(f.router)
	return f
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if ct := rec.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal %s body %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec, body
}

// /healthz

func TestHealthz_InitiallyHealthy(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.get(t, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["pod"] != "test-pod" {
		t.Fatalf("pod = %v", body["pod"])
	}
}

func TestHealthz_UnaffectedByStartupDelay(t *testing.T) {
	// uptime is zero, well inside the 5s readiness delay
	f := newFixture(t, nil)
	rec, _ := f.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz must ignore startup windows, got %d", rec.Code)
	}
}

func TestHealthz_ToggleRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.get(t, "/toggle-health")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	if body["value"] != false {
		t.Fatalf("toggle value = %v, want false", body["value"])
	}

	rec, body = f.get(t, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("after toggle, healthz = %d, want 503", rec.Code)
	}
	if body["reason"] == nil {
		t.Fatal("503 should carry a reason")
	}

	f.get(t, "/toggle-health")
	rec, _ = f.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("after second toggle, healthz = %d, want 200", rec.Code)
	}
}

// /ready

func TestReady_503WithinDelayEvenWhenReady(t *testing.T) {
	f := newFixture(t, nil)
	if !f.state.Ready() {
		t.Fatal("precondition: ready flag true")
	}
	rec, body := f.get(t, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 inside delay window", rec.Code)
	}
	if body["status"] != "starting up" {
		t.Fatalf("status field = %v, want 'starting up'", body["status"])
	}
}

func TestReady_ReflectsFlagAfterDelay(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Advance(5 * time.Second)

	rec, body := f.get(t, "/ready")
	if rec.Code != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("past delay: code=%d status=%v", rec.Code, body["status"])
	}

	f.get(t, "/toggle-ready")
	rec, body = f.get(t, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("toggled off: code = %d, want 503", rec.Code)
	}
	if body["status"] != "not ready" {
		t.Fatalf("status field = %v, want 'not ready'", body["status"])
	}

	f.get(t, "/toggle-ready")
	rec, _ = f.get(t, "/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggled back on: code = %d, want 200", rec.Code)
	}
}

// /startup

func TestStartup_GraceWindowScenario(t *testing.T) {
	f := newFixture(t, nil)

	// T0+0.5s
	f.clock.Advance(500 * time.Millisecond)
	rec, _ := f.get(t, "/startup")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("T0+0.5s: code = %d, want 503", rec.Code)
	}

	// T0+3s
	f.clock.Advance(2500 * time.Millisecond)
	rec, body := f.get(t, "/startup")
	if rec.Code != http.StatusOK || body["status"] != "started" {
		t.Fatalf("T0+3s: code=%d status=%v", rec.Code, body["status"])
	}
}

func TestStartup_IndependentOfFlags(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Advance(3 * time.Second)
	f.get(t, "/toggle-health")
	f.get(t, "/toggle-ready")

	rec, _ := f.get(t, "/startup")
	if rec.Code != http.StatusOK {
		t.Fatalf("startup must ignore flag toggles, got %d", rec.Code)
	}
}

// toggles

func TestToggleReady_ReturnsNewValueAndFiresCallback(t *testing.T) {
	f := newFixture(t, nil)

	_, body := f.get(t, "/toggle-ready")
	if body["flag"] != "ready" || body["value"] != false {
		t.Fatalf("body = %v", body)
	}
	_, body = f.get(t, "/toggle-ready")
	if body["value"] != true {
		t.Fatalf("second toggle value = %v, want true", body["value"])
	}

	if len(f.toggles) != 2 || f.toggles[0] != "ready" {
		t.Fatalf("toggle callbacks = %v", f.toggles)
	}
}

func TestToggleHealth_NeverFails(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		rec, _ := f.get(t, "/toggle-health")
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle %d: code = %d", i, rec.Code)
		}
	}
	// odd count of toggles: live must be false
	if f.state.Live() {
		t.Fatal("after 5 toggles live should be false")
	}
}

// /info

func TestInfo_PayloadAndNoMutation(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		rec, body := f.get(t, "/info")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d", rec.Code)
		}
		if body["pod_name"] != "test-pod" || body["node_name"] != "node-1" {
			t.Fatalf("identity fields = %v", body)
		}
		if body["live"] != true || body["ready"] != true {
			t.Fatalf("flags in body = %v", body)
		}
		env, ok := body["env"].([]any)
		if !ok || len(env) != 1 {
			t.Fatalf("env = %v", body["env"])
		}
	}

	if !f.state.Live() || !f.state.Ready() {
		t.Fatal("/info must not mutate flags")
	}
}

func TestInfo_ReportsToggledFlags(t *testing.T) {
	f := newFixture(t, nil)
	f.get(t, "/toggle-health")

	_, body := f.get(t, "/info")
	if body["live"] != false {
		t.Fatalf("live = %v, want false after toggle", body["live"])
	}
}

// /stress

func TestStress_CompletesAndLeavesStateAlone(t *testing.T) {
	var seconds float64
	f := newFixture(t, func(o *Options) {
		o.OnStress = func(s float64) { seconds = s }
	})

	rec, body := f.get(t, "/stress")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if body["duration_seconds"].(float64) <= 0 {
		t.Fatalf("duration_seconds = %v", body["duration_seconds"])
	}
	if seconds <= 0 {
		t.Fatal("OnStress callback not fired")
	}
	if !f.state.Live() || !f.state.Ready() {
		t.Fatal("/stress must not mutate flags")
	}
}

// transport

func TestProbeEndpoints_JSONContentType(t *testing.T) {
	f := newFixture(t, nil)
	for _, path := range []string{"/healthz", "/ready", "/startup", "/toggle-health", "/toggle-ready", "/info", "/stress"} {
		rec, _ := f.get(t, path)
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
			t.Errorf("%s Cache-Control = %q", path, cc)
		}
	}
}

func TestProbeEndpoints_GETOnly(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/toggle-health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /toggle-health = %d, want 405", rec.Code)
	}
}

// The full identity snapshot may resolve the pod IP over DNS, so only
// /info is allowed to gather it; every other endpoint must answer from
// the cheap name lookup alone.
func TestOnlyInfoGathersFullSnapshot(t *testing.T) {
	var snapshots int
	f := newFixture(t, func(o *Options) {
		o.Info = func() podinfo.Snapshot {
			snapshots++
			return podinfo.Snapshot{PodName: "test-pod"}
		}
	})

	for _, path := range []string{"/healthz", "/ready", "/startup", "/toggle-health", "/toggle-ready", "/stress"} {
		rec, body := f.get(t, path)
		if rec.Code != http.StatusOK && rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s = %d", path, rec.Code)
		}
		if pod, _ := body["pod"].(string); pod != "test-pod" {
			t.Errorf("%s pod = %q, want test-pod", path, pod)
		}
	}
	if snapshots != 0 {
		t.Fatalf("full snapshot gathered %d times outside /info", snapshots)
	}

	if rec, _ := f.get(t, "/info"); rec.Code != http.StatusOK {
		t.Fatalf("/info = %d", rec.Code)
	}
	if snapshots != 1 {
		t.Fatalf("/info gathered %d snapshots, want 1", snapshots)
	}
}
