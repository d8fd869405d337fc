package otelx

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled_ShutdownIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init disabled: %v", err)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Safe to call multiple times
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestInit_Disabled_SetsTracerProvider(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	tp := otel.GetTracerProvider()
	if tp == nil {
		t.Fatal("TracerProvider is nil")
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("TracerProvider type = %T, want *sdktrace.TracerProvider", tp)
	}
}

func TestInit_Disabled_SetsPropagator(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	prop := otel.GetTextMapPropagator()
	if prop == nil {
		t.Fatal("TextMapPropagator is nil")
	}

	fieldSet := make(map[string]bool)
	for _, f := range prop.Fields() {
		fieldSet[f] = true
	}
	if !fieldSet["traceparent"] {
		t.Error("propagator missing traceparent field")
	}
	if !fieldSet["baggage"] {
		t.Error("propagator missing baggage field")
	}
}

func TestInit_Disabled_TracerProducesUsableSpans(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	if span == nil {
		t.Fatal("span is nil")
	}
	span.SetName("renamed")
	span.End()
	if ctx == nil {
		t.Fatal("context is nil")
	}
}

func TestInit_Enabled_ReturnsPromptly(t *testing.T) {
	// gRPC defers connection establishment; Init must not block on an
	// unreachable endpoint beyond the dial timeout.
	start := time.Now()
	shutdown, err := Init(context.Background(), Options{
		Enabled:   true,
		Endpoint:  "localhost:1",
		Insecure:  true,
		Sample:    1.0,
		Service:   "podpulse",
		Component: "server",
		Version:   "v0.0.0-test",
	})
	elapsed := time.Since(start)

	if elapsed > 15*time.Second {
		t.Fatalf("Init took %v, expected bounded by dial timeout", elapsed)
	}
	if err != nil {
		return // timeout path is acceptable
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Logf("shutdown error (expected with no real collector): %v", err)
	}
}
