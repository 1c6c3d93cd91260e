package otel

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_NoEndpointIsNoop(t *testing.T) {
	ctx := context.Background()

	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "ciam-core", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q): all providers must be non-nil", endpoint)
		}
		// No exporters, so shutdown must succeed and be repeatable.
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("first Shutdown: %v", err)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("second Shutdown: %v", err)
		}
	}
}

func TestNewProviders_RejectsBadEndpoint(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		endpoint string
	}{
		{"empty scheme", "://collector"},
		{"unclosed bracket", "http://[bad"},
		{"scheme only", "http://"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProviders(ctx, tc.endpoint, "ciam-core", false)
			if err == nil {
				t.Fatalf("NewProviders(%q): want error", tc.endpoint)
			}
			if !strings.Contains(err.Error(), "invalid OTLP endpoint") {
				t.Errorf("error = %v, want endpoint validation failure", err)
			}
		})
	}
}

func TestNewProviders_NormalizedEndpoints(t *testing.T) {
	ctx := context.Background()
	// Exporter construction is lazy, so these succeed without a collector.
	// Scheme-less endpoints get http:// prepended; paths and queries are
	// dropped before the dial target is taken from the host.
	endpoints := []string{
		"collector:4317",
		"http://collector:4317",
		"https://collector:4317",
		"http://collector:4317/v1/traces",
		"http://collector:4317?compression=gzip",
	}

	for _, endpoint := range endpoints {
		providers, err := NewProviders(ctx, endpoint, "ciam-core", true)
		if err != nil {
			t.Errorf("NewProviders(%q): %v", endpoint, err)
			continue
		}
		_ = providers.Shutdown(ctx)
	}
}

func TestSetGlobal(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "", "ciam-core", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}

	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("global TracerProvider not set")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("global MeterProvider not set")
	}
}

func TestSetGlobal_NilFieldsLeaveGlobalsAlone(t *testing.T) {
	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()

	empty := &Providers{Shutdown: func(context.Context) error { return nil }}
	empty.SetGlobal()

	if otel.GetTracerProvider() != prevTracer {
		t.Error("nil TracerProvider must not replace the global")
	}
	if otel.GetMeterProvider() != prevMeter {
		t.Error("nil MeterProvider must not replace the global")
	}
}
