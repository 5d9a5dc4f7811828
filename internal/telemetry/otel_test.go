package telemetry

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

func TestInitTracer_ServiceName(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
		want        string
	}{
		{name: "explicit name", serviceName: "taskflow-test", want: "taskflow-test"},
		{name: "empty name uses default", serviceName: "", want: DefaultServiceName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.serviceName, "localhost:4318")
			if err != nil {
				t.Fatalf("InitTracer() error = %v", err)
			}
			exporter := tracetest.NewInMemoryExporter()
			tp.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter))

			_, span := StartSpan(ctx, "todos.Create")
			EndSpan(span, nil)

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected 1 span, got %d", len(spans))
			}
			got, ok := spans[0].Resource.Set().Value(semconv.ServiceNameKey)
			if !ok || got.AsString() != tt.want {
				t.Errorf("service.name = %q, want %q", got.AsString(), tt.want)
			}

			// no collector is listening; only the bounded shutdown matters here
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			_ = Shutdown(shutdownCtx, tp)
		})
	}
}

func TestShutdown_NilProvider(t *testing.T) {
	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown() with nil provider should not error, got: %v", err)
	}
}
