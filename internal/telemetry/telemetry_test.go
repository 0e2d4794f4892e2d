package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := Init(context.Background(), "torrentplay")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", defaultSampleRate},
		{"0", 0},
		{"1", 1},
		{"0.25", 0.25},
		{"1.5", defaultSampleRate},
		{"-0.1", defaultSampleRate},
		{"half", defaultSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("OTEL_TRACE_SAMPLE_RATE", tt.raw)
			if got := parseSampleRate(); got != tt.want {
				t.Errorf("parseSampleRate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExporterOptions(t *testing.T) {
	if got := len(exporterOptions("collector:4318")); got != 4 {
		t.Fatalf("bare endpoint: expected 4 options, got %d", got)
	}
	if got := len(exporterOptions("https://collector.example:4318")); got != 3 {
		t.Fatalf("url endpoint: expected 3 options, got %d", got)
	}
}
