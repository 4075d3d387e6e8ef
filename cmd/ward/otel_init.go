package main

import (
	"context"
	"log"
	"os"

	"github.com/wardlabs/ward/telemetry"
)

// initTelemetry initializes OTEL for Ward
// Can be disabled with WARD_TELEMETRY_DISABLED=true
func initTelemetry(ctx context.Context) func() {
	// Check if telemetry is disabled
	if os.Getenv("WARD_TELEMETRY_DISABLED") == "true" {
		log.Println("telemetry disabled")
		return func() {}
	}

	cfg := telemetry.Config{
		ServiceName:    "ward",
		ServiceVersion: version,
		Environment:    os.Getenv("WARD_ENVIRONMENT"),
		OTELEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:       true, // For local development
	}

	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = "localhost:4317"
	}

	shutdown, err := telemetry.InitOTEL(ctx, cfg)
	if err != nil {
		// Don't fail if OTEL init fails - just warn
		log.Printf("telemetry initialization failed: %v", err)
		log.Println("running without telemetry")
		return func() {}
	}

	log.Printf("telemetry enabled, exporting to %s", cfg.OTELEndpoint)

	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("error shutting down telemetry: %v", err)
		}
	}
}

// Environment variables for configuration:
// - OTEL_EXPORTER_OTLP_ENDPOINT: Where to send telemetry (default: localhost:4317)
// - WARD_TELEMETRY_DISABLED: Set to "true" to disable telemetry
// - WARD_ENVIRONMENT: Environment name (dev, staging, prod)
