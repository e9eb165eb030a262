package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bc-dunia/tvbridge/internal/api"
	"github.com/bc-dunia/tvbridge/internal/broker"
	"github.com/bc-dunia/tvbridge/internal/config"
	"github.com/bc-dunia/tvbridge/internal/events"
	"github.com/bc-dunia/tvbridge/internal/otel"
	"github.com/bc-dunia/tvbridge/internal/session"
)

func main() {
	addr := flag.String("addr", defaultAddr(), "HTTP server address")
	scanDataDir := flag.String("scan-data-dir", defaultScanDataDir(), "Directory for persisted scan sessions")
	publicDir := flag.String("public-dir", filepath.Join(mustCwd(), config.DefaultPublicDir), "Directory for save-to-public files")
	otelExporter := flag.String("otel-exporter", "none", "Telemetry exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP endpoint (e.g., localhost:4317)")
	otelInsecure := flag.Bool("otel-insecure", false, "Disable TLS for OTLP connections")
	flag.Parse()

	events.SetGlobalEventLogger(events.NewEventLogger())

	ctx := context.Background()
	exporter := otel.ExporterType(*otelExporter)

	tracer, err := otel.NewTracer(ctx, &otel.Config{
		Enabled:      exporter != otel.ExporterNone,
		ServiceName:  "tvbridge",
		ExporterType: exporter,
		OTLPEndpoint: *otelEndpoint,
		OTLPInsecure: *otelInsecure,
		SampleRate:   1.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating tracer: %v\n", err)
		os.Exit(1)
	}
	otel.SetGlobalTracer(tracer)

	metrics, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:      exporter != otel.ExporterNone,
		ServiceName:  "tvbridge",
		ExporterType: exporter,
		OTLPEndpoint: *otelEndpoint,
		OTLPInsecure: *otelInsecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating metrics: %v\n", err)
		os.Exit(1)
	}
	otel.SetGlobalMetrics(metrics)

	store, err := session.NewStore(*scanDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session store: %v\n", err)
		os.Exit(1)
	}

	clock := broker.NewClock()
	timing := broker.NewTimingTracker()
	liveness := broker.NewLivenessTracker()
	relay := broker.NewRelay(clock, timing, liveness)
	registry := broker.NewFunctionRegistry(clock, liveness)

	server := api.NewServer(*addr, api.Deps{
		Relay:     relay,
		Liveness:  liveness,
		Registry:  registry,
		Timing:    timing,
		Clock:     clock,
		Sessions:  store,
		PublicDir: *publicDir,
	})
	server.SetTracer(tracer)

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("tvbridge broker listening on %s (sessions in %s)\n", server.URL(), store.BaseDir())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}

	timing.Close()
	tracer.Shutdown(shutdownCtx)
	metrics.Shutdown(shutdownCtx)
	fmt.Println("Server stopped")
}

// defaultAddr resolves the listen address from API_PORT, falling back to
// the default port.
func defaultAddr() string {
	if port := os.Getenv("API_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			return ":" + port
		}
	}
	return fmt.Sprintf(":%d", config.DefaultAPIPort)
}

func defaultScanDataDir() string {
	if dir := os.Getenv("SCAN_DATA_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(mustCwd(), config.DefaultScanDataDir)
}

func mustCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}
