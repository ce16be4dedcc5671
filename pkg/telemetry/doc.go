// Package telemetry provides observability instrumentation for orgforge.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring and debugging recipe runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "orgforge"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context so lower layers can retrieve it:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with run, recipe, group,
// step, and action fields:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithRunID("run-123").WithRecipe("demo-build", "1.2.0")
//	logger.WithGroup("prepare").WithStep("verify").Info("step finished")
//	logger.WithError(err).Error("engine initialization failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Spans cover runs, plan steps, and executor invocations:
//
//	ctx, span := tel.Tracer.StartRunSpan(ctx, runID, recipeName)
//	defer span.End()
//
// Supported exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// Prometheus metrics cover run and step throughput, executor latency and
// failures, skips, classified errors, and policy denials. A disabled Metrics
// instance is a safe no-op, so callers never need nil checks.
//
// # Events
//
// The event publisher delivers run lifecycle, step lifecycle, org
// provisioning, and policy events to subscribers, either synchronously or
// through a buffered async batch pipeline.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package telemetry
