// Package observability wires OpenTelemetry tracing and metrics for stream runs.
//
// Setup installs OTLP/HTTP providers for both signals:
//
//	shutdown, err := observability.Setup(ctx, "chanflow", version.Short(), cfg.Telemetry)
//	defer shutdown(context.Background())
//
// Stages report through StreamMetrics:
//
//	metrics, err := observability.NewStreamMetrics(observability.Meter("chanflow"))
//	metrics.RecordItem(ctx, "squares", observability.StatusOK)
//
// Runs are traced with StartSpan:
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
//	defer span.End()
package observability
