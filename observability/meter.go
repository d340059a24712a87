package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/kbukum/chanflow/logger"
)

// Item statuses recorded on stream.items.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
// The returned provider should be shut down on exit.
func InitMeter(ctx context.Context, res *resource.Resource, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.WithComponent("observability").Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StreamMetrics holds the instruments stages report to.
type StreamMetrics struct {
	items     metric.Int64Counter
	duration  metric.Float64Histogram
	active    metric.Int64UpDownCounter
	errors    metric.Int64Counter
	laneItems metric.Int64Counter
}

// NewStreamMetrics creates the stream instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	items, err := meter.Int64Counter("stream.items",
		metric.WithDescription("Items emitted by a stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.items counter: %w", err)
	}

	duration, err := meter.Float64Histogram("stream.transform.duration",
		metric.WithDescription("Duration of a single transform invocation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.transform.duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter("stream.stage.active",
		metric.WithDescription("Stage workers currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.stage.active gauge: %w", err)
	}

	errs, err := meter.Int64Counter("stream.errors",
		metric.WithDescription("Stage failures by code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.errors counter: %w", err)
	}

	laneItems, err := meter.Int64Counter("stream.lane.items",
		metric.WithDescription("Items transformed per fan-out lane"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.lane.items counter: %w", err)
	}

	return &StreamMetrics{
		items:     items,
		duration:  duration,
		active:    active,
		errors:    errs,
		laneItems: laneItems,
	}, nil
}

// StageStarted increments the active worker count for stage.
func (m *StreamMetrics) StageStarted(ctx context.Context, stage string) {
	m.active.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// StageStopped decrements the active worker count for stage.
func (m *StreamMetrics) StageStopped(ctx context.Context, stage string) {
	m.active.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordItem counts one item leaving stage with status.
func (m *StreamMetrics) RecordItem(ctx context.Context, stage, status string) {
	m.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrStatus, status),
	))
}

// RecordTransform records the duration of one transform invocation.
func (m *StreamMetrics) RecordTransform(ctx context.Context, stage string, d time.Duration) {
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordError counts a stage failure.
func (m *StreamMetrics) RecordError(ctx context.Context, stage, code string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrCode, code),
	))
}

// RecordLaneItem counts one item transformed by a fan-out lane.
func (m *StreamMetrics) RecordLaneItem(ctx context.Context, stage string, lane int) {
	m.laneItems.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.Int(AttrLane, lane),
	))
}
