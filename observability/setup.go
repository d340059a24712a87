package observability

import (
	"context"
	"errors"
	"fmt"
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(ctx context.Context) error

// Setup installs trace and metric providers for service. When cfg.Enabled is
// false nothing is installed and the returned shutdown is a no-op.
func Setup(ctx context.Context, service, version string, cfg Config) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return noop, err
	}

	res, err := newResource(service, version, cfg.Environment)
	if err != nil {
		return noop, fmt.Errorf("creating resource: %w", err)
	}

	tp, err := InitTracer(ctx, res, cfg)
	if err != nil {
		return noop, err
	}
	mp, err := InitMeter(ctx, res, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return noop, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
