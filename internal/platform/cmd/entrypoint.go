// Package cmd holds the startup plumbing shared by command entrypoints.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/forthcoming/forthcoming/internal/platform/config"
	"github.com/forthcoming/forthcoming/internal/platform/otel"
)

const defaultTelemetryStopTimeout = 5 * time.Second

// ServiceForthcoming names the punishment service in telemetry resources.
const ServiceForthcoming = "forthcoming"

// RunOptions controls shared entrypoint behavior for service commands.
type RunOptions struct {
	// ShutdownTimeout bounds the final telemetry flush.
	ShutdownTimeout time.Duration
}

// ParseConfig loads prefixed environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags over the environment defaults.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry runs a service loop with default options.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return RunWithTelemetryAndOptions(ctx, service, RunOptions{}, run)
}

// RunWithTelemetryAndOptions installs telemetry, runs the service loop and
// flushes telemetry once the loop returns. A loop ending with
// context.Canceled is a clean stop.
func RunWithTelemetryAndOptions(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return fmt.Errorf("service name is required")
	case run == nil:
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stopTelemetry, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer flushTelemetry(service, stopTelemetry, options.ShutdownTimeout)

	started := time.Now()
	log.Printf("%s: starting", service)
	err = run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Printf("%s: stopped after %s", service, time.Since(started).Round(time.Millisecond))
	return err
}

func flushTelemetry(service string, stop func(context.Context) error, timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultTelemetryStopTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Printf("%s: telemetry shutdown: %v", service, err)
	}
}
