// Package forthcoming parses punishment service flags and launches its runtime.
package forthcoming

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/forthcoming/forthcoming/internal/platform/cmd"
	"github.com/forthcoming/forthcoming/internal/platform/discovery"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/app"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage"
)

// Config holds forthcoming command configuration.
type Config struct {
	HTTPAddr      string        `env:"HTTP_ADDR"`
	HealthPort    int           `env:"HEALTH_PORT"`
	LedgerBackend string        `env:"LEDGER_BACKEND" envDefault:"yaml"`
	LedgerPath    string        `env:"LEDGER_PATH"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"50ms"`
	DefaultLocale string        `env:"DEFAULT_LOCALE" envDefault:"en-US"`
	FlushTimeout  time.Duration `env:"FLUSH_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.HTTPAddr = discovery.OrDefaultHTTPListenAddr(cfg.HTTPAddr, discovery.ServiceForthcoming)
	cfg.HealthPort = discovery.OrDefaultGRPCPort(cfg.HealthPort, discovery.ServiceForthcoming)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The host bridge HTTP listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.StringVar(&cfg.LedgerBackend, "ledger-backend", cfg.LedgerBackend, "Ledger storage backend (yaml, bbolt, sqlite)")
	fs.StringVar(&cfg.LedgerPath, "ledger-path", cfg.LedgerPath, "The ledger file path (defaults per backend)")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "Wall-clock duration of one tick")
	fs.StringVar(&cfg.DefaultLocale, "default-locale", cfg.DefaultLocale, "Locale used when the host reports none")
	fs.DurationVar(&cfg.FlushTimeout, "flush-timeout", cfg.FlushTimeout, "Ledger flush timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if backend := storage.Backend(cfg.LedgerBackend); !backend.Valid() {
		return Config{}, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
	return cfg, nil
}

// Run starts the forthcoming runtime.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{ShutdownTimeout: cfg.FlushTimeout}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceForthcoming, options, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			HTTPAddr:      cfg.HTTPAddr,
			HealthPort:    cfg.HealthPort,
			LedgerBackend: storage.Backend(cfg.LedgerBackend),
			LedgerPath:    cfg.LedgerPath,
			TickInterval:  cfg.TickInterval,
			DefaultLocale: cfg.DefaultLocale,
			FlushTimeout:  cfg.FlushTimeout,
		})
	})
}
