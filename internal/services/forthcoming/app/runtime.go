package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forthcoming/forthcoming/internal/platform/discovery"
	platformgrpc "github.com/forthcoming/forthcoming/internal/platform/grpc"
	"github.com/forthcoming/forthcoming/internal/platform/i18n/catalog"
	"github.com/forthcoming/forthcoming/internal/platform/timeouts"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/ledger"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/scheduler"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage"
	ledgerbbolt "github.com/forthcoming/forthcoming/internal/services/forthcoming/storage/bbolt"
	ledgersqlite "github.com/forthcoming/forthcoming/internal/services/forthcoming/storage/sqlite"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage/yamlfile"
	"golang.org/x/sync/errgroup"
	gogrpc "google.golang.org/grpc"
)

// HealthService is the gRPC health name reported while the runtime is up.
const HealthService = "forthcoming.runtime"

const defaultLocale = catalog.BaseLocale

// RuntimeConfig controls process startup.
type RuntimeConfig struct {
	HTTPAddr      string
	HealthPort    int
	LedgerBackend storage.Backend
	LedgerPath    string
	TickInterval  time.Duration
	DefaultLocale string
	FlushTimeout  time.Duration
}

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	cfg.HTTPAddr = discovery.OrDefaultHTTPListenAddr(cfg.HTTPAddr, discovery.ServiceForthcoming)
	cfg.HealthPort = discovery.OrDefaultGRPCPort(cfg.HealthPort, discovery.ServiceForthcoming)
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = storage.BackendYAML
	}
	if strings.TrimSpace(cfg.LedgerPath) == "" {
		cfg.LedgerPath = cfg.LedgerBackend.DefaultPath()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = domain.TickDuration
	}
	if strings.TrimSpace(cfg.DefaultLocale) == "" {
		cfg.DefaultLocale = defaultLocale
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = timeouts.LedgerFlush
	}
	return cfg
}

// Run opens the ledger, serves the host bridge and gRPC health, and drives
// the tick clock until ctx ends. The ledger is flushed before Run returns.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	defer httpListener.Close()

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	defer healthListener.Close()

	return serve(ctx, cfg, httpListener, healthListener)
}

func serve(ctx context.Context, cfg RuntimeConfig, httpListener, healthListener net.Listener) error {
	store, err := OpenLedgerStore(cfg.LedgerBackend, cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close ledger store: %v", closeErr)
		}
	}()

	bundle, err := catalog.LoadEmbedded()
	if err != nil {
		return fmt.Errorf("load narrative catalog: %w", err)
	}
	if err := bundle.Register(); err != nil {
		return fmt.Errorf("register narrative catalog: %w", err)
	}

	kills, err := ledger.New(store, ledger.WithFlushTimeout(cfg.FlushTimeout))
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	if err := kills.Load(ctx); err != nil {
		log.Printf("forthcoming: starting with an empty ledger: %v", err)
	}

	clock := scheduler.New()
	service, err := NewService(ServiceConfig{
		Clock:         clock,
		Ledger:        kills,
		Catalog:       bundle,
		DefaultLocale: cfg.DefaultLocale,
	})
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	server, err := NewServer(Config{HTTPAddr: cfg.HTTPAddr}, service)
	if err != nil {
		return fmt.Errorf("init bridge server: %w", err)
	}
	grpcServer, healthServer := platformgrpc.NewHealthServer(HealthService)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return clock.Run(groupCtx, cfg.TickInterval)
	})
	group.Go(func() error {
		return server.Serve(groupCtx, httpListener)
	})
	group.Go(func() error {
		log.Printf("forthcoming health server listening at %v", healthListener.Addr())
		if err := grpcServer.Serve(healthListener); err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	runErr := group.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.FlushTimeout)
	defer cancel()
	if err := kills.FlushSync(flushCtx); err != nil {
		log.Printf("forthcoming: final ledger flush failed: %v", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// OpenLedgerStore opens the store for backend at path, creating the parent
// directory first.
func OpenLedgerStore(backend storage.Backend, path string) (storage.LedgerStore, error) {
	if !backend.Valid() {
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger storage dir: %w", err)
		}
	}

	var (
		store storage.LedgerStore
		err   error
	)
	switch backend {
	case storage.BackendBBolt:
		store, err = ledgerbbolt.Open(path)
	case storage.BackendSQLite:
		store, err = ledgersqlite.Open(path)
	default:
		store, err = yamlfile.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s ledger store: %w", backend, err)
	}
	return store, nil
}
