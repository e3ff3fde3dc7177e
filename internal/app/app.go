package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"well-go/internal/ai"
	"well-go/internal/api"
	"well-go/internal/cache"
	"well-go/internal/config"
	"well-go/internal/database"
	"well-go/internal/digest"
	"well-go/internal/encryption"
	"well-go/internal/metrics"
	"well-go/internal/vault"
	"well-go/internal/well"
)

// ErrNoVault is returned by Vault when no vault is configured.
var ErrNoVault = errors.New("no vaults configured")

// WellApp is the application layer between the CLI and WellService.
// It constructs all dependencies from config and manages their lifecycle on Close.
type WellApp struct {
	cfg        *config.Config
	store      database.Store
	vault      well.Vault
	encryptor  well.Encryptor
	collectors *metrics.Collectors
	service    *well.WellService
	clock      well.Clock
	logger     well.Logger
	op         *Operation
	logFile    *os.File
}

// NewWellApp creates a fully wired WellApp from the given config.
// operation identifies the CLI command being run (e.g. "AppendRecord", "Serve").
// The caller must call Close when done.
func NewWellApp(ctx context.Context, cfg *config.Config, operation string) (*WellApp, error) {
	clock := well.RealClock{}
	op := NewOperation(operation, clock.Now())

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	level, err := logLevel()
	if err != nil {
		return nil, err
	}
	sl, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl.With("op", op.Command)}

	a := &WellApp{cfg: cfg, clock: clock, logger: logger, op: op, logFile: logFile}
	if err := a.wire(ctx, loc); err != nil {
		a.closeResources()
		return nil, err
	}
	logger.Debug("operation started")
	return a, nil
}

func (a *WellApp) wire(ctx context.Context, loc *time.Location) error {
	cfg := a.cfg

	store, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.store = store

	if err := store.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date (run `well db migrate`): %w", err)
	}

	cacheStore, err := cache.NewCacheStoreFromConfig(cfg.Cache, store)
	if err != nil {
		return fmt.Errorf("creating insight cache: %w", err)
	}

	completer, err := ai.NewCompleterFromConfig(cfg.AI)
	if err != nil {
		return fmt.Errorf("creating completer: %w", err)
	}

	a.collectors = metrics.New()
	opts := []well.Option{
		well.WithLocation(loc),
		well.WithInstrumentation(a.collectors),
	}
	if ttl := cfg.Cache.TTL.Duration; ttl > 0 {
		opts = append(opts, well.WithInsightTTL(ttl))
	}
	if timeout := cfg.AI.Timeout.Duration; timeout > 0 {
		opts = append(opts, well.WithCompletionTimeout(timeout))
	}

	if len(cfg.Vaults) > 0 {
		v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			return fmt.Errorf("creating vault: %w", err)
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		a.vault = v
		a.encryptor = enc
		opts = append(opts, well.WithVault(v, enc))
	}

	a.service = well.NewWellService(store, cacheStore, completer, a.logger, a.clock, well.UUIDGenerator{}, opts...)
	return nil
}

// MigrateDatabase brings the configured database schema up to date.
func MigrateDatabase(cfg *config.Config) error {
	store, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Service returns the wired WellService.
func (a *WellApp) Service() *well.WellService { return a.service }

// Logger returns the operation's logger.
func (a *WellApp) Logger() well.Logger { return a.logger }

// Config returns the configuration the app was built from.
func (a *WellApp) Config() *config.Config { return a.cfg }

// Finish records err as the operation's outcome and returns it unchanged.
func (a *WellApp) Finish(err error) error {
	return a.op.Finish(err)
}

// Vault returns the first configured vault.
func (a *WellApp) Vault() (well.Vault, error) {
	if a.vault == nil {
		return nil, ErrNoVault
	}
	return a.vault, nil
}

// Encryptor returns the snapshot encryptor, or nil when no vault is configured.
func (a *WellApp) Encryptor() well.Encryptor { return a.encryptor }

// NewServer builds the HTTP API for the configured tokens, exposing this
// app's metrics.
func (a *WellApp) NewServer() *api.Server {
	return api.NewServer(a.service, a.cfg.Server.Tokens, a.collectors.Gatherer(), a.logger)
}

// NewDigestRunner builds a runner for the configured digest users and notifier.
func (a *WellApp) NewDigestRunner() (*digest.Runner, error) {
	n, err := digest.NewNotifierFromConfig(a.cfg.Digest, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}
	return digest.NewRunner(a.service, n, a.cfg.Digest.Users, a.logger, a.clock), nil
}

// NewDigestScheduler builds a scheduler running the digest on the configured
// cron spec in the configured time zone.
func (a *WellApp) NewDigestScheduler() (*digest.Scheduler, error) {
	runner, err := a.NewDigestRunner()
	if err != nil {
		return nil, err
	}
	return digest.NewScheduler(a.cfg.Digest.Schedule, a.service.Location(), runner, a.logger)
}

// Serve runs the HTTP API until ctx is cancelled. When digest users are
// configured, the digest scheduler runs alongside it.
func (a *WellApp) Serve(ctx context.Context) error {
	if len(a.cfg.Digest.Users) > 0 {
		s, err := a.NewDigestScheduler()
		if err != nil {
			return err
		}
		s.Start()
		a.logger.Info("digest scheduled", "schedule", a.cfg.Digest.Schedule, "next", s.Next(a.clock.Now()))
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Stop(stopCtx); err != nil {
				a.logger.Warn("stopping digest scheduler", "error", err)
			}
		}()
	}
	return a.NewServer().ListenAndServe(ctx, a.cfg.Server.ListenAddr)
}

// Close logs the operation outcome and closes all resources.
func (a *WellApp) Close() error {
	elapsed := a.op.Elapsed(a.clock.Now()).Truncate(time.Millisecond)
	if a.op.Failed() {
		a.logger.Warn("operation failed", "elapsed", elapsed)
	} else {
		a.logger.Debug("operation finished", "elapsed", elapsed)
	}
	return a.closeResources()
}

func (a *WellApp) closeResources() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
