// Package cli holds the start-up steps shared by every command: environment,
// logging, configuration and the wiring of backend, session and store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"moneytrack/internal/backend"
	"moneytrack/internal/config"
	applog "moneytrack/internal/log"
	"moneytrack/internal/session"
	"moneytrack/internal/store"
)

// LoadEnvFile loads .env files for local use. A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// SetupLogger builds the application logger from cfg and makes it the slog
// default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Level = applog.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	if out != nil {
		lc.Output = out
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment, applies
// overrides such as command-line flags, then validates it.
func LoadAndValidateConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg := config.Load()
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// App is one wired client: a backend, the session bound to it and the store
// following the session.
type App struct {
	Config  *config.Config
	Backend backend.Config
	Logger  *applog.Logger
	Session *session.Session
	Store   *store.Store

	result *backend.BackendResult
}

// AppOption adjusts how NewApp wires the client.
type AppOption func(*appOptions)

type appOptions struct {
	factory   backend.Factory
	persister session.Persister
	now       func() time.Time
}

// WithFactory replaces the backend factory.
func WithFactory(f backend.Factory) AppOption {
	return func(o *appOptions) { o.factory = f }
}

// WithPersister replaces the session file.
func WithPersister(p session.Persister) AppOption {
	return func(o *appOptions) { o.persister = p }
}

// WithClock sets the clock the store dates new records with.
func WithClock(now func() time.Time) AppOption {
	return func(o *appOptions) { o.now = now }
}

// NewApp creates the backend, restores the session and builds the store. A
// restored session triggers the initial refresh; its failure is recorded on
// the store, not returned.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts ...AppOption) (*App, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	o := appOptions{
		factory:   backend.NewFactory(logger),
		persister: session.NewFileStore(cfg.SessionFile),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := o.factory.CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}

	sess := session.New(result.Backend, o.persister, logger)
	st := store.New(ctx, sess, result.Backend, store.WithLogger(logger), store.WithClock(o.now))

	return &App{
		Config:  cfg,
		Backend: bc,
		Logger:  logger.WithComponent(applog.ComponentApp),
		Session: sess,
		Store:   st,
		result:  result,
	}, nil
}

// Close detaches the store and releases the backend.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Store != nil {
		a.Store.Close()
	}
	return a.result.Close()
}
