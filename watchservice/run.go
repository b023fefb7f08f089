// Package watchservice boots the courtwatch service: store, source
// registry, snapshot cache, refresh engine, and HTTP server.
package watchservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencourt/courtwatch/internal/api"
	"github.com/opencourt/courtwatch/internal/cache"
	"github.com/opencourt/courtwatch/internal/config"
	"github.com/opencourt/courtwatch/internal/dispatch"
	"github.com/opencourt/courtwatch/internal/engine"
	"github.com/opencourt/courtwatch/internal/health"
	"github.com/opencourt/courtwatch/internal/logger"
	"github.com/opencourt/courtwatch/internal/source"
	"github.com/opencourt/courtwatch/internal/source/rest"
	"github.com/opencourt/courtwatch/internal/store"
	"github.com/opencourt/courtwatch/internal/store/mem"
	"github.com/opencourt/courtwatch/internal/store/postgres"
	"github.com/opencourt/courtwatch/internal/store/sqlite"
)

// Run starts the courtwatch service and blocks until shutdown or error.
func Run() error {
	log := logger.New("courtwatch")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Int("sources", len(cfg.Sources)).
		Str("dispatcher", cfg.Dispatcher).
		Msg("Courtwatch starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	reg, err := buildRegistry(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Source registry construction failed")
		return err
	}

	disp, err := newDispatcher(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Dispatcher unavailable")
		return err
	}

	snapshots := cache.New(cfg.StaleAfter())
	eng := engine.New(engine.Config{
		RefreshInterval:        cfg.RefreshInterval(),
		SourceTimeout:          cfg.SourceTimeout(),
		MaxConcurrentRefreshes: cfg.MaxConcurrentRefreshes,
		FetchDays:              cfg.FetchDays,
	}, reg, snapshots, st, disp, log)

	engineErr := make(chan error, 1)
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			engineErr <- err
		}
	}()

	svcHealth := startHealthCheckers(ctx, log, st)

	router := api.NewRouter(api.Deps{
		Registry: reg,
		Cache:    snapshots,
		Store:    st,
		Engine:   eng,
		Checker:  svcHealth,
	})

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	case err := <-engineErr:
		log.Error().Stack().Err(err).Msg("Refresh engine failed")
		return err
	}
}

func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newStore selects the storage backend from configuration.
func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return sqlite.NewWithDB(db), nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Msg("postgres store ready")
		return postgres.NewWithDB(db), nil
	case "memory":
		log.Warn().Msg("using in-memory store; data will not survive restarts")
		return mem.New(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}
}

// buildRegistry instantiates one adapter per configured source.
func buildRegistry(cfg *config.Config, log zerolog.Logger) (*source.Registry, error) {
	reg := source.NewRegistry()
	for _, spec := range cfg.Sources {
		adapter := rest.New(rest.Config{
			BaseURL: spec.BaseURL,
			APIKey:  spec.APIKey,
			Timeout: cfg.SourceTimeout(),
		}, log)
		info := source.Info{ID: spec.ID, Name: spec.Name, BookingSystem: spec.BookingSystem}
		if err := reg.Register(info, adapter); err != nil {
			return nil, err
		}
	}
	if reg.Len() == 0 {
		log.Warn().Msg("no sources configured; engine will idle")
	}
	return reg, nil
}

// newDispatcher selects the digest transport from configuration.
func newDispatcher(cfg *config.Config, log zerolog.Logger) (dispatch.Dispatcher, error) {
	switch cfg.Dispatcher {
	case "log", "":
		return dispatch.NewLogDispatcher(log), nil
	case "smtp":
		smtpCfg := dispatch.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}
		if !smtpCfg.Enabled() {
			return nil, fmt.Errorf("smtp dispatcher selected but SMTP_HOST is empty")
		}
		return dispatch.NewSMTPDispatcher(smtpCfg, log), nil
	case "amqp":
		return dispatch.NewAMQPDispatcher(cfg.AMQPURL, cfg.AMQPExchange, log)
	default:
		return nil, fmt.Errorf("unsupported DISPATCHER: %q", cfg.Dispatcher)
	}
}

type storePinger struct{ st store.Store }

func (p storePinger) HealthPing(ctx context.Context) error { return p.st.Ping(ctx) }

// startHealthCheckers starts the store checker and the service aggregator.
func startHealthCheckers(ctx context.Context, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	interval := 30 * time.Second

	storeChecker := health.NewPingChecker("store", storePinger{st}, log)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
