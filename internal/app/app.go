// Package app wires configuration, storage, rate limiting, the usage
// ledger and the provider adapter into a running HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/flickerlabs/flicker-relay/internal/api"
	"github.com/flickerlabs/flicker-relay/internal/config"
	"github.com/flickerlabs/flicker-relay/internal/db"
	"github.com/flickerlabs/flicker-relay/internal/ledger"
	"github.com/flickerlabs/flicker-relay/internal/metrics"
	"github.com/flickerlabs/flicker-relay/internal/provider"
	"github.com/flickerlabs/flicker-relay/internal/ratelimit"
	"github.com/flickerlabs/flicker-relay/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = 5 * time.Minute
)

// state holds the live configuration snapshot. Handlers read through the
// provider closures below, so a config reload swaps the snapshot without
// restarting the server.
type state struct {
	cfg atomic.Pointer[config.Config]
}

func (s *state) load() *config.Config { return s.cfg.Load() }

func (s *state) limits() ledger.Limits {
	cfg := s.load()
	period, errPeriod := ledger.ParsePeriod(cfg.Limits.ResetPeriod)
	if errPeriod != nil {
		period = ledger.PeriodDaily
	}
	return ledger.Limits{
		MaxQuestions:        cfg.Limits.MaxQuestions,
		MaxImageGenerations: cfg.Limits.MaxImageGenerations,
		Period:              period,
	}
}

func (s *state) rateLimitSettings() ratelimit.Settings {
	cfg := s.load()
	return ratelimit.Settings{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		RedisEnabled:      cfg.RateLimit.Redis.Enabled,
		RedisAddr:         cfg.RateLimit.Redis.Addr,
		RedisPassword:     cfg.RateLimit.Redis.Password,
		RedisPrefix:       cfg.RateLimit.Redis.Prefix,
		RedisDB:           cfg.RateLimit.Redis.DB,
	}
}

func (s *state) apiSettings() api.Settings {
	cfg := s.load()
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = api.DefaultSystemPrompt
	}
	return api.Settings{
		SystemPrompt:    prompt,
		ImageAnalysis:   cfg.Features.ImageAnalysis,
		ImageGeneration: cfg.Features.ImageGeneration,
	}
}

// openStore selects the persistence backend: a database when a DSN is
// configured, the JSON snapshot file otherwise.
func openStore(cfg *config.Config) (ledger.Store, error) {
	dsn := strings.TrimSpace(cfg.Store.DSN)
	if dsn == "" {
		log.WithField("path", cfg.Store.Path).Info("using file-backed usage store")
		return store.NewFileStore(cfg.Store.Path), nil
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	log.WithField("dialect", db.DialectName(conn)).Info("using database usage store")
	return store.NewGormStore(conn), nil
}

// RunServer boots the relay and blocks until ctx is cancelled or the
// listener fails.
func RunServer(ctx context.Context, configPath string, portOverride int) error {
	configPath = config.ResolveConfigPath(configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Port = portOverride
	}

	st := &state{}
	st.cfg.Store(cfg)

	usageStore, err := openStore(cfg)
	if err != nil {
		return err
	}

	led := ledger.New(usageStore, st.limits, nil)
	defer func() {
		if errClose := led.Close(); errClose != nil {
			log.WithError(errClose).Warn("close usage store")
		}
	}()

	limiter := ratelimit.NewManager(st.rateLimitSettings, nil, nil)

	prov, err := provider.New(cfg.Provider)
	if err != nil {
		return err
	}

	m := metrics.New()
	router := api.NewRouter(api.Options{
		Ledger:   led,
		Limiter:  limiter,
		Provider: prov,
		Metrics:  m,
		Settings: st.apiSettings,
		Model:    cfg.Provider.Model,
	})

	stopWatcher, errWatch := watchConfig(configPath, st)
	if errWatch != nil {
		log.WithError(errWatch).Warn("config watcher unavailable, reload disabled")
	} else {
		defer stopWatcher()
	}

	scheduler, errCron := startEviction(cfg.Eviction, led, m)
	if errCron != nil {
		return errCron
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	go prunePeriodically(ctx, limiter)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":     cfg.Port,
			"provider": prov.Name(),
		}).Info("relay listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// startEviction schedules the idle-record sweep when eviction is enabled.
func startEviction(cfg config.EvictionConfig, led *ledger.Ledger, m *metrics.Metrics) (*cron.Cron, error) {
	if cfg.MaxIdle <= 0 || strings.TrimSpace(cfg.Schedule) == "" {
		return nil, nil
	}
	scheduler := cron.New()
	_, errAdd := scheduler.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		evicted := led.EvictIdle(ctx, cfg.MaxIdle)
		if evicted > 0 {
			m.ObserveEvictions(evicted)
			log.WithField("evicted", evicted).Info("idle usage records evicted")
		}
	})
	if errAdd != nil {
		return nil, fmt.Errorf("eviction schedule %q: %w", cfg.Schedule, errAdd)
	}
	scheduler.Start()
	return scheduler, nil
}

// prunePeriodically drops dead rate-limiter keys so the in-memory window
// map does not grow with one-off visitors.
func prunePeriodically(ctx context.Context, limiter *ratelimit.Manager) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
