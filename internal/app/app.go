// Package app wires the portal's components from configuration. Both the
// HTTP server and the operator CLI start from here.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"countyportal/internal/config"
	"countyportal/internal/db"
	"countyportal/internal/langdetect"
	"countyportal/internal/metrics"
	"countyportal/internal/notify"
	"countyportal/internal/rate"
	"countyportal/internal/service"
	"countyportal/internal/store"
	"countyportal/internal/wordlist"
)

type App struct {
	DB       *sql.DB
	Store    *store.Store
	Words    wordlist.Store
	Detector langdetect.Detector
	Mailer   notify.Mailer
	Metrics  *metrics.Metrics
	Service  *service.Service
}

// Open connects to the database, applies migrations and assembles the
// service. Callers must Close the result.
func Open(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn, cfg.DBDriver); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	st := store.New(conn, cfg.DBDriver)

	mailer, err := notify.NewMailer(cfg, logger)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mailer: %w", err)
	}

	a := &App{
		DB:       conn,
		Store:    st,
		Words:    NewWordStore(cfg, st, logger),
		Detector: NewDetector(cfg, logger),
		Mailer:   mailer,
		Metrics:  metrics.New(),
	}
	a.Service = service.New(cfg, st, a.Words, a.Detector, a.Mailer, logger, service.WithMetrics(a.Metrics))
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

func NewWordStore(cfg config.Config, st *store.Store, logger *zap.Logger) wordlist.Store {
	if cfg.WordListBackend == "db" {
		return wordlist.NewSettingStore(st, logger.Named("wordlist"))
	}
	return wordlist.NewFileStore(cfg.WordListPath, logger.Named("wordlist"))
}

// NewDetector puts the heuristic behind the remote service so a comment is
// always classified, even when the service is down.
func NewDetector(cfg config.Config, logger *zap.Logger) langdetect.Detector {
	if !cfg.LangDetectEnabled {
		return langdetect.Heuristic{}
	}
	return langdetect.Fallback{
		Primary:   langdetect.NewLibreTranslate(cfg.LangDetectURL, cfg.LangDetectTimeout, cfg.LangDetectMinConfidence, logger),
		Secondary: langdetect.Heuristic{},
	}
}

// NewLimiter returns the limiter and a cleanup func for its connection.
func NewLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) (rate.Limiter, func(), error) {
	if cfg.RateLimitBackend != "redis" {
		return rate.NewMemoryLimiter(), func() {}, nil
	}
	client, err := rate.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rate.NewRedisLimiter(client, logger.Named("rate")), func() { _ = client.Close() }, nil
}
