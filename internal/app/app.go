package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rkwebforge/tracklet/internal/config"
	"github.com/rkwebforge/tracklet/internal/db"
)

// App wires config, database pool, and HTTP router together.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Router http.Handler

	server *http.Server
}

// New connects to the database and builds the router. In dev mode
// pending migrations are applied on boot; in production they are an
// explicit deploy step.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	setupLogger(cfg)

	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	pool, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.IsDev() {
		log.Info().Msg("Development mode: running migrations automatically")
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &App{
		Config: cfg,
		DB:     pool,
		Router: NewRouter(pool, cfg),
	}, nil
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	log.Info().Str("addr", a.Config.HTTPAddr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         a.Config.HTTPAddr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases the pool.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down")

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shut down HTTP server: %w", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return nil
}

// setupLogger configures the global zerolog logger. Dev gets the
// human-readable console writer, production stays on JSON for log
// shippers.
func setupLogger(cfg *config.Config) {
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
