package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"keywarden/internal/bot"
	"keywarden/internal/config"
	"keywarden/internal/exporter"
	"keywarden/internal/infrastructure"
	"keywarden/internal/services"
	"keywarden/internal/store"
	httpapi "keywarden/internal/transport/http"
)

const AppName = "keywarden"

// Application holds every long-lived component.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Primary *store.Primary
	Admin   *store.Admin
	Bot     *bot.Bot
	API     *httpapi.Server
}

// NewApplication loads configuration and wires the full dependency
// graph. Nothing is started yet; Run owns the lifecycle.
func NewApplication() (*Application, error) {
	// A .env file is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", httpapi.Version))

	primary, err := store.OpenPrimary(cfg.Paths.PrimaryStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary store: %w", err)
	}
	admin, err := store.OpenAdmin(cfg.Paths.AdminStore)
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to open admin store: %w", err)
	}

	licenses := services.NewLicenseService(primary, admin, logger)
	accounts := services.NewAccountService(primary, cfg.Security.BcryptCost, cfg.Cooldown(), cfg.Download.URL, logger)
	apiKeys := services.NewAPIKeyService(admin, logger)
	stats := services.NewStatsService(primary, admin, logger)

	export, err := exporter.New(cfg.Paths.ExportDir)
	if err != nil {
		primary.Close()
		admin.Close()
		return nil, fmt.Errorf("failed to prepare export directory: %w", err)
	}

	handlers := bot.NewHandlers(licenses, accounts, apiKeys, stats, export, logger)
	b, err := bot.New(*cfg, handlers, logger)
	if err != nil {
		primary.Close()
		admin.Close()
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	app := &Application{
		Config:  cfg,
		Logger:  logger,
		Primary: primary,
		Admin:   admin,
		Bot:     b,
	}
	if cfg.API.Enabled {
		app.API = httpapi.NewServer(cfg.API, licenses, admin, logger)
	}
	return app, nil
}

// Run starts the bot and the API server and blocks until SIGINT or
// SIGTERM, then shuts everything down in order.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if err := a.Bot.Start(gctx); err != nil {
		a.shutdown(ctx)
		return err
	}

	if a.API != nil {
		g.Go(func() error {
			return a.API.ListenAndServe()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.API.ShutdownTimeout)
			defer cancel()
			return a.API.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	a.shutdown(context.Background())
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (a *Application) shutdown(ctx context.Context) {
	a.Logger.InfoContext(ctx, "shutting down")

	if err := a.Bot.Stop(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing bot session", slog.String("error", err.Error()))
	}

	// Access logs that could not be written when the admin store was
	// unavailable sit in the in-memory ring; surface how many are lost.
	if buffered := a.Admin.BufferedAccessLogs(); len(buffered) > 0 {
		a.Logger.WarnContext(ctx, "unflushed access logs at shutdown", slog.Int("count", len(buffered)))
	}

	if err := a.Admin.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing admin store", slog.String("error", err.Error()))
	}
	if err := a.Primary.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing primary store", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "shutdown complete", slog.String("at", time.Now().UTC().Format(time.RFC3339)))
	infrastructure.CloseLogFile()
}
