package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/pbspread/internal/adapters/http/api"
	"github.com/okian/pbspread/internal/adapters/http/swagger"
	"github.com/okian/pbspread/internal/adapters/sheet"
	app "github.com/okian/pbspread/internal/app"
	"github.com/okian/pbspread/internal/config"
	"github.com/okian/pbspread/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(newServiceOptions(cfg, log)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newServiceOptions maps configuration onto service options. A sheet file
// takes precedence over a sheet URL.
func newServiceOptions(cfg *config.Config, log logger.Logger) []app.Option {
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithRefreshInterval(cfg.RefreshInterval()),
	}
	switch {
	case cfg.SheetFile != "":
		opts = append(opts, app.WithSource(sheet.NewFileSource(cfg.SheetFile)))
	case cfg.SheetURL != "":
		opts = append(opts, app.WithSource(sheet.NewHTTPSource(cfg.SheetURL, sheet.WithTimeout(cfg.FetchTimeout()))))
	}
	return opts
}

// newHandler registers the docs and API routes.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, svc, cfg.MaxLeaderboardLimit).Register(mux)
	return mux
}
