package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/typetrack/typetrack/internal/adapters/http/api"
	"github.com/typetrack/typetrack/internal/adapters/repository"
	app "github.com/typetrack/typetrack/internal/app"
	"github.com/typetrack/typetrack/internal/config"
	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/identity"
	"github.com/typetrack/typetrack/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithDBPath(cfg.DBPath),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithCacheTTL(time.Duration(cfg.CacheTTLSeconds)*time.Second),
		app.WithStoreTimeout(time.Duration(cfg.StoreTimeoutMS)*time.Millisecond),
		app.WithHubSendBuffer(cfg.HubSendBuffer),
		app.WithStrictValidation(cfg.StrictValidation),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Token issuance belongs to the external auth collaborator; until one is
	// plugged in, a demo identity keeps the authed routes reachable.
	verifier := identity.NewStaticVerifier()
	bootstrapDemoUser(ctx, svc.Store(), verifier, log)
	resolver := identity.NewStoreResolver(verifier, svc.Store())

	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, resolver, svc.Hub(),
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithAnalyticsDefaultLimit(cfg.AnalyticsDefaultLimit),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// bootstrapDemoUser creates the demo identity on first run and issues a
// fresh token for it each start. The token only ever appears in the log.
func bootstrapDemoUser(ctx context.Context, store repository.Store, verifier *identity.StaticVerifier, log logger.Logger) {
	const demoID = "00000000-0000-0000-0000-000000000001"

	err := store.CreateUser(ctx, model.User{ID: demoID, Username: "demo", Active: true})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		log.Warn(ctx, "demo user bootstrap failed", logger.Error(err))
		return
	}

	token := uuid.NewString()
	verifier.Issue(token, demoID)
	log.Info(ctx, "demo token issued", logger.String("token", token))
}

// startServiceMetricsUpdater refreshes service gauges on a fixed interval.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes queue, user and worker gauges as it reads.
			_ = svc.GetStats()
		}
	}
}
