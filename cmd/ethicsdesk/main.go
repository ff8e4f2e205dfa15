package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ethicsdesk/ethicsdesk/internal/adapter/docs"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/email"
	edhttp "github.com/ethicsdesk/ethicsdesk/internal/adapter/http"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/ldap"
	ednats "github.com/ethicsdesk/ethicsdesk/internal/adapter/nats"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/natskv"
	edotel "github.com/ethicsdesk/ethicsdesk/internal/adapter/otel"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/postgres"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/ristretto"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/slack"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/tiered"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/ws"
	"github.com/ethicsdesk/ethicsdesk/internal/config"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/route"
	"github.com/ethicsdesk/ethicsdesk/internal/logger"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
	"github.com/ethicsdesk/ethicsdesk/internal/port/directory"
	"github.com/ethicsdesk/ethicsdesk/internal/port/notifier"
	"github.com/ethicsdesk/ethicsdesk/internal/service"
)

const apiKeyBcryptCost = 12

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"ldap_enabled", cfg.LDAP.Enabled,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := ednats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Reference data cache: in-process ristretto in front of a shared
	// NATS KV bucket, so invalidations reach every instance.
	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	kv, err := queue.KeyValue(ctx, "refdata", cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("cache bucket: %w", err)
	}
	refCache := tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)

	// Replayed mutations (client retries after a timeout) must not create
	// duplicate proposals or votes; responses are cached by Idempotency-Key.
	idemKV, err := queue.KeyValue(ctx, "idempotency", 24*time.Hour)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	var dir directory.Directory
	if cfg.LDAP.Enabled {
		dir = ldap.New(cfg.LDAP)
		slog.Info("ldap directory enabled", "url", cfg.LDAP.URL)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	workflowSvc := service.NewWorkflowService(store, queue, hub, docs.NewGenerator(queue), service.WorkflowConfig{
		Chambers:            chamberMap(cfg.Workflow.Chambers),
		ShortRouteReviewers: cfg.Workflow.ShortRouteReviewers,
		LongRouteReviewers:  cfg.Workflow.LongRouteReviewers,
	})
	proposalSvc := service.NewProposalService(store, workflowSvc)
	reviewSvc := service.NewReviewService(store, queue, hub, workflowSvc)
	refdataSvc := service.NewRefDataService(store, refCache, cfg.Cache.TTL)
	userSvc := service.NewUserService(store, dir)
	authSvc := service.NewAuthService(store, apiKeyBcryptCost)

	notifiers := []notifier.Notifier{email.NewNotifier(cfg.SMTP)}
	if cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, slack.NewNotifier(cfg.Slack.WebhookURL))
	}
	notifSvc := service.NewNotificationService(store, notifiers, nil)
	cancelNotif, err := notifSvc.Run(ctx, queue)
	if err != nil {
		return fmt.Errorf("notification subscriber: %w", err)
	}
	defer cancelNotif()

	// --- Telemetry ---

	if cfg.Telemetry.Enabled {
		shutdownOtel, err := edotel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(shutdownCtx)
		}()

		metrics, err := edotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		cancelTelemetry, err := service.NewTelemetryService(metrics).Run(ctx, queue)
		if err != nil {
			return fmt.Errorf("telemetry subscriber: %w", err)
		}
		defer cancelTelemetry()
	}

	// --- HTTP ---

	handlers := &edhttp.Handlers{
		Proposals: proposalSvc,
		Reviews:   reviewSvc,
		RefData:   refdataSvc,
		Users:     userSvc,
		Auth:      authSvc,
		Pool:      pool,
		Queue:     queue,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Server.RateLimit > 0 {
		rl := middleware.NewRateLimiter(float64(cfg.Server.RateLimit), cfg.Server.RateBurst)
		stopCleanup := rl.StartCleanup(time.Minute, 10*time.Minute)
		defer stopCleanup()
		r.Use(rl.Handler)
	}
	r.Use(edhttp.SecurityHeaders)
	r.Use(edhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(edhttp.Logger)
	if cfg.Telemetry.Enabled {
		r.Use(edotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))
	r.Use(middleware.Idempotency(idemKV))

	r.Get("/ws", hub.HandleWS)
	edhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := queue.Drain(); err != nil {
		slog.Warn("queue drain", "error", err)
	}
	return nil
}

func chamberMap(m map[string]string) route.ChamberMap {
	out := make(route.ChamberMap, len(m))
	for domain, chamber := range m {
		out[domain] = route.Chamber(chamber)
	}
	return out
}
