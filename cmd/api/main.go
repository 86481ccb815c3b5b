package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/nyashahama/gallery-paywall-backend/internal/api"
	"github.com/nyashahama/gallery-paywall-backend/internal/cache"
	"github.com/nyashahama/gallery-paywall-backend/internal/config"
	"github.com/nyashahama/gallery-paywall-backend/internal/db"
	"github.com/nyashahama/gallery-paywall-backend/internal/email"
	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
	"github.com/nyashahama/gallery-paywall-backend/internal/paywall"
	"github.com/nyashahama/gallery-paywall-backend/internal/pricing"
	"github.com/nyashahama/gallery-paywall-backend/internal/rpc"
	"github.com/nyashahama/gallery-paywall-backend/internal/store"
	stripeinternal "github.com/nyashahama/gallery-paywall-backend/internal/stripe"
	"github.com/nyashahama/gallery-paywall-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	// Fails fast, listing every missing required variable at once.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "currency", cfg.Currency)

	dsn, err := cfg.DSN()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// ── Migrations ────────────────────────────────────────────────────────────
	if cfg.MigrateOnStart {
		if err := db.MigrateUp(dsn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// ── Store (idempotent entitlement writes) ─────────────────────────────────
	st := store.New(pool, queries)

	// ── Stripe ────────────────────────────────────────────────────────────────
	stripeClient := stripeinternal.NewClient(cfg.StripeSecretKey, cfg.WebhookTolerance)

	// ── Entitlement cache (optional) ──────────────────────────────────────────
	var entCache entitlement.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		entCache = cache.NewEntitlements(rdb, cfg.EntitlementCacheTTL)
		logger.Info("entitlement cache: redis", "ttl", cfg.EntitlementCacheTTL)
	} else {
		logger.Info("entitlement cache: disabled, reading from postgres")
	}
	entitlements := entitlement.NewService(st, entCache, logger)

	// ── Email ─────────────────────────────────────────────────────────────────
	var mailer email.Sender
	if cfg.ResendAPIKey != "" {
		mailer = email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFromAddr, cfg.EmailFromName, cfg.BaseURL)
	} else {
		mailer = email.NewLogSender(logger)
		logger.Warn("email: RESEND_API_KEY not set, receipts will be logged only")
	}

	// ── Receipt worker ────────────────────────────────────────────────────────
	job := worker.NewJob(queries, mailer, logger)
	runner := worker.NewRunner(job, queries, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── Paywall ───────────────────────────────────────────────────────────────
	intents := paywall.NewIntentService(
		st,
		stripeClient,
		pricing.NewValidator(cfg.PriceToleranceMinor),
		paywall.IntentConfig{
			Currency:           cfg.Currency,
			LifetimePriceMinor: cfg.LifetimePriceMinor,
			BaseURL:            cfg.BaseURL,
		},
		logger,
	)
	webhooks := paywall.NewWebhookProcessor(
		stripeClient,
		cfg.StripeWebhookSecret,
		st,
		entitlements,
		runner, // *Runner satisfies worker.Enqueuer
		logger,
	)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(intents, webhooks, entitlements, api.Config{
		Env:                cfg.Env,
		AllowedOrigin:      cfg.AllowedOrigin,
		PublishableKey:     cfg.StripePublishableKey,
		Currency:           cfg.Currency,
		LifetimePriceMinor: cfg.LifetimePriceMinor,
		UpsellDelay:        cfg.UpsellDelay,
	}, logger)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── gRPC server ───────────────────────────────────────────────────────────
	grpcSrv := rpc.NewServer(entitlements, logger)

	// ── One port, two protocols ───────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker and servers all respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// The worker pool blocks until gctx is done.
	g.Go(func() error {
		runner.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := grpcSrv.Serve(grpcL); err != nil && !isClosed(err) && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.Serve(httpL); err != nil && !isClosed(err) && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", "addr", lis.Addr().String(), "protocols", "http,grpc")
		if err := mux.Serve(); err != nil && !isClosed(err) {
			return fmt.Errorf("listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		// Give in-flight HTTP requests up to 20 seconds to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		mux.Close()
		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// isClosed reports whether err is the normal result of closing a listener.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed)
}

// openDB opens the connection pool and prepares all sqlc statements.
// db.Prepare validates every query against the schema, so the server refuses
// to start when the schema is out of sync.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	// Verify the connection is reachable before proceeding.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	queries, err := db.Prepare(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare statements: %w", err)
	}

	return pool, queries, nil
}
