package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	accesshandler "attesta/internal/access/handler"
	accessservice "attesta/internal/access/service"
	accessstore "attesta/internal/access/store"
	"attesta/internal/audit"
	credentialhandler "attesta/internal/credential/handler"
	credentialservice "attesta/internal/credential/service"
	credentialstore "attesta/internal/credential/store"
	"attesta/internal/identity"
	"attesta/internal/notify"
	"attesta/internal/platform/config"
	"attesta/internal/platform/database"
	"attesta/internal/platform/health"
	"attesta/internal/platform/kafka/producer"
	"attesta/internal/platform/logger"
	"attesta/internal/platform/metrics"
	"attesta/internal/serial"
	serialhandler "attesta/internal/serial/handler"
	httptransport "attesta/internal/transport/http"
	verificationhandler "attesta/internal/verification/handler"
	verificationservice "attesta/internal/verification/service"
	verificationstore "attesta/internal/verification/store"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)

	log.Info("initializing attesta",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close() //nolint:errcheck // best-effort close on shutdown
	db := pool.DB()

	m := metrics.New()

	auditor := audit.NewPublisher(audit.NewPostgres(db), audit.WithPublisherLogger(log))
	defer auditor.Close()

	allocator := serial.NewAllocator(
		newCounterPostgresTx(db, cfg.AllocatorLockTimeout),
		log,
		serial.WithMetrics(m),
	)

	credStore := credentialstore.NewPostgres(db)
	credentialSvc := credentialservice.NewService(
		newIssuePostgresTx(db, cfg.AllocatorLockTimeout),
		credStore,
		allocator,
		auditor,
		log,
		credentialservice.WithMetrics(m),
	)

	accessSvc := accessservice.NewService(
		newAccessPostgresTx(db),
		accessstore.NewPostgres(db),
		auditor,
		log,
		accessservice.WithMetrics(m),
		accessservice.WithPolicy(accessservice.Policy{
			RequestTTL:     cfg.RequestTTL,
			GrantTTLAll:    cfg.GrantTTLAll,
			GrantTTLSingle: cfg.GrantTTLSingle,
			DailyCap:       cfg.DailyRequestCap,
		}),
	)

	verificationSvc := verificationservice.NewService(
		credStore,
		accessSvc,
		verificationstore.NewPostgres(db),
		auditor,
		log,
		verificationservice.WithMetrics(m),
	)

	outbox := notify.NewPostgresOutbox(db)
	sink, prod := buildSink(cfg, log)
	if prod != nil {
		defer prod.Close() //nolint:errcheck // flushes buffered messages on shutdown
	}
	worker := notify.NewWorker(outbox, sink, log)
	worker.Start()

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("database", func() error {
		return pool.Health(context.Background())
	})
	if prod != nil {
		healthHandler.RegisterCheck("kafka", func() error {
			if !prod.Healthy(context.Background()) {
				return errors.New("kafka unreachable")
			}
			return nil
		})
	}

	validator := identity.NewJWTValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(httptransport.Handlers{
		Serials:      serialhandler.New(allocator, auditor, log, m),
		Credentials:  credentialhandler.New(credentialSvc, log, m),
		Access:       accesshandler.New(accessSvc, log, m),
		Verification: verificationhandler.New(verificationSvc, log, m),
		Health:       healthHandler,
	}, validator, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return worker.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildSink picks the notification transport: Kafka when brokers are
// configured, the application log otherwise.
func buildSink(cfg config.Server, log *slog.Logger) (notify.Sink, *producer.Producer) {
	if cfg.KafkaBrokers == "" {
		log.Info("no kafka brokers configured, notifications go to the log")
		return notify.NewLogSink(log), nil
	}
	prod, err := producer.New(producer.Config{Brokers: cfg.KafkaBrokers}, log)
	if err != nil {
		log.Error("failed to build kafka producer, falling back to log sink", "error", err)
		return notify.NewLogSink(log), nil
	}
	return notify.NewKafkaSink(prod, cfg.KafkaTopic), prod
}
