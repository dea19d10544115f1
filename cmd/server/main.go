package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"sightline/internal/audit"
	"sightline/internal/geocode"
	geocodegoogle "sightline/internal/geocode/google"
	"sightline/internal/images"
	imagesmemory "sightline/internal/images/memory"
	imagess3 "sightline/internal/images/s3"
	"sightline/internal/intake"
	intakehandler "sightline/internal/intake/handler"
	jwttoken "sightline/internal/jwt_token"
	"sightline/internal/maintenance"
	maintenancehandler "sightline/internal/maintenance/handler"
	"sightline/internal/moderation"
	"sightline/internal/moderation/gcnl"
	"sightline/internal/platform/config"
	platformfirestore "sightline/internal/platform/firestore"
	"sightline/internal/platform/httpserver"
	"sightline/internal/platform/logger"
	"sightline/internal/platform/metrics"
	platformpostgres "sightline/internal/platform/postgres"
	platformredis "sightline/internal/platform/redis"
	"sightline/internal/quota"
	"sightline/internal/report"
	reportfirestore "sightline/internal/report/store/firestore"
	reportmemory "sightline/internal/report/store/memory"
	reportpostgres "sightline/internal/report/store/postgres"
	httptransport "sightline/internal/transport/http"
	"sightline/internal/verification"
	verificationhandler "sightline/internal/verification/handler"
)

// main wires the stores and services and runs the HTTP server plus the
// maintenance scheduler. Business logic lives in the internal packages;
// everything here is composition and lifecycle.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live store: Postgres when configured, in-memory otherwise. The memory
	// fakes back local development and tests.
	var (
		store      report.Store
		modLog     report.ModerationLog
		auditStore audit.Store
		sweeper    maintenance.Sweeper
	)
	if cfg.DatabaseURL != "" {
		db, err := platformpostgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()

		pgStore := reportpostgres.New(db)
		pgAudit := audit.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("report schema setup failed", "error", err.Error())
			os.Exit(1)
		}
		if err := pgAudit.EnsureSchema(ctx); err != nil {
			log.Error("audit schema setup failed", "error", err.Error())
			os.Exit(1)
		}
		store, modLog, auditStore = pgStore, pgStore, pgAudit
	} else {
		mem := reportmemory.NewInMemoryStore()
		store, modLog, auditStore = mem, mem, audit.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory report store")
	}

	// Quota ledger: Redis gives the atomic cross-process increment; the
	// in-memory ledger is only safe for a single instance.
	var ledger quota.Ledger
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		ledger = quota.NewRedisLedger(redisClient)
	} else {
		memLedger := quota.NewInMemoryLedger()
		ledger, sweeper = memLedger, memLedger
		log.Warn("REDIS_URL not set, using in-memory quota ledger")
	}

	// Cold store for aged-out reports.
	var cold report.ColdStore
	if cfg.FirestoreProjectID != "" {
		fsClient, err := platformfirestore.New(ctx, cfg.FirestoreProjectID)
		if err != nil {
			log.Error("firestore connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer fsClient.Close()
		cold = reportfirestore.NewColdStore(fsClient, cfg.FirestoreCollection)
	} else {
		cold = reportmemory.NewInMemoryColdStore()
		log.Warn("FIRESTORE_PROJECT_ID not set, using in-memory cold store")
	}

	// Image store.
	var imageStore images.Store
	if cfg.S3.AccessKeyID != "" {
		s3Store, err := imagess3.New(ctx, cfg.S3, log)
		if err != nil {
			log.Error("s3 connect failed", "error", err.Error())
			os.Exit(1)
		}
		imageStore = s3Store
	} else {
		imageStore = imagesmemory.NewInMemoryStore()
		log.Warn("S3_ACCESS_KEY_ID not set, using in-memory image store")
	}

	// External validation services.
	geocoder := geocodegoogle.New(nil, geocodegoogle.Config{
		APIKey:  cfg.Geocode.APIKey,
		Timeout: cfg.Geocode.Timeout,
	})
	validator := geocode.NewValidator(geocoder, cfg.Geocode.Country)

	classifier, err := gcnl.New(ctx, cfg.Moderation.APIKey)
	if err != nil {
		log.Error("sentiment client setup failed", "error", err.Error())
		os.Exit(1)
	}
	moderator := moderation.New(classifier, modLog,
		moderation.WithLogger(log),
		moderation.WithThresholds(cfg.Moderation.ScoreThreshold, cfg.Moderation.MagnitudeThreshold),
	)

	// Audit log with optional Kafka fan-out.
	auditOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.KafkaAuditTopic),
		)
		if err != nil {
			log.Error("kafka connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer producer.Close()
		auditOpts = append(auditOpts, audit.WithKafka(producer, cfg.KafkaAuditTopic))
	}
	auditor, err := audit.NewPublisher(auditStore, auditOpts...)
	if err != nil {
		log.Error("audit publisher setup failed", "error", err.Error())
		os.Exit(1)
	}

	// Services.
	intakeSvc, err := intake.New(store, ledger, moderator, validator, cfg.SubmitDailyLimit,
		intake.WithLogger(log),
		intake.WithMetrics(m),
	)
	if err != nil {
		log.Error("intake setup failed", "error", err.Error())
		os.Exit(1)
	}
	workflowSvc, err := verification.New(store, imageStore, auditor,
		verification.WithLogger(log),
		verification.WithMetrics(m),
	)
	if err != nil {
		log.Error("verification setup failed", "error", err.Error())
		os.Exit(1)
	}
	jobsOpts := []maintenance.Option{
		maintenance.WithLogger(log),
		maintenance.WithMetrics(m),
	}
	if sweeper != nil {
		jobsOpts = append(jobsOpts, maintenance.WithSweeper(sweeper))
	}
	jobsSvc, err := maintenance.New(store, cold, cfg.AgingRetention, cfg.AgingInterval, jobsOpts...)
	if err != nil {
		log.Error("maintenance setup failed", "error", err.Error())
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "sightline")

	router := httptransport.NewRouter(log,
		intakehandler.New(intakeSvc, log, m, jwtService),
		verificationhandler.New(workflowSvc, log, m, jwtService),
		maintenancehandler.New(jobsSvc, log, m, jwtService),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sightline", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := jobsSvc.RunScheduler(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
