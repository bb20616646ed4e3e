package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/mdd-api/internal/api"
	"github.com/honeynil/mdd-api/internal/config"
	"github.com/honeynil/mdd-api/internal/database"
	"github.com/honeynil/mdd-api/internal/handler"
	"github.com/honeynil/mdd-api/internal/infrastructure/auth"
	"github.com/honeynil/mdd-api/internal/infrastructure/kafka"
	"github.com/honeynil/mdd-api/internal/infrastructure/redis"
	"github.com/honeynil/mdd-api/internal/observability"
	core "github.com/honeynil/mdd-api/internal/repository/postgres"
	service "github.com/honeynil/mdd-api/internal/services"
	_ "github.com/lib/pq"
)

const serviceName = "mdd-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.SetupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracing, metricsHandler, err := observability.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("tracer shutdown failed", "error", err)
		}
	}()

	// A token service that cannot sign is fatal.
	tokens, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		slog.Error("failed to create token service", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		slog.Error("failed to connect to Postgres", "error", err)
		os.Exit(1)
	}

	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.PostgresDSN); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied")
	}

	userRepo := core.NewPostgresUserRepository(db)
	subjectRepo := core.NewPostgresSubjectRepository(db)
	subscriptionRepo := core.NewPostgresSubscriptionRepository(db)
	articleRepo := core.NewPostgresArticleRepository(db)
	commentRepo := core.NewPostgresCommentRepository(db)

	// The subject cache is optional; without Redis every read hits Postgres.
	var cache redis.RedisClient
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR is empty, subject cache disabled")
	} else {
		redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Warn("running without subject cache", "error", err)
		} else {
			cache = redisClient
			defer redisClient.Close()
		}
	}

	// Without brokers events are dropped and no notifications are sent.
	var producer kafka.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers)
		defer kafkaProducer.Close()
		producer = kafkaProducer

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, serviceName+"-notifications", subscriptionRepo)
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx); err != nil {
				slog.Error("notification consumer stopped", "error", err)
			}
		}()
	} else {
		slog.Warn("KAFKA_BROKERS is empty, events disabled")
	}
	events := kafka.NewEventPublisher(producer)

	authService := service.NewAuthService(userRepo, subscriptionRepo, tokens, events)
	subjectService := service.NewSubjectService(subjectRepo, subscriptionRepo, cache, cfg.SubjectCacheTTL)
	articleService := service.NewArticleService(articleRepo, commentRepo, subjectRepo, subscriptionRepo, events)

	router := api.SetupRouter(api.RouterConfig{
		Handler:             handler.NewHandler(authService, subjectService, articleService),
		Tokens:              tokens,
		Users:               userRepo,
		Metrics:             metricsHandler,
		Health:              db.PingContext,
		AllowedOrigin:       cfg.CORSAllowedOrigin,
		AuthRateLimitPerMin: cfg.AuthRateLimitPerMin,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		slog.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
