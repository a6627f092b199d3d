package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-session-auth/internal/config"
	"github.com/go-session-auth/internal/infrastructure/awsconf"
	"github.com/go-session-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-session-auth/internal/infrastructure/jwt"
	"github.com/go-session-auth/internal/infrastructure/redis"
	s3infra "github.com/go-session-auth/internal/infrastructure/s3"
	"github.com/go-session-auth/internal/infrastructure/smtp"
	"github.com/go-session-auth/internal/infrastructure/sns"
	"github.com/go-session-auth/internal/observability"
	pkgtoken "github.com/go-session-auth/internal/pkg/token"
	transporthttp "github.com/go-session-auth/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return err
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	var sessions transporthttp.SessionRepository
	var closers []func() error
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		closers = append(closers, rdb.Close)
		sessions = redis.NewSessionStore(rdb)
	default:
		sessions = dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	}
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("close failed", "err", err)
			}
		}
	}()

	secret := cfg.SessionSecret
	if secret == "" {
		// Only reachable in development; Validate rejects it elsewhere.
		if secret, err = pkgtoken.NewHex(32); err != nil {
			return err
		}
		slog.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}
	signer, err := jwtinfra.NewCookieSigner(secret)
	if err != nil {
		return err
	}

	deps := &transporthttp.Deps{
		UserRepo:     dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionStore: sessions,
		Signer:       signer,
		Mailer:       smtp.NewMailer(cfg),
		Events:       sns.NewPublisher(awsCfg, cfg.AWSEndpointURL, cfg.SNSTopicARN),
		Metrics:      observability.NewMetrics(),
	}
	if cfg.MailTemplateBucket != "" {
		deps.Templates = s3infra.NewStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.MailTemplateBucket)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "session_store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	if cfg.AppEnv == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
