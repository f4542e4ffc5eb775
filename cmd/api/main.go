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

	"github.com/joho/godotenv"
	"github.com/leafbook/internal/config"
	"github.com/leafbook/internal/infrastructure/dynamo"
	"github.com/leafbook/internal/infrastructure/google"
	jwtinfra "github.com/leafbook/internal/infrastructure/jwt"
	"github.com/leafbook/internal/infrastructure/postmark"
	"github.com/leafbook/internal/infrastructure/recaptcha"
	s3infra "github.com/leafbook/internal/infrastructure/s3"
	"github.com/leafbook/internal/infrastructure/smtp"
	"github.com/leafbook/internal/logging"
	transporthttp "github.com/leafbook/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.AppEnv)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("DynamoDB client not available", "err", err)
		os.Exit(1)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	// Access and pending-signup tokens are both signed with these keys.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("JWT provider not available", "err", err)
		os.Exit(1)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("S3 client not available", "err", err)
		os.Exit(1)
	}
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName, cfg.MediaBaseURL)

	var mailer transporthttp.Mailer
	switch cfg.MailProvider {
	case "postmark":
		mailer = postmark.NewMailer(cfg)
	default:
		mailer = smtp.NewMailer(cfg)
	}

	var googleVerifier *google.Verifier
	if cfg.GoogleClientID != "" {
		googleVerifier = google.NewVerifier(cfg.GoogleClientID)
	} else {
		slog.Warn("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
	}
	if cfg.RecaptchaSecretKey == "" {
		slog.Warn("RECAPTCHA_SECRET_KEY not set, every signup will fail the bot check")
	}

	deps := &transporthttp.Deps{
		AccountRepo:   dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts, cfg.DynamoTables.AccountEmails),
		PasscodeRepo:  dynamo.NewPasscodeRepo(dynamoClient, cfg.DynamoTables.Passcodes, cfg.DynamoTables.Accounts),
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		CategoryRepo:  dynamo.NewCategoryRepo(dynamoClient, cfg.DynamoTables.Categories),
		BookRepo:      dynamo.NewBookRepo(dynamoClient, cfg.DynamoTables.Books),
		LeafRepo:      dynamo.NewLeafRepo(dynamoClient, cfg.DynamoTables.Leaves),
		ReviewRepo:    dynamo.NewReviewRepo(dynamoClient, cfg.DynamoTables.Reviews, cfg.DynamoTables.Books),
		SavedBookRepo: dynamo.NewSavedBookRepo(dynamoClient, cfg.DynamoTables.SavedBooks),
		S3Store:       s3Store,
		Mailer:        mailer,
		BotGate:       recaptcha.NewVerifier(cfg),
		Google:        googleVerifier,
		JWTProvider:   jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "mail_provider", cfg.MailProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
