package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abegfix/internal/api"
	"abegfix/internal/auth"
	"abegfix/internal/blob"
	"abegfix/internal/config"
	"abegfix/internal/db"
	"abegfix/internal/email"
	"abegfix/internal/geo"
	"abegfix/internal/jobs"
	"abegfix/internal/kv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		slog.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer database.Close(ctx)
	if err := database.EnsureIndexes(ctx); err != nil {
		slog.Error("failed to ensure indexes", "error", err)
		os.Exit(1)
	}
	slog.Info("mongodb connected", "database", cfg.Mongo.Database)

	redisClient, err := kv.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("redis connected", "addr", cfg.Redis.Addr)

	blobService, err := blob.NewService(ctx, cfg.Storage.S3)
	if err != nil {
		slog.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	slog.Info("object storage initialized", "bucket", cfg.Storage.S3.Bucket)

	repos := api.Repositories{
		Users:      db.NewUserRepository(database),
		Jobs:       db.NewJobRepository(database),
		Reviews:    db.NewReviewRepository(database),
		Categories: db.NewCategoryRepository(database),
		Locations:  db.NewLocationRepository(database),
		AuditLogs:  db.NewAuditLogRepository(database),
		Messages:   db.NewMessageRepository(database),
	}

	tokenStore := kv.NewTokenStore(redisClient)
	referralStore := kv.NewReferralStore(redisClient)
	codec := auth.NewTokenCodec(cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret)
	sessions := auth.NewSessionService(codec, repos.Users, tokenStore, auth.TokenTTLs{
		Access:          cfg.Auth.AccessTokenTTL,
		Refresh:         cfg.Auth.RefreshTokenTTL,
		RememberAccess:  cfg.Auth.RememberAccessTokenTTL,
		RememberRefresh: cfg.Auth.RememberRefreshTokenTTL,
	})

	emailService := email.NewSMTPService(
		cfg.Email.SMTP.Host,
		cfg.Email.SMTP.Port,
		cfg.Email.SMTP.Username,
		cfg.Email.SMTP.Password,
		cfg.Email.SMTP.From,
		cfg.Server.ClientURL,
	)
	slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)

	geocoder := geo.NewGeocoder(cfg.Geocode)
	queue := jobs.NewQueue(redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	go jobs.NewEmailWorker(queue, emailService, cfg.Auth.OneTimeTokenTTL).Start(workerCtx)
	go jobs.NewGeoWorker(queue, geocoder, repos.Users).Start(workerCtx)
	go db.NewFeatureCleanupService(repos.Users).Start(workerCtx)

	server := api.NewServer(cfg, database, redisClient, repos, sessions, referralStore, queue, blobService, geocoder)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	workerCancel()
	server.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
