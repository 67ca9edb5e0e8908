package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"exchangedocs/internal/app"
	"exchangedocs/internal/config"
	"exchangedocs/internal/generate"
	"exchangedocs/internal/gitrepo"
	"exchangedocs/internal/manifest"
	"exchangedocs/internal/objectstore"
	"exchangedocs/internal/records"
	"exchangedocs/internal/resolve"
	"exchangedocs/internal/search"
	"exchangedocs/internal/store"
	"exchangedocs/internal/util"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: util.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	ctx := context.Background()

	fatal := func(msg string, err error) {
		logger.Error(msg, slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("database connection failed", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		fatal("migrations failed", err)
	}

	dataStore := store.NewPostgresStore(db)
	objects, err := objectstore.NewMinIO(ctx, objectstore.MinIOConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		fatal("object storage connection failed", err)
	}

	checks := []app.Check{
		{Name: "database", Pinger: dataStore},
		{Name: "storage", Pinger: objects},
	}
	deps := app.Deps{Documents: dataStore, Logger: logger}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := manifest.NewRedisStore(cfg.RedisURL, cfg.ManifestTTL)
		if err != nil {
			fatal("redis connection failed", err)
		}
		defer redisStore.Close()
		deps.Manifests = redisStore
		checks = append(checks, app.Check{Name: "redis", Pinger: redisStore})
	} else {
		logger.Info("REDIS_URL empty; generation manifests disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db))
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}
	deps.Search = searchService

	var (
		templates    generate.TemplateSource
		requirements generate.RequirementSource
	)
	switch cfg.TemplateSource {
	case config.TemplateSourceGit:
		if err := os.MkdirAll(cfg.TemplateRepoDir, 0o755); err != nil {
			fatal("failed to create template repo dir", err)
		}
		library := gitrepo.New(cfg.TemplateRepoDir)
		templates, requirements = library, library
	case config.TemplateSourceStore:
		templates, requirements = dataStore, dataStore
	default:
		fatal("invalid TEMPLATE_SOURCE", errors.New(cfg.TemplateSource))
	}

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		logger.Warn("invalid DOC_LOCALE, using en-US", slog.String("locale", cfg.Locale))
		locale = language.AmericanEnglish
	}

	deps.Generator = generate.New(
		templates,
		records.NewAggregator(dataStore, cfg.FetchTimeout, logger),
		objects,
		resolve.New(resolve.WithLocale(locale)),
		generate.WithLogger(logger),
		generate.WithOutputPrefix(cfg.OutputPrefix),
		generate.WithRequirements(requirements),
	)
	deps.Checks = checks

	httpServer := app.NewHTTPServer(app.NewService(deps), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("exchangedocs API listening", slog.String("addr", cfg.Addr), slog.String("template_source", cfg.TemplateSource))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server failed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
}
