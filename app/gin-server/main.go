package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/config"
	"github.com/cvitapilot/cvitapilot/internal/api/handlers"
	"github.com/cvitapilot/cvitapilot/internal/api/middleware"
	"github.com/cvitapilot/cvitapilot/internal/api/routes"
	"github.com/cvitapilot/cvitapilot/internal/cache"
	"github.com/cvitapilot/cvitapilot/internal/logger"
	"github.com/cvitapilot/cvitapilot/internal/mailer"
	"github.com/cvitapilot/cvitapilot/internal/providers/llm"
	"github.com/cvitapilot/cvitapilot/internal/render"
	mongorepo "github.com/cvitapilot/cvitapilot/internal/repositories/mongo"
	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/repositories/redisrepo"
	"github.com/cvitapilot/cvitapilot/internal/services"
	"github.com/cvitapilot/cvitapilot/internal/storage"
	"github.com/cvitapilot/cvitapilot/internal/tutorial"
	"github.com/cvitapilot/cvitapilot/internal/workers"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// Init PostgreSQL
	if err := config.InitPostgres(cfg.PostgresURI); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if cfg.AutoMigrate {
		if err := config.Migrate(config.PostgresDB); err != nil {
			log.WithError(err).Fatal("PostgreSQL migrate error")
		}
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(cfg.RedisURL); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	// Init MongoDB
	if err := config.InitMongo(cfg.MongoURI); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if err := config.EnsureMongoIndexes(cfg.MongoDB); err != nil {
		log.WithError(err).Warn("MongoDB index setup failed")
	}
	log.Info("MongoDB connected")

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mdb := config.MongoClient.Database(cfg.MongoDB)

	// Repositories
	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	tokenRepo := pgrepo.NewTokenRepo(config.PostgresDB)
	cvRepo := pgrepo.NewCVRepo(config.PostgresDB)
	exportRepo := pgrepo.NewExportRepo(config.PostgresDB)
	sessionRepo := redisrepo.NewSessionRepo(config.RedisClient)
	tutorialRepo := mongorepo.NewTutorialRepo(mdb)
	eventRepo := mongorepo.NewExportEventRepo(mdb, cfg.ExportEventRetention)

	// Providers
	var mail mailer.Mailer = mailer.LogMailer{Logger: log}
	if cfg.SMTPHost != "" {
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.WithError(err).Fatal("SMTP init error")
		}
		mail = m
	} else {
		log.Warn("SMTP_HOST not set, emails are only logged")
	}

	var store storage.ObjectStore
	var local *storage.LocalStore
	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSStore(rootCtx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer gcs.Close()
		store = gcs
	} else {
		ls, err := storage.NewLocalStore(cfg.LocalStorageDir, cfg.PublicURL, cfg.JWTSecret)
		if err != nil {
			log.WithError(err).Fatal("local storage init error")
		}
		store, local = ls, ls
	}

	html, err := render.NewHTMLRenderer()
	if err != nil {
		log.WithError(err).Fatal("template init error")
	}
	pdf := render.NewChromedpRenderer(cfg.ChromePath)

	var gen llm.Provider
	if cfg.VertexProjectID != "" {
		v, err := llm.NewVertexGemini(rootCtx, cfg.VertexProjectID, cfg.VertexLocation, cfg.VertexModel)
		if err != nil {
			log.WithError(err).Warn("Vertex AI unavailable, summary suggestions disabled")
		} else {
			defer v.Close()
			gen = v
		}
	}

	var google services.GoogleOAuth
	if cfg.GoogleOAuthEnabled() {
		google = services.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	// Services
	cvCache := cache.NewRedisCache(config.RedisClient)
	issuer := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)

	authSvc := services.NewAuthService(services.AuthDeps{
		Users:     userRepo,
		Tokens:    tokenRepo,
		Sessions:  sessionRepo,
		States:    redisrepo.NewStateStore(config.RedisClient),
		AuthCodes: redisrepo.NewAuthCodeStore(config.RedisClient),
		Issuer:    issuer,
		Google:    google,
		Mailer:    mail,
		Logger:    log,
	}, services.AuthSettings{
		FrontendURL:     cfg.FrontendURL,
		VerificationTTL: cfg.VerificationTokenTTL,
		RefreshTTL:      cfg.RefreshTokenTTL,
	})
	userSvc := services.NewUserService(services.UserDeps{
		Users:     userRepo,
		CVs:       cvRepo,
		Exports:   exportRepo,
		Sessions:  sessionRepo,
		Tutorials: tutorialRepo,
		Events:    eventRepo,
		Store:     store,
		Cache:     cvCache,
		Logger:    log,
	})
	cvSvc := services.NewCVService(cvRepo, exportRepo, store, cvCache, log, services.CVSettings{
		MaxPerUser: cfg.MaxCVsPerUser,
		CacheTTL:   cfg.CVCacheTTL,
	})
	exportSvc := services.NewExportService(services.ExportDeps{
		CVs:      cvSvc,
		Exports:  exportRepo,
		EventLog: eventRepo,
		HTML:     html,
		PDF:      pdf,
		Store:    store,
		Queue:    services.NewRedisExportQueue(config.RedisClient, cfg.ExportStream),
		Logger:   log,
	}, cfg.DownloadURLTTL)
	tutorialSvc := services.NewTutorialService(tutorialRepo, tutorial.Steps())
	suggestionSvc := services.NewSuggestionService(cvSvc, gen)
	cleanupSvc := services.NewCleanupService(userRepo, tokenRepo, cfg.UnverifiedAccountTTL, log)

	// Workers
	var wg sync.WaitGroup
	pool := &workers.ExportWorkerPool{
		Redis:      config.RedisClient,
		Exports:    exportSvc,
		NumWorkers: cfg.ExportWorkers,
		Logger:     log,
		Stream:     cfg.ExportStream,
		Group:      cfg.ExportGroup,
	}
	if err := pool.Start(rootCtx); err != nil {
		log.WithError(err).Fatal("export workers init error")
	}
	cleaner := &workers.CleanupWorker{Cleanup: cleanupSvc, Interval: cfg.CleanupInterval, Logger: log}
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleaner.Run(rootCtx)
	}()

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log, "/ping", "/health"))

	routes.RegisterRoutes(r, routes.Deps{
		Auth: authSvc,
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := config.PostgresDB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error { return config.RedisClient.Ping(ctx).Err() },
			"mongo": func(ctx context.Context) error { return config.MongoClient.Ping(ctx, nil) },
		}),
		AuthH:      handlers.NewAuthHandler(authSvc, cfg.FrontendURL, log),
		Account:    handlers.NewAccountHandler(userSvc),
		CV:         handlers.NewCVHandler(cvSvc),
		Sections:   handlers.NewSectionHandler(cvSvc),
		Export:     handlers.NewExportHandler(exportSvc, local),
		Tutorial:   handlers.NewTutorialHandler(tutorialSvc),
		Suggestion: handlers.NewSuggestionHandler(suggestionSvc),
		Admin:      handlers.NewAdminHandler(cleanupSvc),
		WS:         handlers.NewWSHandler(exportSvc, config.RedisClient, cfg.FrontendURL),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	pool.Wait()
	wg.Wait()
	shutdown(shutdownCtx, log)
}

func shutdown(ctx context.Context, log *logrus.Logger) {
	if err := config.RedisClient.Close(); err != nil {
		log.WithError(err).Warn("redis close")
	}
	if err := config.MongoClient.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("mongo disconnect")
	}
	if sqlDB, err := config.PostgresDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
