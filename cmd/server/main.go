package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfa-prep/study-service/internal/cache"
	"github.com/cfa-prep/study-service/internal/config"
	"github.com/cfa-prep/study-service/internal/handlers"
	"github.com/cfa-prep/study-service/internal/identity"
	"github.com/cfa-prep/study-service/internal/migrations"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/internal/repositories/memory"
	"github.com/cfa-prep/study-service/internal/repositories/postgres"
	"github.com/cfa-prep/study-service/internal/scheduler"
	"github.com/cfa-prep/study-service/internal/services"
	"github.com/cfa-prep/study-service/internal/utils"
	"github.com/cfa-prep/study-service/internal/validator"
	"github.com/cfa-prep/study-service/pkg"
	"github.com/cfa-prep/study-service/pkg/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Environment)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	provider, err := newIdentityProvider(cfg, logger)
	if err != nil {
		logger.Error("Failed to create identity provider", "error", err)
		os.Exit(1)
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger.Slog())
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	if cfg.MetricsEnabled {
		monitoring.Init()
	}

	serviceManager := services.NewServiceManager(repo, publisher, logger.Slog(), validator.New(), services.ManagerOptions{
		StreakWindow:   cfg.StreakWindow,
		Location:       cfg.StreakLocation(),
		ReconcileGrace: cfg.ReconcileGrace,
	})

	jobs := scheduler.New(serviceManager.Practice(), serviceManager.Reconcile(), scheduler.Settings{
		ReconcileInterval: cfg.ReconcileInterval,
		RunIdleTimeout:    cfg.RunIdleTimeout,
	}, logger.Slog())
	if err := jobs.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer jobs.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.LoggerMiddleware(logger), utils.ContextLogger(logger), gin.Recovery())
	if cfg.MetricsEnabled {
		router.Use(monitoring.MetricsMiddleware())
	}
	handlers.NewHandlerManager(serviceManager, provider, logger).SetupRoutes(router, cfg.MetricsEnabled)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", utils.RequestIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// openStore builds the repository for the configured driver. The returned
// func releases its connections.
func openStore(cfg *config.Config, logger utils.Logger) (repositories.Repository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewRepository(), func() {}, nil
	}

	studyDB, err := pkg.InitDatabase(cfg.StudyDatabase, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(cfg.StudyDatabase, migrations.Study, logger.Slog()); err != nil {
		pkg.CloseDatabase(studyDB)
		return nil, nil, err
	}

	userDB := studyDB
	if cfg.UserDatabase != cfg.StudyDatabase {
		if userDB, err = pkg.InitDatabase(cfg.UserDatabase, cfg.Environment); err != nil {
			pkg.CloseDatabase(studyDB)
			return nil, nil, err
		}
	}
	if err := migrations.Up(cfg.UserDatabase, migrations.Users, logger.Slog()); err != nil {
		closeDatabases(logger, studyDB, userDB)
		return nil, nil, err
	}

	contentCache := cache.NewNoopCache()
	closeRedis := func() {}
	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(cfg.RedisURL)
		if err != nil {
			closeDatabases(logger, studyDB, userDB)
			return nil, nil, err
		}
		contentCache = cache.NewRedisCache(client, logger.Slog())
		// Question sets cached by an earlier release may predate its migrations.
		if err := contentCache.DeletePattern(context.Background(), cache.QuestionSetPattern()); err != nil {
			logger.Warn("Failed to clear cached question sets", "error", err)
		}
		closeRedis = func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close redis client", "error", err)
			}
		}
	} else {
		logger.Info("REDIS_URL not set, question sets are not cached")
	}

	repo := repositories.NewRepository(
		postgres.NewContentPostgreSQL(studyDB, contentCache, cfg.ContentCacheTTL, logger.Slog()),
		postgres.NewSessionPostgreSQL(studyDB),
		postgres.NewProfilePostgreSQL(userDB),
	)
	return repo, func() {
		closeRedis()
		closeDatabases(logger, studyDB, userDB)
	}, nil
}

func closeDatabases(logger utils.Logger, studyDB, userDB *gorm.DB) {
	if err := pkg.CloseDatabase(studyDB); err != nil {
		logger.Error("Failed to close study database", "error", err)
	}
	if userDB != studyDB {
		if err := pkg.CloseDatabase(userDB); err != nil {
			logger.Error("Failed to close user database", "error", err)
		}
	}
}

func newIdentityProvider(cfg *config.Config, logger utils.Logger) (identity.Provider, error) {
	if cfg.Casdoor.Enabled() {
		logger.Info("Authenticating with Casdoor", "endpoint", cfg.Casdoor.Endpoint)
		return identity.NewCasdoorProvider(cfg.Casdoor, logger.Slog())
	}

	logger.Warn("Casdoor not configured, accepting the development token only")
	return identity.NewStaticProvider(map[string]identity.Identity{
		cfg.DevAuthToken: {
			UserID:  "dev-user",
			Email:   "dev@localhost",
			Name:    "Developer",
			IsAdmin: true,
		},
	}), nil
}
