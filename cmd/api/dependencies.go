package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RonTitans/BillFlow/internal/domain/analytics"
	authhandler "github.com/RonTitans/BillFlow/internal/domain/auth/handler"
	authrepo "github.com/RonTitans/BillFlow/internal/domain/auth/repository"
	authservice "github.com/RonTitans/BillFlow/internal/domain/auth/service"
	"github.com/RonTitans/BillFlow/internal/domain/billing/converter"
	billinghandler "github.com/RonTitans/BillFlow/internal/domain/billing/handler"
	billingrepo "github.com/RonTitans/BillFlow/internal/domain/billing/repository"
	billingservice "github.com/RonTitans/BillFlow/internal/domain/billing/service"
	"github.com/RonTitans/BillFlow/pkg/config"
	"github.com/RonTitans/BillFlow/pkg/cron"
	"github.com/RonTitans/BillFlow/pkg/db"
	"github.com/RonTitans/BillFlow/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	UserRepo      authrepo.UserRepository
	UploadRepo    billingrepo.UploadRepository
	AnalyticsRepo *analytics.Repository

	// Services
	TokenManager     authservice.TokenManager
	AuthService      *authservice.AuthService
	UploadService    *billingservice.UploadService
	AnalyticsService *analytics.Service
	FileStore        *storage.LocalStore
	Scheduler        *cron.Scheduler

	// Handlers
	AuthHandler      *authhandler.AuthHandler
	BillingHandler   *billinghandler.BillingHandler
	AnalyticsHandler *analytics.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.UserRepo = authrepo.NewPostgresUserRepository(d.DB.Pool)
	d.UploadRepo = billingrepo.NewPostgresUploadRepository(d.DB.Pool)
	d.AnalyticsRepo = analytics.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.TokenManager = authservice.NewTokenManager([]byte(d.Config.Auth.JWTSecret), d.Config.Auth.TokenTTL)
	d.AuthService = authservice.NewAuthService(d.UserRepo, d.TokenManager, d.Logger)

	store, err := storage.NewLocalStore(d.Config.Processing.StorageDir)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStore = store

	tolerance, err := decimal.NewFromString(d.Config.Processing.MatchTolerance)
	if err != nil {
		return fmt.Errorf("invalid match tolerance %q: %w", d.Config.Processing.MatchTolerance, err)
	}

	runner := converter.NewRunner(
		d.Config.Processing.PythonBin,
		d.Config.Processing.ConverterScript,
		tolerance,
		d.Logger,
	)

	d.UploadService = billingservice.NewUploadService(
		d.UploadRepo,
		d.FileStore,
		runner,
		billingservice.Options{DefaultMunicipality: d.Config.Processing.DefaultMunicipality},
		d.Logger,
	)

	d.AnalyticsService = analytics.NewService(d.AnalyticsRepo, d.Logger)

	d.Scheduler = cron.NewScheduler(d.UploadRepo, d.FileStore, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.AuthHandler = authhandler.NewAuthHandler(d.AuthService, d.Logger)
	d.BillingHandler = billinghandler.NewBillingHandler(d.UploadService, d.FileStore, d.Logger)
	d.AnalyticsHandler = analytics.NewHandler(d.AnalyticsService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
