// Command seed provisions a demo user and imports the invoice CSVs found
// in the seed directory through the regular pipeline: extraction, naming,
// persistence, conversion and site record insertion.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	authrepo "github.com/RonTitans/BillFlow/internal/domain/auth/repository"
	authservice "github.com/RonTitans/BillFlow/internal/domain/auth/service"
	"github.com/RonTitans/BillFlow/internal/domain/billing/converter"
	billingrepo "github.com/RonTitans/BillFlow/internal/domain/billing/repository"
	billingservice "github.com/RonTitans/BillFlow/internal/domain/billing/service"
	"github.com/RonTitans/BillFlow/pkg/config"
	"github.com/RonTitans/BillFlow/pkg/db"
	"github.com/RonTitans/BillFlow/pkg/storage"
)

const (
	demoUsername = "demo"
	demoPassword = "demo1234"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	database, err := db.New(db.Config{DSN: cfg.Database.DSN()}, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	userRepo := authrepo.NewPostgresUserRepository(database.Pool)
	uploadRepo := billingrepo.NewPostgresUploadRepository(database.Pool)

	user, err := ensureDemoUser(ctx, userRepo, logger)
	if err != nil {
		return err
	}

	existing, err := uploadRepo.ListUploads(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("demo user already has uploads, nothing to do",
			slog.Int("count", len(existing)))
		return nil
	}

	store, err := storage.NewLocalStore(cfg.Processing.StorageDir)
	if err != nil {
		return fmt.Errorf("init file storage: %w", err)
	}

	tolerance, err := decimal.NewFromString(cfg.Processing.MatchTolerance)
	if err != nil {
		return fmt.Errorf("invalid match tolerance: %w", err)
	}
	runner := converter.NewRunner(cfg.Processing.PythonBin, cfg.Processing.ConverterScript, tolerance, logger)

	svc := billingservice.NewUploadService(uploadRepo, store, runner,
		billingservice.Options{DefaultMunicipality: cfg.Processing.DefaultMunicipality}, logger)

	return importSeedDir(ctx, svc, user.ID, cfg.Processing.SeedDir, logger)
}

// ensureDemoUser creates the demo account on first run. Profile fields
// that do not affect behavior are synthesized.
func ensureDemoUser(ctx context.Context, repo authrepo.UserRepository, logger *slog.Logger) (*authrepo.User, error) {
	user, err := repo.GetUserByUsername(ctx, demoUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, authrepo.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := authservice.HashPassword(demoPassword)
	if err != nil {
		return nil, err
	}

	faker := gofakeit.New(0)
	user, err = repo.CreateUser(ctx, authrepo.NewUserParams{
		Username:       demoUsername,
		HashedPassword: hashed,
		Email:          faker.Email(),
		DisplayName:    faker.Name(),
		Role:           "user",
	})
	if err != nil {
		return nil, err
	}

	logger.Info("demo user created", slog.String("userID", user.ID.String()))
	return user, nil
}

// importSeedDir feeds every CSV in dir through the pipeline in sorted
// filename order, then processes each created record.
func importSeedDir(ctx context.Context, svc *billingservice.UploadService, userID uuid.UUID, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read seed directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	imported := 0
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("open seed file %s: %w", name, err)
		}

		u, err := svc.Upload(ctx, userID, name, f)
		f.Close()
		if err != nil {
			var dup *billingservice.DuplicatePeriodError
			if errors.As(err, &dup) {
				logger.Warn("skipping duplicate billing period",
					slog.String("file", name),
					slog.String("billingPeriod", dup.BillingPeriod))
				continue
			}
			return fmt.Errorf("upload seed file %s: %w", name, err)
		}

		if _, err := svc.Process(ctx, userID, u.ID); err != nil {
			logger.Warn("seed file could not be processed",
				slog.String("file", name), slog.Any("error", err))
			continue
		}

		logger.Info("seed file imported",
			slog.String("file", name),
			slog.String("standardizedName", u.StandardizedName))
		imported++
	}

	logger.Info("seed completed", slog.Int("imported", imported), slog.Int("total", len(names)))
	return nil
}
