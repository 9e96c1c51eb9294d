// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RonTitans/BillFlow/internal/domain/billing/repository"
	"github.com/RonTitans/BillFlow/pkg/storage"
)

// graceWindow keeps very fresh files out of the sweep so an upload whose
// record insert is still in flight is never deleted.
const graceWindow = time.Hour

// Lister extends the artifact store with directory listing and file ages.
type Lister interface {
	storage.Store
	ListDir(subdir string) ([]string, error)
	ModTime(relPath string) (time.Time, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	repo   repository.UploadRepository
	store  Lister
	logger *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(repo repository.UploadRepository, store Lister, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Orphan artifact sweep: runs daily at 3:00 AM
	_, err := s.cron.AddFunc("0 3 * * *", s.sweepOrphanArtifacts)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the orphan sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepOrphanArtifacts()
}

// sweepOrphanArtifacts deletes stored files no record references: debris
// from rejected duplicates, deleted records and crashed conversions.
func (s *Scheduler) sweepOrphanArtifacts() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting orphan artifact sweep")

	referenced, err := s.repo.ListReferencedArtifacts(ctx)
	if err != nil {
		s.logger.Error("failed to list referenced artifacts", slog.Any("error", err))
		return
	}

	removed := 0
	failed := 0

	for _, subdir := range []string{"uploads", "output"} {
		names, err := s.store.ListDir(subdir)
		if err != nil {
			s.logger.Warn("failed to list storage directory",
				slog.String("subdir", subdir),
				slog.Any("error", err),
			)
			continue
		}

		for _, name := range names {
			relPath := path.Join(subdir, name)
			if _, ok := referenced[relPath]; ok {
				continue
			}
			if age, err := s.store.ModTime(relPath); err != nil || time.Since(age) < graceWindow {
				continue
			}
			if err := s.store.Remove(relPath); err != nil {
				s.logger.Warn("failed to remove orphan artifact",
					slog.String("path", relPath),
					slog.Any("error", err),
				)
				failed++
				continue
			}
			s.logger.Debug("removed orphan artifact", slog.String("path", relPath))
			removed++
		}
	}

	s.logger.Info("orphan artifact sweep completed",
		slog.Int("removed", removed),
		slog.Int("failed", failed),
	)
}
