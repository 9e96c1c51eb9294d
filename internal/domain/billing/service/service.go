// Package service orchestrates the upload record lifecycle: billing-period
// extraction, duplicate-period guarding, persistence and conversion.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RonTitans/BillFlow/internal/domain/billing/converter"
	"github.com/RonTitans/BillFlow/internal/domain/billing/extract"
	"github.com/RonTitans/BillFlow/internal/domain/billing/repository"
	"github.com/RonTitans/BillFlow/pkg/metrics"
	"github.com/RonTitans/BillFlow/pkg/storage"
)

// DuplicatePeriodError rejects an upload whose billing period is already
// held by a completed record. It is a distinct outcome from validation
// failure and maps to HTTP 409.
type DuplicatePeriodError struct {
	ExistingID    uuid.UUID
	ExistingName  string
	BillingPeriod string
}

func (e *DuplicatePeriodError) Error() string {
	return fmt.Sprintf("billing period %s already reconciled by record %s", e.BillingPeriod, e.ExistingID)
}

// ProcessingError is a failed conversion attempt; the record has been
// moved to error status and the detail persisted on it.
type ProcessingError struct {
	Detail string
	Err    error
}

func (e *ProcessingError) Error() string { return "processing failed: " + e.Detail }
func (e *ProcessingError) Unwrap() error { return e.Err }

// ConversionRunner abstracts the external conversion collaborator.
type ConversionRunner interface {
	Convert(ctx context.Context, inputPath, outputDir string) (*converter.Result, error)
}

// Options configure extraction defaults.
type Options struct {
	// DefaultMunicipality is used when neither CSV nor filename carries
	// a recognizable municipality name.
	DefaultMunicipality string
}

// UploadService implements the upload record lifecycle.
type UploadService struct {
	repo   repository.UploadRepository
	store  storage.Store
	runner ConversionRunner
	opts   Options
	logger *slog.Logger

	// inflight guards against concurrent process requests for the same
	// record within this process; the conditional status UPDATE covers
	// the multi-process case.
	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewUploadService creates a new upload service.
func NewUploadService(repo repository.UploadRepository, store storage.Store, runner ConversionRunner, opts Options, logger *slog.Logger) *UploadService {
	return &UploadService{
		repo:     repo,
		store:    store,
		runner:   runner,
		opts:     opts,
		logger:   logger,
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Upload stores an invoice CSV, extracts its billing period, rejects
// duplicates of completed periods and persists a pending record.
func (s *UploadService) Upload(ctx context.Context, userID uuid.UUID, originalFilename string, r io.Reader) (*repository.Upload, error) {
	stored, err := s.store.SaveUpload(originalFilename, r)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	data, err := s.store.ReadFile(stored.Path)
	if err != nil {
		s.removeQuietly(stored.Path)
		return nil, fmt.Errorf("read stored upload: %w", err)
	}

	info := extract.FromCSV(data, s.opts.DefaultMunicipality)
	if info == nil {
		info = extract.FromFilename(originalFilename, s.opts.DefaultMunicipality)
	}

	standardizedName := extract.StandardizedName(
		info.MunicipalityName, info.BillingMonth, info.BillingYear, originalFilename)

	if info.HasPeriod() {
		existing, err := s.repo.FindCompletedByPeriod(ctx, userID, info.BillingPeriod)
		if err != nil {
			s.removeQuietly(stored.Path)
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if existing != nil {
			// Reject and clean up the file we just wrote.
			s.removeQuietly(stored.Path)
			metrics.UploadsTotal.WithLabelValues("duplicate").Inc()
			name := existing.StandardizedName
			if name == "" {
				name = existing.OriginalFilename
			}
			return nil, &DuplicatePeriodError{
				ExistingID:    existing.ID,
				ExistingName:  name,
				BillingPeriod: info.BillingPeriod,
			}
		}
	}

	u := &repository.Upload{
		UserID:           userID,
		OriginalFilename: originalFilename,
		StandardizedName: standardizedName,
		FilePath:         stored.Path,
		FileSize:         stored.Size,
	}
	if info.BillingMonth != 0 {
		u.BillingMonth = &info.BillingMonth
	}
	if info.BillingYear != 0 {
		u.BillingYear = &info.BillingYear
	}
	if info.BillingPeriod != "" {
		u.BillingPeriod = &info.BillingPeriod
	}
	if info.MunicipalityName != "" {
		u.MunicipalityName = &info.MunicipalityName
	}

	if err := s.repo.CreateUpload(ctx, u); err != nil {
		s.removeQuietly(stored.Path)
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("upload accepted",
		slog.String("fileID", u.ID.String()),
		slog.String("standardizedName", standardizedName),
		slog.String("billingPeriod", info.BillingPeriod),
	)
	return u, nil
}

// Process runs the conversion collaborator for a record and finalizes it
// to completed or error. A record already being processed is rejected
// with repository.ErrNotProcessable; error records may be reprocessed.
func (s *UploadService) Process(ctx context.Context, userID, fileID uuid.UUID) (*repository.Upload, error) {
	u, err := s.repo.GetUpload(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	if !s.claim(fileID) {
		return nil, repository.ErrNotProcessable
	}
	defer s.release(fileID)

	if err := s.repo.BeginProcessing(ctx, fileID); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.runner.Convert(ctx, s.store.Abs(u.FilePath), s.store.OutputDir())
	metrics.ConversionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		detail := err.Error()
		var convErr *converter.Error
		if errors.As(err, &convErr) {
			detail = convErr.Detail
		}
		if failErr := s.repo.FailUpload(ctx, fileID, detail); failErr != nil {
			s.logger.Error("failed to record conversion error",
				slog.String("fileID", fileID.String()), slog.Any("error", failErr))
		}
		metrics.ConversionsTotal.WithLabelValues("error").Inc()
		return nil, &ProcessingError{Detail: detail, Err: err}
	}

	upd := conversionUpdate(result)
	if err := s.repo.CompleteUpload(ctx, fileID, upd); err != nil {
		if errors.Is(err, repository.ErrCompletedPeriodExists) {
			// Another upload completed this period while we were
			// converting; the constraint keeps history consistent.
			detail := "billing period was completed by another upload during processing"
			if failErr := s.repo.FailUpload(ctx, fileID, detail); failErr != nil {
				s.logger.Error("failed to record duplicate-period error",
					slog.String("fileID", fileID.String()), slog.Any("error", failErr))
			}
			metrics.ConversionsTotal.WithLabelValues("error").Inc()
			return nil, &ProcessingError{Detail: detail, Err: err}
		}
		return nil, err
	}
	metrics.ConversionsTotal.WithLabelValues("completed").Inc()

	if len(result.SiteRecords) > 0 {
		if err := s.insertSiteRecords(ctx, fileID, result.SiteRecords); err != nil {
			// Analytics enrichment only; the completed record stands.
			s.logger.Warn("failed to insert site billing records",
				slog.String("fileID", fileID.String()), slog.Any("error", err))
		}
	}

	return s.repo.GetUpload(ctx, userID, fileID)
}

// Get returns one record scoped to its owner.
func (s *UploadService) Get(ctx context.Context, userID, fileID uuid.UUID) (*repository.Upload, error) {
	return s.repo.GetUpload(ctx, userID, fileID)
}

// List returns the user's records, newest first.
func (s *UploadService) List(ctx context.Context, userID uuid.UUID) ([]*repository.Upload, error) {
	return s.repo.ListUploads(ctx, userID)
}

// Delete removes a record and best-effort unlinks its artifacts. Unlink
// failures are logged, never surfaced.
func (s *UploadService) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	u, err := s.repo.GetUpload(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteUpload(ctx, userID, fileID); err != nil {
		return err
	}

	for _, rel := range []*string{&u.FilePath, u.ExcelPath, u.TSVPath} {
		if rel == nil || *rel == "" {
			continue
		}
		s.removeQuietly(*rel)
	}
	return nil
}

func (s *UploadService) claim(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *UploadService) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func (s *UploadService) removeQuietly(relPath string) {
	if err := s.store.Remove(relPath); err != nil {
		s.logger.Warn("could not remove artifact", slog.String("path", relPath), slog.Any("error", err))
	}
}

func (s *UploadService) insertSiteRecords(ctx context.Context, fileID uuid.UUID, records []converter.SiteRecord) error {
	rows := make([]repository.SiteBillingRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, repository.SiteBillingRecord{
			FileUploadID:       fileID,
			SiteName:           r.SiteName,
			SiteID:             r.SiteID,
			MeterNumber:        r.MeterNumber,
			ContractNumber:     r.ContractNumber,
			TariffType:         r.TariffType,
			PeriodStart:        r.PeriodStart,
			PeriodEnd:          r.PeriodEnd,
			PeakConsumption:    r.PeakConsumption,
			OffpeakConsumption: r.OffpeakConsumption,
			TotalConsumption:   r.TotalConsumption,
			TotalCost:          r.TotalCost,
			TotalCostVAT:       r.TotalCostVAT,
			DocumentNumber:     r.DocumentNumber,
		})
	}
	return s.repo.InsertSiteRecords(ctx, rows)
}

func conversionUpdate(result *converter.Result) *repository.ConversionUpdate {
	upd := &repository.ConversionUpdate{
		ProcessedFilename: result.ExcelFilename,
		TSVFilename:       result.TSVFilename,
		CSVTotal:          result.CSVTotal,
		TSVTotal:          result.TSVTotal,
		GapAmount:         result.Difference,
		PerfectMatch:      result.PerfectMatch,
		TotalRows:         result.TotalRows,
		IncludedRows:      result.IncludedRows,
	}
	if result.ExcelFilename != "" {
		upd.ExcelPath = "output/" + result.ExcelFilename
	}
	if result.TSVFilename != "" {
		upd.TSVPath = "output/" + result.TSVFilename
	}
	if result.BillingMonth != 0 {
		upd.BillingMonth = &result.BillingMonth
	}
	if result.BillingYear != 0 {
		upd.BillingYear = &result.BillingYear
	}
	if result.BillingPeriod != "" {
		upd.BillingPeriod = &result.BillingPeriod
	}
	return upd
}
