// Package repository defines persistence for upload records and their
// per-site billing line items.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the processing state of an upload record. Transitions are
// monotonic: pending -> processing -> completed | error. Error records
// may re-enter processing; completed and processing records keep their
// history (reprocessing a completed record overwrites its results in
// place only through the processing state).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var (
	// ErrNotFound means no upload record matched the id/user scope.
	ErrNotFound = errors.New("upload record not found")

	// ErrCompletedPeriodExists is raised by the partial unique index on
	// (user_id, billing_period) for completed rows.
	ErrCompletedPeriodExists = errors.New("a completed upload already exists for this billing period")

	// ErrNotProcessable means the record is currently processing and
	// cannot be claimed again.
	ErrNotProcessable = errors.New("upload record is already being processed")
)

// Upload is one submitted invoice CSV and everything derived from it.
type Upload struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	OriginalFilename string
	StandardizedName string
	FilePath         string
	FileSize         int64

	BillingMonth     *int
	BillingYear      *int
	BillingPeriod    *string
	MunicipalityName *string

	Status           Status
	ProcessingErrors *string

	CSVTotal     *decimal.Decimal
	TSVTotal     *decimal.Decimal
	GapAmount    *decimal.Decimal
	PerfectMatch *bool
	TotalRows    *int
	IncludedRows *int

	ProcessedFilename *string
	ExcelPath         *string
	TSVFilename       *string
	TSVPath           *string

	UploadTime    time.Time
	ProcessedTime *time.Time
}

// ConversionUpdate carries the fields written when a conversion finishes
// successfully.
type ConversionUpdate struct {
	ProcessedFilename string
	ExcelPath         string
	TSVFilename       string
	TSVPath           string
	CSVTotal          decimal.Decimal
	TSVTotal          decimal.Decimal
	GapAmount         decimal.Decimal
	PerfectMatch      bool
	TotalRows         int
	IncludedRows      int
	BillingMonth      *int
	BillingYear       *int
	BillingPeriod     *string
}

// SiteBillingRecord is a per-site line item belonging to a completed upload.
type SiteBillingRecord struct {
	FileUploadID       uuid.UUID
	SiteName           string
	SiteID             string
	MeterNumber        string
	ContractNumber     string
	TariffType         string
	PeriodStart        string
	PeriodEnd          string
	PeakConsumption    decimal.Decimal
	OffpeakConsumption decimal.Decimal
	TotalConsumption   decimal.Decimal
	TotalCost          decimal.Decimal
	TotalCostVAT       decimal.Decimal
	DocumentNumber     int64
}

// UploadRepository persists upload records.
type UploadRepository interface {
	CreateUpload(ctx context.Context, u *Upload) error
	GetUpload(ctx context.Context, userID, id uuid.UUID) (*Upload, error)
	ListUploads(ctx context.Context, userID uuid.UUID) ([]*Upload, error)

	// FindCompletedByPeriod returns the completed record occupying the
	// billing period for this user, or nil when the period is free.
	FindCompletedByPeriod(ctx context.Context, userID uuid.UUID, period string) (*Upload, error)

	// BeginProcessing claims a record for processing. It fails with
	// ErrNotProcessable when the record is already processing.
	BeginProcessing(ctx context.Context, id uuid.UUID) error

	// CompleteUpload applies conversion results and moves the record to
	// completed exactly once; ErrCompletedPeriodExists is returned when
	// the completed-period constraint rejects the transition.
	CompleteUpload(ctx context.Context, id uuid.UUID, upd *ConversionUpdate) error

	// FailUpload moves the record to error with diagnostic detail.
	FailUpload(ctx context.Context, id uuid.UUID, detail string) error

	DeleteUpload(ctx context.Context, userID, id uuid.UUID) error

	InsertSiteRecords(ctx context.Context, records []SiteBillingRecord) error

	// ListReferencedArtifacts returns every artifact path any record
	// still points at, across all users. Used by the orphan sweep.
	ListReferencedArtifacts(ctx context.Context) (map[string]struct{}, error)
}
