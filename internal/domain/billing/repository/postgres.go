package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses; satisfied by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresUploadRepository is the pgx-backed UploadRepository.
type PostgresUploadRepository struct {
	db DB
}

// NewPostgresUploadRepository creates a new upload repository.
func NewPostgresUploadRepository(db DB) *PostgresUploadRepository {
	return &PostgresUploadRepository{db: db}
}

const uploadColumns = `
	id, user_id, original_filename, standardized_name, file_path, file_size,
	billing_month, billing_year, billing_period, municipality_name,
	processing_status, processing_errors,
	csv_total, tsv_total, gap_amount, perfect_match, total_rows, included_rows,
	processed_filename, excel_path, tsv_filename, tsv_path,
	upload_time, processed_time`

func scanUpload(row pgx.Row) (*Upload, error) {
	var u Upload
	err := row.Scan(
		&u.ID, &u.UserID, &u.OriginalFilename, &u.StandardizedName, &u.FilePath, &u.FileSize,
		&u.BillingMonth, &u.BillingYear, &u.BillingPeriod, &u.MunicipalityName,
		&u.Status, &u.ProcessingErrors,
		&u.CSVTotal, &u.TSVTotal, &u.GapAmount, &u.PerfectMatch, &u.TotalRows, &u.IncludedRows,
		&u.ProcessedFilename, &u.ExcelPath, &u.TSVFilename, &u.TSVPath,
		&u.UploadTime, &u.ProcessedTime,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUpload inserts a new pending record and fills in the generated
// id and upload time.
func (r *PostgresUploadRepository) CreateUpload(ctx context.Context, u *Upload) error {
	query := `
		INSERT INTO file_uploads (
			user_id, original_filename, standardized_name, file_path, file_size,
			billing_month, billing_year, billing_period, municipality_name,
			processing_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, upload_time
	`
	err := r.db.QueryRow(ctx, query,
		u.UserID, u.OriginalFilename, u.StandardizedName, u.FilePath, u.FileSize,
		u.BillingMonth, u.BillingYear, u.BillingPeriod, u.MunicipalityName,
		StatusPending,
	).Scan(&u.ID, &u.UploadTime)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	u.Status = StatusPending
	return nil
}

// GetUpload fetches a record scoped to its owning user.
func (r *PostgresUploadRepository) GetUpload(ctx context.Context, userID, id uuid.UUID) (*Upload, error) {
	query := `SELECT` + uploadColumns + ` FROM file_uploads WHERE id = $1 AND user_id = $2`
	u, err := scanUpload(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return u, nil
}

// ListUploads returns all records for a user, newest first.
func (r *PostgresUploadRepository) ListUploads(ctx context.Context, userID uuid.UUID) ([]*Upload, error) {
	query := `SELECT` + uploadColumns + ` FROM file_uploads WHERE user_id = $1 ORDER BY upload_time DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("list uploads: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// FindCompletedByPeriod returns the completed record holding the billing
// period for this user, or nil when the period is free. Pending,
// processing and error records never count.
func (r *PostgresUploadRepository) FindCompletedByPeriod(ctx context.Context, userID uuid.UUID, period string) (*Upload, error) {
	query := `SELECT` + uploadColumns + `
		FROM file_uploads
		WHERE billing_period = $1 AND user_id = $2 AND processing_status = $3`
	u, err := scanUpload(r.db.QueryRow(ctx, query, period, userID, StatusCompleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completed by period: %w", err)
	}
	return u, nil
}

// BeginProcessing claims the record. The status predicate rejects a
// record that is already processing, so two concurrent process requests
// cannot both spawn a conversion for the same file.
func (r *PostgresUploadRepository) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE file_uploads
		SET processing_status = $1, processing_errors = NULL
		WHERE id = $2 AND processing_status <> $1
	`
	tag, err := r.db.Exec(ctx, query, StatusProcessing, id)
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessable
	}
	return nil
}

// CompleteUpload writes conversion results and the terminal completed
// status. The processing predicate makes the transition single-shot; the
// completed-period partial unique index closes the duplicate race at the
// database level.
func (r *PostgresUploadRepository) CompleteUpload(ctx context.Context, id uuid.UUID, upd *ConversionUpdate) error {
	query := `
		UPDATE file_uploads SET
			processing_status = $1,
			processed_filename = $2,
			excel_path = $3,
			tsv_filename = $4,
			tsv_path = $5,
			csv_total = $6,
			tsv_total = $7,
			gap_amount = $8,
			perfect_match = $9,
			total_rows = $10,
			included_rows = $11,
			billing_month = COALESCE($12, billing_month),
			billing_year = COALESCE($13, billing_year),
			billing_period = COALESCE($14, billing_period),
			processed_time = CURRENT_TIMESTAMP
		WHERE id = $15 AND processing_status = $16
	`
	tag, err := r.db.Exec(ctx, query,
		StatusCompleted,
		upd.ProcessedFilename, upd.ExcelPath, upd.TSVFilename, upd.TSVPath,
		upd.CSVTotal, upd.TSVTotal, upd.GapAmount, upd.PerfectMatch,
		upd.TotalRows, upd.IncludedRows,
		upd.BillingMonth, upd.BillingYear, upd.BillingPeriod,
		id, StatusProcessing,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCompletedPeriodExists
		}
		return fmt.Errorf("complete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailUpload records the terminal error status with diagnostic detail.
func (r *PostgresUploadRepository) FailUpload(ctx context.Context, id uuid.UUID, detail string) error {
	query := `
		UPDATE file_uploads
		SET processing_status = $1, processing_errors = $2, processed_time = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	if _, err := r.db.Exec(ctx, query, StatusError, detail, id); err != nil {
		return fmt.Errorf("fail upload: %w", err)
	}
	return nil
}

// DeleteUpload removes a record; site records cascade.
func (r *PostgresUploadRepository) DeleteUpload(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM file_uploads WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSiteRecords stores the per-site line items of a completed upload.
func (r *PostgresUploadRepository) InsertSiteRecords(ctx context.Context, records []SiteBillingRecord) error {
	query := `
		INSERT INTO site_billing_records (
			file_upload_id, site_name, site_id, meter_number, contract_number,
			tariff_type, period_start, period_end,
			peak_consumption, offpeak_consumption, total_consumption,
			total_cost, total_cost_vat, document_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for _, rec := range records {
		_, err := r.db.Exec(ctx, query,
			rec.FileUploadID, rec.SiteName, rec.SiteID, rec.MeterNumber, rec.ContractNumber,
			rec.TariffType, nullable(rec.PeriodStart), nullable(rec.PeriodEnd),
			rec.PeakConsumption, rec.OffpeakConsumption, rec.TotalConsumption,
			rec.TotalCost, rec.TotalCostVAT, rec.DocumentNumber,
		)
		if err != nil {
			return fmt.Errorf("insert site record %q: %w", rec.SiteName, err)
		}
	}
	return nil
}

// ListReferencedArtifacts collects every file_path, excel_path and
// tsv_path still referenced by a record.
func (r *PostgresUploadRepository) ListReferencedArtifacts(ctx context.Context) (map[string]struct{}, error) {
	query := `
		SELECT file_path, excel_path, tsv_path FROM file_uploads
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list referenced artifacts: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var filePath string
		var excelPath, tsvPath *string
		if err := rows.Scan(&filePath, &excelPath, &tsvPath); err != nil {
			return nil, fmt.Errorf("list referenced artifacts: %w", err)
		}
		paths[filePath] = struct{}{}
		if excelPath != nil {
			paths[*excelPath] = struct{}{}
		}
		if tsvPath != nil {
			paths[*tsvPath] = struct{}{}
		}
	}
	return paths, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
