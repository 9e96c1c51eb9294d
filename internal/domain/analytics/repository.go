// Package analytics aggregates upload records and per-site billing line
// items into dashboard statistics and yearly consumption reports.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgxpool.Pool the repository uses; satisfied by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DashboardStats summarize a user's upload history.
type DashboardStats struct {
	TotalFiles      int
	CompletedFiles  int
	PendingFiles    int
	ProcessingFiles int
	ErrorFiles      int
	PerfectMatches  int
	TotalAmount     decimal.Decimal
	TotalGap        decimal.Decimal
	LastUploadTime  *time.Time
}

// MonthlyConsumption is one month's aggregated site consumption.
type MonthlyConsumption struct {
	Month              int
	SiteCount          int
	PeakConsumption    decimal.Decimal
	OffpeakConsumption decimal.Decimal
	TotalConsumption   decimal.Decimal
	TotalCost          decimal.Decimal
	TotalCostVAT       decimal.Decimal
}

// Repository runs the aggregation queries.
type Repository struct {
	db DB
}

// NewRepository creates a new analytics repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// DashboardStats aggregates counts and totals across the user's records.
func (r *Repository) DashboardStats(ctx context.Context, userID uuid.UUID) (*DashboardStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE processing_status = 'completed'),
			COUNT(*) FILTER (WHERE processing_status = 'pending'),
			COUNT(*) FILTER (WHERE processing_status = 'processing'),
			COUNT(*) FILTER (WHERE processing_status = 'error'),
			COUNT(*) FILTER (WHERE perfect_match),
			COALESCE(SUM(csv_total) FILTER (WHERE processing_status = 'completed'), 0),
			COALESCE(SUM(gap_amount) FILTER (WHERE processing_status = 'completed'), 0),
			MAX(upload_time)
		FROM file_uploads
		WHERE user_id = $1
	`
	var stats DashboardStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&stats.TotalFiles, &stats.CompletedFiles, &stats.PendingFiles,
		&stats.ProcessingFiles, &stats.ErrorFiles, &stats.PerfectMatches,
		&stats.TotalAmount, &stats.TotalGap, &stats.LastUploadTime,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &stats, nil
}

// YearlyConsumption aggregates site line items per billing month of one
// year, in month order. Months without data are absent.
func (r *Repository) YearlyConsumption(ctx context.Context, userID uuid.UUID, year int) ([]MonthlyConsumption, error) {
	query := `
		SELECT
			f.billing_month,
			COUNT(DISTINCT s.site_name),
			COALESCE(SUM(s.peak_consumption), 0),
			COALESCE(SUM(s.offpeak_consumption), 0),
			COALESCE(SUM(s.total_consumption), 0),
			COALESCE(SUM(s.total_cost), 0),
			COALESCE(SUM(s.total_cost_vat), 0)
		FROM site_billing_records s
		JOIN file_uploads f ON f.id = s.file_upload_id
		WHERE f.user_id = $1
		  AND f.billing_year = $2
		  AND f.processing_status = 'completed'
		GROUP BY f.billing_month
		ORDER BY f.billing_month
	`
	rows, err := r.db.Query(ctx, query, userID, year)
	if err != nil {
		return nil, fmt.Errorf("yearly consumption: %w", err)
	}
	defer rows.Close()

	var months []MonthlyConsumption
	for rows.Next() {
		var m MonthlyConsumption
		err := rows.Scan(
			&m.Month, &m.SiteCount,
			&m.PeakConsumption, &m.OffpeakConsumption, &m.TotalConsumption,
			&m.TotalCost, &m.TotalCostVAT,
		)
		if err != nil {
			return nil, fmt.Errorf("yearly consumption: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}
