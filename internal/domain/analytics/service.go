package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// YearlyReport is the consumption report for one calendar year.
type YearlyReport struct {
	Year   int
	Months []MonthlyConsumption

	// Totals across all months of the year.
	PeakConsumption    decimal.Decimal
	OffpeakConsumption decimal.Decimal
	TotalConsumption   decimal.Decimal
	TotalCost          decimal.Decimal
	TotalCostVAT       decimal.Decimal
}

// Service computes dashboard statistics and consumption reports.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

// NewService creates a new analytics service.
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Stats returns the user's dashboard statistics.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*DashboardStats, error) {
	return s.repo.DashboardStats(ctx, userID)
}

// Consumption builds the yearly consumption report.
func (s *Service) Consumption(ctx context.Context, userID uuid.UUID, year int) (*YearlyReport, error) {
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("year %d out of range", year)
	}

	months, err := s.repo.YearlyConsumption(ctx, userID, year)
	if err != nil {
		return nil, err
	}

	report := &YearlyReport{Year: year, Months: months}
	for _, m := range months {
		report.PeakConsumption = report.PeakConsumption.Add(m.PeakConsumption)
		report.OffpeakConsumption = report.OffpeakConsumption.Add(m.OffpeakConsumption)
		report.TotalConsumption = report.TotalConsumption.Add(m.TotalConsumption)
		report.TotalCost = report.TotalCost.Add(m.TotalCost)
		report.TotalCostVAT = report.TotalCostVAT.Add(m.TotalCostVAT)
	}
	return report, nil
}
