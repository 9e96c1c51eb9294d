package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestDashboardStats(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	userID := uuid.New()
	last := time.Now()
	mock.ExpectQuery("SELECT").
		WithArgs(userID).
		WillReturnRows(mock.NewRows([]string{
			"count", "completed", "pending", "processing", "error",
			"perfect", "total", "gap", "last_upload",
		}).AddRow(
			10, 7, 1, 1, 1,
			5, decimal.NewFromFloat(15000.50), decimal.NewFromFloat(12.30), &last,
		))

	stats, err := repo.DashboardStats(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalFiles)
	assert.Equal(t, 7, stats.CompletedFiles)
	assert.Equal(t, 5, stats.PerfectMatches)
	assert.True(t, stats.TotalAmount.Equal(decimal.NewFromFloat(15000.50)))
	require.NotNil(t, stats.LastUploadTime)
}

func TestYearlyConsumption(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	userID := uuid.New()
	mock.ExpectQuery("SELECT").
		WithArgs(userID, 2025).
		WillReturnRows(mock.NewRows([]string{
			"month", "sites", "peak", "offpeak", "total", "cost", "cost_vat",
		}).
			AddRow(1, 12, decimal.NewFromInt(100), decimal.NewFromInt(200), decimal.NewFromInt(300),
				decimal.NewFromInt(1500), decimal.NewFromInt(1755)).
			AddRow(2, 12, decimal.NewFromInt(110), decimal.NewFromInt(210), decimal.NewFromInt(320),
				decimal.NewFromInt(1600), decimal.NewFromInt(1872)))

	months, err := repo.YearlyConsumption(context.Background(), userID, 2025)
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, 1, months[0].Month)
	assert.Equal(t, 12, months[0].SiteCount)
	assert.True(t, months[1].TotalCost.Equal(decimal.NewFromInt(1600)))
}

func TestConsumptionTotals(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	svc := NewService(repo, testLogger())

	userID := uuid.New()
	mock.ExpectQuery("SELECT").
		WithArgs(userID, 2025).
		WillReturnRows(mock.NewRows([]string{
			"month", "sites", "peak", "offpeak", "total", "cost", "cost_vat",
		}).
			AddRow(3, 10, decimal.NewFromInt(50), decimal.NewFromInt(50), decimal.NewFromInt(100),
				decimal.NewFromInt(500), decimal.NewFromInt(585)).
			AddRow(4, 10, decimal.NewFromInt(60), decimal.NewFromInt(40), decimal.NewFromInt(100),
				decimal.NewFromInt(520), decimal.NewFromInt(608)))

	report, err := svc.Consumption(context.Background(), userID, 2025)
	require.NoError(t, err)
	assert.True(t, report.TotalConsumption.Equal(decimal.NewFromInt(200)))
	assert.True(t, report.TotalCost.Equal(decimal.NewFromInt(1020)))
}

func TestConsumption_YearOutOfRange(t *testing.T) {
	svc := NewService(NewRepository(newMock(t)), testLogger())

	_, err := svc.Consumption(context.Background(), uuid.New(), 1899)
	assert.Error(t, err)
}
