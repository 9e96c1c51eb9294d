package analytics

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteExcelReport(t *testing.T) {
	report := &YearlyReport{
		Year: 2025,
		Months: []MonthlyConsumption{
			{
				Month:            3,
				SiteCount:        14,
				TotalConsumption: decimal.NewFromInt(4200),
				TotalCost:        decimal.NewFromFloat(18350.40),
				TotalCostVAT:     decimal.NewFromFloat(21469.97),
			},
		},
		TotalConsumption: decimal.NewFromInt(4200),
		TotalCost:        decimal.NewFromFloat(18350.40),
		TotalCostVAT:     decimal.NewFromFloat(21469.97),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteExcelReport(report, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(reportSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "חודש", header)

	monthLabel, err := f.GetCellValue(reportSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "מרץ 2025", monthLabel)

	totalLabel, err := f.GetCellValue(reportSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "סה\"כ", totalLabel)
}

func TestWriteExcelReport_EmptyYear(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcelReport(&YearlyReport{Year: 2024}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	// Only the header and totals rows.
	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
