package analytics

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/RonTitans/BillFlow/internal/domain/billing/extract"
	"github.com/RonTitans/BillFlow/pkg/money"
)

const reportSheet = "צריכה שנתית"

// WriteExcelReport renders the yearly consumption report as an xlsx
// workbook. Column headers and month labels are Hebrew, matching the
// invoices the data came from.
func WriteExcelReport(report *YearlyReport, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(reportSheet)
	if err != nil {
		return fmt.Errorf("create report sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"חודש", "מספר אתרים",
		"צריכת פסגה (קוט\"ש)", "צריכת שפל (קוט\"ש)", "סה\"כ צריכה (קוט\"ש)",
		"עלות", "עלות כולל מע\"מ",
	}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := 2
	for _, m := range report.Months {
		values := []any{
			fmt.Sprintf("%s %d", extract.HebrewMonth(m.Month), report.Year),
			m.SiteCount,
			m.PeakConsumption.InexactFloat64(),
			m.OffpeakConsumption.InexactFloat64(),
			m.TotalConsumption.InexactFloat64(),
			money.DisplayDecimal(m.TotalCost),
			money.DisplayDecimal(m.TotalCostVAT),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(reportSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
		row++
	}

	totals := []any{
		"סה\"כ", "",
		report.PeakConsumption.InexactFloat64(),
		report.OffpeakConsumption.InexactFloat64(),
		report.TotalConsumption.InexactFloat64(),
		money.DisplayDecimal(report.TotalCost),
		money.DisplayDecimal(report.TotalCostVAT),
	}
	for col, v := range totals {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(reportSheet, cell, v); err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
