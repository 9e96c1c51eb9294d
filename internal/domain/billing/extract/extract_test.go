package extract

import (
	"testing"
	"time"
)

const fallbackMuni = "עיריית ראשון לציון"

func TestFromCSV_DayFirstDates(t *testing.T) {
	csv := "" +
		"Account,From,To,Customer Name\n" +
		"12345,01/03/2025,31/03/2025,\"עיריית חולון\"\n"

	info := FromCSV([]byte(csv), fallbackMuni)
	if info == nil {
		t.Fatal("expected extraction to succeed")
	}
	if info.BillingMonth != 3 || info.BillingYear != 2025 {
		t.Errorf("got month=%d year=%d, want 3/2025", info.BillingMonth, info.BillingYear)
	}
	if info.BillingPeriod != "2025-03" {
		t.Errorf("billing period = %q, want 2025-03", info.BillingPeriod)
	}
	if info.MunicipalityName != "עיריית חולון" {
		t.Errorf("municipality = %q, want עיריית חולון", info.MunicipalityName)
	}
}

func TestFromCSV_ByteOrderMark(t *testing.T) {
	csv := "\uFEFFfrom,to\n05/01/2024,31/01/2024\n"

	info := FromCSV([]byte(csv), fallbackMuni)
	if info == nil {
		t.Fatal("expected extraction to succeed despite BOM")
	}
	if info.BillingMonth != 1 || info.BillingYear != 2024 {
		t.Errorf("got month=%d year=%d, want 1/2024", info.BillingMonth, info.BillingYear)
	}
}

func TestFromCSV_FallsBackToToColumn(t *testing.T) {
	// The from cell is empty; the to cell still carries the period.
	csv := "from,to\n,28/02/2025\n"

	info := FromCSV([]byte(csv), fallbackMuni)
	if info == nil {
		t.Fatal("expected extraction to succeed")
	}
	if info.BillingMonth != 2 || info.BillingYear != 2025 {
		t.Errorf("got month=%d year=%d, want 2/2025", info.BillingMonth, info.BillingYear)
	}
}

func TestFromCSV_FallbackMunicipality(t *testing.T) {
	csv := "from,to\n01/06/2025,30/06/2025\n"

	info := FromCSV([]byte(csv), fallbackMuni)
	if info == nil {
		t.Fatal("expected extraction to succeed")
	}
	if info.MunicipalityName != fallbackMuni {
		t.Errorf("municipality = %q, want fallback %q", info.MunicipalityName, fallbackMuni)
	}
}

func TestFromCSV_Unextractable(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"header only", "from,to\n"},
		{"no date headers", "a,b\n1,2\n"},
		{"no parseable date", "from,to\nnot-a-date,also-not\n"},
		{"month out of range", "from,to\n01/13/2025,31/13/2025\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if info := FromCSV([]byte(tt.csv), fallbackMuni); info != nil {
				t.Errorf("expected nil, got %+v", info)
			}
		})
	}
}

func TestFromFilename_NumericPattern(t *testing.T) {
	info := FromFilename("invoice_4.25_final.csv", fallbackMuni)
	if info.BillingMonth != 4 || info.BillingYear != 2025 {
		t.Errorf("got month=%d year=%d, want 4/2025", info.BillingMonth, info.BillingYear)
	}
	if info.BillingPeriod != "2025-04" {
		t.Errorf("billing period = %q, want 2025-04", info.BillingPeriod)
	}
}

func TestFromFilename_DottedFullDate(t *testing.T) {
	info := FromFilename("חשבונית 25.12.2024.csv", fallbackMuni)
	if info == nil {
		t.Fatal("FromFilename must never return nil")
	}
	if info.HasPeriod() {
		t.Errorf("expected no period from a dotted full date, got month=%d year=%d period=%q",
			info.BillingMonth, info.BillingYear, info.BillingPeriod)
	}
}

func TestFromFilename_HebrewMonth(t *testing.T) {
	info := FromFilename("חשבונית מרץ 2024.csv", fallbackMuni)
	if info.BillingMonth != 3 || info.BillingYear != 2024 {
		t.Errorf("got month=%d year=%d, want 3/2024", info.BillingMonth, info.BillingYear)
	}
}

func TestFromFilename_HebrewMonthDefaultsToCurrentYear(t *testing.T) {
	info := FromFilename("חשבון דצמבר.csv", fallbackMuni)
	if info.BillingMonth != 12 {
		t.Errorf("month = %d, want 12", info.BillingMonth)
	}
	if want := time.Now().Year(); info.BillingYear != want {
		t.Errorf("year = %d, want current year %d", info.BillingYear, want)
	}
}

func TestFromFilename_Municipality(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"עיריית תל אביב 3.25.csv", "עיריית תל אביב"},
		{"מועצה אזורית חוף השרון 4.25.csv", "מועצה אזורית חוף השרון"},
		{"plain_invoice.csv", fallbackMuni},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			info := FromFilename(tt.filename, fallbackMuni)
			if info.MunicipalityName != tt.want {
				t.Errorf("municipality = %q, want %q", info.MunicipalityName, tt.want)
			}
		})
	}
}

func TestFromFilename_NeverNil(t *testing.T) {
	info := FromFilename("nothing-here.csv", fallbackMuni)
	if info == nil {
		t.Fatal("FromFilename must never return nil")
	}
	if info.HasPeriod() {
		t.Errorf("expected no period, got %q", info.BillingPeriod)
	}
}
