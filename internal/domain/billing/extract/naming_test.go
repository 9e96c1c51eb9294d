package extract

import "testing"

func TestStandardizedName(t *testing.T) {
	tests := []struct {
		name         string
		municipality string
		month, year  int
		original     string
		want         string
	}{
		{"full inputs", "עיריית חולון", 3, 2025, "orig.csv", "עיריית חולון-מרץ-25"},
		{"december", "עיריית ראשון לציון", 12, 2024, "orig.csv", "עיריית ראשון לציון-דצמבר-24"},
		{"missing municipality", "", 3, 2025, "orig.csv", "orig.csv"},
		{"missing month", "עיריית חולון", 0, 2025, "orig.csv", "orig.csv"},
		{"missing year", "עיריית חולון", 3, 0, "orig.csv", "orig.csv"},
		{"out of range month fails open", "עיריית חולון", 13, 2025, "orig.csv", "עיריית חולון-חודש 13-25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StandardizedName(tt.municipality, tt.month, tt.year, tt.original)
			if got != tt.want {
				t.Errorf("StandardizedName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStandardizedName_Idempotent(t *testing.T) {
	first := StandardizedName("עיריית חולון", 7, 2025, "a.csv")
	second := StandardizedName("עיריית חולון", 7, 2025, "a.csv")
	if first != second {
		t.Errorf("same inputs produced %q then %q", first, second)
	}
}

func TestPeriod(t *testing.T) {
	if got := Period(3, 2025); got != "2025-03" {
		t.Errorf("Period(3, 2025) = %q, want 2025-03", got)
	}
	if got := Period(11, 2024); got != "2024-11" {
		t.Errorf("Period(11, 2024) = %q, want 2024-11", got)
	}
}
