package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "1.25" in a filename means January 2025.
	numericMonthYear = regexp.MustCompile(`(\d+)\.(\d{2})`)

	// Bare 4-digit year token, e.g. "2025".
	yearToken = regexp.MustCompile(`20\d{2}`)

	// Institutional name prefixes: "עיריית X" / "מועצה X" followed by
	// Hebrew script.
	municipalityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`עיריית\s+[\x{0590}-\x{05FF}\s]+`),
		regexp.MustCompile(`מועצה\s+[\x{0590}-\x{05FF}\s]+`),
	}

	// Trailing digits/dates after the municipality name.
	trailingDigits = regexp.MustCompile(`\s+\d.*$`)
)

// FromFilename recovers billing info from the uploaded filename when the
// CSV content yielded nothing. Two strategies run in order, first success
// wins: a numeric "M.YY" token, then a Hebrew month name combined with a
// 4-digit year token (current year when absent). Every branch has a
// default, so the result is never nil; month and year may still be zero.
func FromFilename(filename, fallbackMunicipality string) *Info {
	info := &Info{
		MunicipalityName: MunicipalityFromFilename(filename, fallbackMunicipality),
	}

	if m := numericMonthYear.FindStringSubmatch(filename); m != nil {
		month, _ := strconv.Atoi(m[1])
		// A dotted full date like "25.12.2024" also matches; only a
		// plausible month counts as the M.YY pattern.
		if month >= 1 && month <= 12 {
			year, _ := strconv.Atoi(m[2])
			info.BillingMonth = month
			info.BillingYear = 2000 + year
			info.BillingPeriod = Period(info.BillingMonth, info.BillingYear)
			return info
		}
	}

	for name, month := range hebrewMonthNumbers {
		if !strings.Contains(filename, name) {
			continue
		}
		info.BillingMonth = month
		if y := yearToken.FindString(filename); y != "" {
			info.BillingYear, _ = strconv.Atoi(y)
		} else {
			info.BillingYear = time.Now().Year()
		}
		info.BillingPeriod = Period(info.BillingMonth, info.BillingYear)
		return info
	}

	return info
}

// MunicipalityFromFilename scans a filename for a known institutional-name
// prefix and returns the cleaned match, or the configured fallback.
func MunicipalityFromFilename(filename, fallback string) string {
	for _, pattern := range municipalityPatterns {
		if m := pattern.FindString(filename); m != "" {
			return strings.TrimSpace(trailingDigits.ReplaceAllString(m, ""))
		}
	}
	return fallback
}
