// Package extract recovers billing-period metadata (month, year, municipality)
// from uploaded invoice CSVs. Header-based extraction is the primary strategy;
// filename-based resolution is the fallback when the header yields nothing.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Info holds the billing metadata recovered for one uploaded invoice.
// Month and Year are zero when they could not be determined; Period is
// empty in that case. Callers must tolerate partial results.
type Info struct {
	BillingMonth     int
	BillingYear      int
	BillingPeriod    string
	MunicipalityName string
}

// HasPeriod reports whether both month and year were recovered.
func (i *Info) HasPeriod() bool {
	return i != nil && i.BillingMonth != 0 && i.BillingYear != 0
}

// Period composes the canonical "YYYY-MM" billing period key.
func Period(month, year int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Invoice export headers recognized in the first CSV line.
const (
	headerFrom     = "from"
	headerTo       = "to"
	headerCustomer = "customer name"
)

// Billing rows carry day-first dates (DD/MM/YYYY): the month is the
// middle group, never the first.
var dayFirstDate = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)

// FromCSV attempts to recover billing info from the header and first data
// row of a CSV file. It returns nil when the file carries no recognizable
// billing metadata; that is a first-class outcome, not an error, and the
// caller should fall back to filename resolution.
func FromCSV(data []byte, fallbackMunicipality string) *Info {
	content := strings.TrimPrefix(string(data), "\uFEFF")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, "\r"))
		}
	}
	if len(lines) < 2 {
		return nil
	}

	headers := strings.Split(lines[0], ",")
	fromIdx, toIdx, customerIdx := -1, -1, -1
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		switch h {
		case headerFrom:
			fromIdx = i
		case headerTo:
			toIdx = i
		case headerCustomer:
			customerIdx = i
		}
	}
	if fromIdx == -1 && toIdx == -1 {
		return nil
	}

	row := strings.Split(lines[1], ",")
	dateStr := cell(row, fromIdx)
	if dateStr == "" {
		dateStr = cell(row, toIdx)
	}

	m := dayFirstDate.FindStringSubmatch(dateStr)
	if m == nil {
		return nil
	}
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return nil
	}

	municipality := fallbackMunicipality
	if c := cell(row, customerIdx); c != "" {
		municipality = strings.TrimSpace(strings.ReplaceAll(c, `"`, ""))
	}

	return &Info{
		BillingMonth:     month,
		BillingYear:      year,
		BillingPeriod:    Period(month, year),
		MunicipalityName: municipality,
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
