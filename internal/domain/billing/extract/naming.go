package extract

import (
	"fmt"
	"strconv"
)

// Hebrew month names used in standardized display names.
var hebrewMonths = map[int]string{
	1:  "ינואר",
	2:  "פברואר",
	3:  "מרץ",
	4:  "אפריל",
	5:  "מאי",
	6:  "יוני",
	7:  "יולי",
	8:  "אוגוסט",
	9:  "ספטמבר",
	10: "אוקטובר",
	11: "נובמבר",
	12: "דצמבר",
}

var hebrewMonthNumbers = func() map[string]int {
	m := make(map[string]int, len(hebrewMonths))
	for num, name := range hebrewMonths {
		m[name] = num
	}
	return m
}()

// HebrewMonth returns the display name for a month, failing open to a
// generic "חודש N" placeholder outside 1-12.
func HebrewMonth(month int) string {
	if name, ok := hebrewMonths[month]; ok {
		return name
	}
	return fmt.Sprintf("חודש %d", month)
}

// StandardizedName deterministically composes the canonical display name
// "{municipality}-{hebrewMonth}-{YY}". When any input is missing it
// returns the original uploaded filename unchanged; callers must not
// assume the name is always synthesized.
func StandardizedName(municipality string, month, year int, originalFilename string) string {
	if municipality == "" || month == 0 || year == 0 {
		return originalFilename
	}
	shortYear := strconv.Itoa(year)
	if len(shortYear) > 2 {
		shortYear = shortYear[len(shortYear)-2:]
	}
	return fmt.Sprintf("%s-%s-%s", municipality, HebrewMonth(month), shortYear)
}
