package reviews

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/school-research-cli/internal/model"
)

var genitiveMonths = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

// ParseRussianDate converts "26 ноября 2015" or "11 июня 2025, отредактирован"
// to "2015-11-26". It returns "" when the input is not a valid date.
func ParseRussianDate(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ", отредактирован", ""))
	parts := strings.Fields(s)
	if len(parts) < 3 {
		return ""
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return ""
	}
	month, ok := genitiveMonths[strings.ToLower(parts[1])]
	if !ok {
		return ""
	}
	year, err := strconv.Atoi(strings.TrimSuffix(parts[2], ","))
	if err != nil {
		return ""
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// NormalizeDates rewrites Russian-format dates to YYYY-MM-DD in place.
// Dates already in ISO form are kept; anything unparseable becomes "".
// It returns the number of dates changed.
func NormalizeDates(reviews []model.Review) int {
	changed := 0
	for i := range reviews {
		d := strings.TrimSpace(reviews[i].Date)
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err == nil {
			continue
		}
		reviews[i].Date = ParseRussianDate(d)
		changed++
	}
	return changed
}
