package intent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// All user dates are UTC calendar days: a single day covers
// [day 00:00, next day 00:00) and inclusive ranges cover
// [start 00:00, (end + 1 day) 00:00). Extraction runs against the folded
// raw text, not the normalized one, because normalization strips the dots
// and colons that numeric dates and clock times depend on.

var genitiveMonthNames = []string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// monthForms maps every accepted surface form (nominative, genitive,
// prepositional) to its month, for the month-only fallback.
var monthForms = map[string]time.Month{}

var genitiveMonths = map[string]time.Month{}

func init() {
	for i, name := range genitiveMonthNames {
		genitiveMonths[name] = time.Month(i + 1)
	}
	for form, month := range map[string]time.Month{
		"январь": 1, "январе": 1, "января": 1,
		"февраль": 2, "феврале": 2, "февраля": 2,
		"март": 3, "марте": 3, "марта": 3,
		"апрель": 4, "апреле": 4, "апреля": 4,
		"май": 5, "мае": 5, "мая": 5,
		"июнь": 6, "июне": 6, "июня": 6,
		"июль": 7, "июле": 7, "июля": 7,
		"август": 8, "августе": 8, "августа": 8,
		"сентябрь": 9, "сентябре": 9, "сентября": 9,
		"октябрь": 10, "октябре": 10, "октября": 10,
		"ноябрь": 11, "ноябре": 11, "ноября": 11,
		"декабрь": 12, "декабре": 12, "декабря": 12,
	} {
		monthForms[form] = month
	}
}

var (
	genitiveMonthGroup = strings.Join(genitiveMonthNames, "|")

	// "с 1 по 5 ноября 2025"
	sameMonthRangePattern = regexp.MustCompile(
		`(?:^|\s)с\s+(\d{1,2})\s+по\s+(\d{1,2})\s+(` + genitiveMonthGroup + `)\s+(\d{4})\b`,
	)

	// "с 28 ноября по 2 декабря 2025"
	crossMonthRangePattern = regexp.MustCompile(
		`(?:^|\s)с\s+(\d{1,2})\s+(` + genitiveMonthGroup + `)\s+по\s+(\d{1,2})\s+(` +
			genitiveMonthGroup + `)\s+(\d{4})\b`,
	)

	// "28 ноября 2025"
	dayMonthYearPattern = regexp.MustCompile(
		`(?:^|\D)(\d{1,2})\s+(` + genitiveMonthGroup + `)\s+(\d{4})\b`,
	)

	// "28.11.2025"
	numericDatePattern = regexp.MustCompile(`(?:^|\D)(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)

	// "2025-11-28"
	isoDatePattern = regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})\b`)

	// "ноябре 2025" — built from all month forms, longest first
	monthOnlyPattern *regexp.Regexp

	// "с 10:00 до 15:00", minutes optional
	timeWindowPattern = regexp.MustCompile(
		`(?:^|\s)с\s+(\d{1,2})(?::(\d{2}))?\s+до\s+(\d{1,2})(?::(\d{2}))?(?:\s|$)`,
	)
)

func init() {
	forms := make([]string, 0, len(monthForms))
	for form := range monthForms {
		forms = append(forms, form)
	}
	monthOnlyPattern = regexp.MustCompile(
		`(?:^|\s)(` + buildAlternation(forms) + `)\s+(\d{4})\b`,
	)
}

func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

func mustAtoi(digits string) int {
	value, _ := strconv.Atoi(digits)
	return value
}

// parseDateRange extracts a single day or an inclusive day range from the
// folded raw text. The boolean reports whether any date was found.
func parseDateRange(raw string) (start, end time.Time, found bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, time.Time{}, false
	}

	if match := sameMonthRangePattern.FindStringSubmatch(value); match != nil {
		month := genitiveMonths[match[3]]
		year := mustAtoi(match[4])
		first, okFirst := makeDate(year, month, mustAtoi(match[1]))
		second, okSecond := makeDate(year, month, mustAtoi(match[2]))
		if okFirst && okSecond {
			return orderDates(first, second)
		}
	}

	if match := crossMonthRangePattern.FindStringSubmatch(value); match != nil {
		year := mustAtoi(match[5])
		first, okFirst := makeDate(year, genitiveMonths[match[2]], mustAtoi(match[1]))
		second, okSecond := makeDate(year, genitiveMonths[match[4]], mustAtoi(match[3]))
		if okFirst && okSecond {
			return orderDates(first, second)
		}
	}

	// Generic pass: every date carrying an explicit 4-digit year, in text
	// order. Two or more form a range as written; exactly one is a single
	// day.
	if dates := collectYearfulDates(value); len(dates) >= 2 {
		return dates[0], dates[1], true
	} else if len(dates) == 1 {
		return dates[0], dates[0], true
	}

	// Whole-fragment parse for bare numeric dates.
	for _, layout := range []string{"2006-01-02", "2.1.2006"} {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, parsed, true
		}
	}

	if match := monthOnlyPattern.FindStringSubmatch(value); match != nil {
		month := monthForms[match[1]]
		year := mustAtoi(match[2])
		first, _ := makeDate(year, month, 1)
		// Day zero of the next month is the last day of this month.
		last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		return first, last, true
	}

	return time.Time{}, time.Time{}, false
}

func orderDates(first, second time.Time) (time.Time, time.Time, bool) {
	if first.After(second) {
		return second, first, true
	}
	return first, second, true
}

type positionedDate struct {
	pos  int
	date time.Time
}

func collectYearfulDates(value string) []time.Time {
	var dates []positionedDate

	for _, match := range dayMonthYearPattern.FindAllStringSubmatchIndex(value, -1) {
		day := mustAtoi(value[match[2]:match[3]])
		month := genitiveMonths[value[match[4]:match[5]]]
		year := mustAtoi(value[match[6]:match[7]])
		if date, ok := makeDate(year, month, day); ok {
			dates = append(dates, positionedDate{pos: match[2], date: date})
		}
	}

	for _, match := range numericDatePattern.FindAllStringSubmatchIndex(value, -1) {
		day := mustAtoi(value[match[2]:match[3]])
		month := time.Month(mustAtoi(value[match[4]:match[5]]))
		year := mustAtoi(value[match[6]:match[7]])
		if month < time.January || month > time.December {
			continue
		}
		if date, ok := makeDate(year, month, day); ok {
			dates = append(dates, positionedDate{pos: match[2], date: date})
		}
	}

	for _, match := range isoDatePattern.FindAllStringSubmatchIndex(value, -1) {
		year := mustAtoi(value[match[2]:match[3]])
		month := time.Month(mustAtoi(value[match[4]:match[5]]))
		day := mustAtoi(value[match[6]:match[7]])
		if month < time.January || month > time.December {
			continue
		}
		if date, ok := makeDate(year, month, day); ok {
			dates = append(dates, positionedDate{pos: match[2], date: date})
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].pos < dates[j].pos })

	result := make([]time.Time, len(dates))
	for i, positioned := range dates {
		result[i] = positioned.date
	}
	return result
}

// parseTimeWindow extracts a clock-time window ("с 10:00 до 15:00") from the
// folded raw text. A window whose bounds are malformed or reversed is a
// parse failure, not a silent drop.
func parseTimeWindow(raw string) (*TimeWindow, error) {
	match := timeWindowPattern.FindStringSubmatch(raw)
	if match == nil {
		return nil, nil
	}

	start, err := clockOffset(match[1], match[2])
	if err != nil {
		return nil, err
	}
	end, err := clockOffset(match[3], match[4])
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("time window start %s is after end %s: %w", match[1], match[3], ErrInvalidTimeWindow)
	}
	return &TimeWindow{Start: start, End: end}, nil
}

func clockOffset(hourDigits, minuteDigits string) (time.Duration, error) {
	hour := mustAtoi(hourDigits)
	if hour > 23 {
		return 0, fmt.Errorf("hour %d out of range: %w", hour, ErrInvalidTimeWindow)
	}
	minute := 0
	if minuteDigits != "" {
		minute = mustAtoi(minuteDigits)
		if minute > 59 {
			return 0, fmt.Errorf("minute %d out of range: %w", minute, ErrInvalidTimeWindow)
		}
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}
