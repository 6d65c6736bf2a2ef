package importer

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// twoDigitYearPivot splits two-digit years: values below it resolve to the
// 2000s, values at or above it to the 1900s.
const twoDigitYearPivot = 70

// coordPlaces is the decimal precision kept for latitude and longitude.
const coordPlaces = 5

// CleanCell normalises a raw spreadsheet cell: trims surrounding whitespace
// and collapses internal runs of whitespace to single spaces. Sentinel
// placeholders for absent data become the empty string.
func CleanCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	switch strings.ToLower(s) {
	case "n/a", "na", "nan", "none", "-", "--":
		return ""
	}
	return s
}

// CleanNumericText normalises identifiers that spreadsheets render as
// numbers. A float-valued cell such as "5.0" becomes "5", so that tank "5"
// and tank "5.0" name the same container.
func CleanNumericText(s string) string {
	s = CleanCell(s)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// RoundCoord parses a coordinate cell and rounds it to the given number of
// decimal places. An empty cell returns (nil, nil).
func RoundCoord(s string, places int) (*float64, error) {
	s = CleanCell(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &ParseError{Input: s, Msg: "not a coordinate"}
	}
	shift := math.Pow10(places)
	f = math.Round(f*shift) / shift
	return &f, nil
}

// SplitYearColl splits a combined year-collection token such as "2019F",
// "19F" or "2019-F" into a four-digit year and the collection label.
// Two-digit years are widened around the configured pivot.
func SplitYearColl(s string) (int, string, error) {
	s = CleanCell(s)
	if s == "" {
		return 0, "", &ParseError{Input: s, Msg: "empty year-collection"}
	}
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	if i == 0 {
		return 0, "", &ParseError{Input: s, Msg: "no leading year digits"}
	}
	year, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", &ParseError{Input: s, Msg: "bad year digits"}
	}
	switch {
	case i == 2:
		if year < twoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
	case i == 4:
	default:
		return 0, "", &ParseError{Input: s, Msg: "year must have two or four digits"}
	}
	label := strings.TrimLeft(s[i:], " -_/")
	if label == "" {
		return 0, "", &ParseError{Input: s, Msg: "no collection label after year"}
	}
	return year, label, nil
}

// SplitValueUnit splits a measurement cell such as "12.5 C" or "300V" into
// its numeric value and trailing unit text. The unit may be empty.
func SplitValueUnit(s string) (float64, string, error) {
	s = CleanCell(s)
	if s == "" {
		return 0, "", &ParseError{Input: s, Msg: "empty measurement"}
	}
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	seenDot := false
	for i < len(s) {
		c := s[i]
		if c == '.' && !seenDot {
			seenDot = true
			i++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		i++
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
	if err != nil {
		return 0, "", &ParseError{Input: s, Msg: "no numeric value"}
	}
	return value, strings.TrimSpace(s[i:]), nil
}

var monthNames = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthNames[name] = m
		monthNames[name[:3]] = m
	}
}

// RowDate assembles a UTC timestamp from the year, month, day and optional
// clock cells of a row. Months may be numeric or named; the clock accepts
// "15:04" and "15:04:05". Impossible calendar dates are rejected rather than
// silently normalised.
func RowDate(yearCell, monthCell, dayCell, clockCell string) (time.Time, error) {
	yearCell = CleanNumericText(yearCell)
	year, err := strconv.Atoi(yearCell)
	if err != nil {
		return time.Time{}, &ParseError{Input: yearCell, Msg: "bad year"}
	}
	if year < 100 {
		if year < twoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
	}

	month, err := parseMonth(monthCell)
	if err != nil {
		return time.Time{}, err
	}

	dayCell = CleanNumericText(dayCell)
	day, err := strconv.Atoi(dayCell)
	if err != nil {
		return time.Time{}, &ParseError{Input: dayCell, Msg: "bad day"}
	}

	hour, minute, second, err := parseClock(clockCell)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(year, month, day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, &ParseError{
			Input: yearCell + "-" + monthCell + "-" + dayCell,
			Msg:   "impossible calendar date",
		}
	}
	return t, nil
}

func parseMonth(cell string) (time.Month, error) {
	cell = CleanNumericText(cell)
	if cell == "" {
		return 0, &ParseError{Input: cell, Msg: "empty month"}
	}
	if n, err := strconv.Atoi(cell); err == nil {
		if n < 1 || n > 12 {
			return 0, &ParseError{Input: cell, Msg: "month out of range"}
		}
		return time.Month(n), nil
	}
	if m, ok := monthNames[strings.ToLower(cell)]; ok {
		return m, nil
	}
	return 0, &ParseError{Input: cell, Msg: "unknown month name"}
}

func parseClock(cell string) (int, int, int, error) {
	cell = CleanCell(cell)
	if cell == "" {
		return 0, 0, 0, nil
	}
	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, cell); err == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, &ParseError{Input: cell, Msg: "bad clock time"}
}
