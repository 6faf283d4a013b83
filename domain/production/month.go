package production

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthYear is the sort key of a production record. On the wire it is the
// six character string MMYYYY, e.g. "112024" for November 2024.
type MonthYear struct {
	Month time.Month
	Year  int
}

// NewMonthYear builds a MonthYear and checks the month range.
func NewMonthYear(month time.Month, year int) (MonthYear, error) {
	if month < time.January || month > time.December {
		return MonthYear{}, fmt.Errorf("month must be between 01 and 12, got %d", month)
	}
	if year <= 0 || year > 9999 {
		return MonthYear{}, fmt.Errorf("year must be between 1 and 9999, got %d", year)
	}
	return MonthYear{Month: month, Year: year}, nil
}

// ParseMonthYear parses MMYYYY or MMYY. Two digit years are taken as 20YY.
func ParseMonthYear(s string) (MonthYear, error) {
	s = strings.TrimSpace(s)
	if len(s) != 6 && len(s) != 4 {
		return MonthYear{}, fmt.Errorf("month key %q must be MMYYYY or MMYY", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return MonthYear{}, fmt.Errorf("month key %q must contain only digits", s)
		}
	}

	month, _ := strconv.Atoi(s[:2])
	year, _ := strconv.Atoi(s[2:])
	if len(s) == 4 {
		year += 2000
	}

	my, err := NewMonthYear(time.Month(month), year)
	if err != nil {
		return MonthYear{}, fmt.Errorf("month key %q: %w", s, err)
	}
	return my, nil
}

// MustParseMonthYear is ParseMonthYear for literals known to be valid.
func MustParseMonthYear(s string) MonthYear {
	my, err := ParseMonthYear(s)
	if err != nil {
		panic(err)
	}
	return my
}

// String returns the canonical MMYYYY form used as the sort key.
func (m MonthYear) String() string {
	return fmt.Sprintf("%02d%04d", int(m.Month), m.Year)
}

// Label returns the human readable form, e.g. "November 2024".
func (m MonthYear) Label() string {
	return fmt.Sprintf("%s %d", m.Month.String(), m.Year)
}

// ParseLabel reverses Label.
func ParseLabel(label string) (MonthYear, error) {
	t, err := time.Parse("January 2006", strings.TrimSpace(label))
	if err != nil {
		return MonthYear{}, fmt.Errorf("invalid month label %q: %w", label, err)
	}
	return MonthYear{Month: t.Month(), Year: t.Year()}, nil
}

// IsZero reports whether no month has been set.
func (m MonthYear) IsZero() bool {
	return m.Month == 0 && m.Year == 0
}

// Before orders months chronologically. Sort keys do not sort this way as
// strings, so history is ordered with this instead.
func (m MonthYear) Before(other MonthYear) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}
