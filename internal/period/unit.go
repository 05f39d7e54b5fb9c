package period

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Unit is one report: a year and a period. Each unit maps to exactly one
// output file.
type Unit struct {
	Year   int
	Period Period
}

// NewUnit builds a Unit from a year and a period token.
func NewUnit(year int, token string) (Unit, error) {
	p, err := Parse(token)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Year: year, Period: p}, nil
}

// ReportDate returns the API date filter value, e.g. "2024-12-31".
func (u Unit) ReportDate() string {
	return u.Period.ReportDate(u.Year)
}

// ID returns the stable identity used in summaries, e.g. "2024_Q4".
func (u Unit) ID() string {
	return fmt.Sprintf("%d_%s", u.Year, u.Period)
}

// String returns the localized display name, e.g. "2024年年报".
func (u Unit) String() string {
	return fmt.Sprintf("%d年%s", u.Year, u.Period.Label())
}

// ParseID is the inverse of Unit.ID.
func ParseID(id string) (Unit, error) {
	yearStr, code, ok := strings.Cut(id, "_")
	if !ok {
		return Unit{}, eris.Errorf("period: malformed unit id %q", id)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Unit{}, eris.Wrapf(err, "period: malformed unit year in %q", id)
	}
	return NewUnit(year, code)
}

// Units expands a year range and period list into units, year-major.
func Units(startYear, endYear int, periods []Period) []Unit {
	var out []Unit
	for y := startYear; y <= endYear; y++ {
		for _, p := range periods {
			out = append(out, Unit{Year: y, Period: p})
		}
	}
	return out
}
