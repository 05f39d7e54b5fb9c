// Package period maps user-supplied report period tokens onto the four
// canonical quarterly report periods.
package period

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Period is a quarterly report period.
type Period int

const (
	Q1 Period = iota + 1 // first-quarter report (03-31)
	Q2                   // half-year report (06-30)
	Q3                   // third-quarter report (09-30)
	Q4                   // annual report (12-31)
)

// ErrInvalidPeriod is returned when a token does not name a known period.
var ErrInvalidPeriod = eris.New("invalid period")

// Accepted describes the accepted input forms, for help text and errors.
const Accepted = "Q1/Q2/Q3/Q4, 1/2/3/4 or 一季报/半年报/三季报/年报"

type meta struct {
	code  string
	month string
	day   string
	label string
}

var periods = map[Period]meta{
	Q1: {code: "Q1", month: "03", day: "31", label: "一季报"},
	Q2: {code: "Q2", month: "06", day: "30", label: "半年报"},
	Q3: {code: "Q3", month: "09", day: "30", label: "三季报"},
	Q4: {code: "Q4", month: "12", day: "31", label: "年报"},
}

// aliases is keyed by the lower-cased token.
var aliases = map[string]Period{
	"q1": Q1, "1": Q1, "一季报": Q1, "1季报": Q1,
	"q2": Q2, "2": Q2, "半年报": Q2, "中报": Q2, "2季报": Q2,
	"q3": Q3, "3": Q3, "三季报": Q3, "3季报": Q3,
	"q4": Q4, "4": Q4, "年报": Q4, "四季报": Q4, "4季报": Q4,
}

// All returns every period in calendar order.
func All() []Period {
	return []Period{Q1, Q2, Q3, Q4}
}

// Parse converts a free-form token into a Period. Matching is
// case-insensitive and ignores surrounding whitespace.
func Parse(token string) (Period, error) {
	p, ok := aliases[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return 0, eris.Wrapf(ErrInvalidPeriod, "%q (accepted: %s)", token, Accepted)
	}
	return p, nil
}

// ParseList parses a comma-separated list of tokens. An empty list or the
// token "all" selects every period. Duplicates are dropped, order is kept.
func ParseList(s string) ([]Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return All(), nil
	}

	var out []Period
	seen := make(map[Period]bool)
	for _, tok := range strings.Split(s, ",") {
		p, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// Valid reports whether p is one of Q1..Q4.
func (p Period) Valid() bool {
	_, ok := periods[p]
	return ok
}

// String returns the canonical code, e.g. "Q3".
func (p Period) String() string {
	if m, ok := periods[p]; ok {
		return m.code
	}
	return "unknown"
}

// Label returns the localized display name, e.g. "三季报".
func (p Period) Label() string {
	return periods[p].label
}

// ReportDate returns the report date for the period in the given year,
// formatted as YYYY-MM-DD.
func (p Period) ReportDate(year int) string {
	m := periods[p]
	return fmt.Sprintf("%d-%s-%s", year, m.month, m.day)
}
