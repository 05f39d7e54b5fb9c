package eastmoney

import (
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// Record is one report row. Field order is the order in which the API
// sent the keys, so the first record of a page defines the column layout.
type Record struct {
	keys   []string
	values map[string]gjson.Result
}

// UnmarshalJSON decodes a JSON object while preserving key order. A JSON
// null decodes to an empty record.
func (r *Record) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return eris.New("eastmoney: invalid record json")
	}
	res := gjson.ParseBytes(b)
	if res.Type == gjson.Null {
		*r = Record{}
		return nil
	}
	if !res.IsObject() {
		return eris.Errorf("eastmoney: record is not an object: %s", truncate(res.Raw, 40))
	}

	rec := Record{values: make(map[string]gjson.Result)}
	res.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if _, dup := rec.values[name]; !dup {
			rec.keys = append(rec.keys, name)
		}
		rec.values[name] = value
		return true
	})
	*r = rec
	return nil
}

// Fields returns the record's field names in API order.
func (r Record) Fields() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// Key returns the value of field as a dedup key. Missing, null and empty
// values report false.
func (r Record) Key(field string) (string, bool) {
	v, ok := r.values[field]
	if !ok || v.Type == gjson.Null {
		return "", false
	}
	s := cell(v)
	return s, s != ""
}

// Cell renders a field for CSV output: strings verbatim, numbers as
// received, booleans as true/false, null or missing as empty, and nested
// values as their raw JSON.
func (r Record) Cell(field string) string {
	v, ok := r.values[field]
	if !ok {
		return ""
	}
	return cell(v)
}

// Row renders the given fields in order.
func (r Record) Row(fields []string) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = r.Cell(f)
	}
	return row
}

func cell(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return v.Raw
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
