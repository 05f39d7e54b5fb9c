// Package store persists report records to append-only CSV files and reads
// them back for resume.
package store

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// KeySet is the set of record keys already persisted for one report.
type KeySet map[string]struct{}

// Has reports whether k is in the set.
func (s KeySet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k.
func (s KeySet) Add(k string) {
	s[k] = struct{}{}
}

// Len returns the number of keys.
func (s KeySet) Len() int {
	return len(s)
}

// Snapshot describes an output file as found on disk before a download.
type Snapshot struct {
	Path   string
	Exists bool     // file exists and is non-empty
	Header []string // first row, BOM stripped
	Rows   int      // data rows read
	Keys   KeySet
}

// Scan reads the CSV at path and collects the key column of every row. The
// key column is the first header cell matching one of keyColumns, so both a
// localized label and the raw field name can be given.
//
// A missing file yields an empty snapshot and no error. On a read or parse
// error the snapshot collected so far is returned together with the error.
func Scan(path string, keyColumns ...string) (*Snapshot, error) {
	snap := &Snapshot{Path: path, Keys: make(KeySet)}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snap, nil
		}
		return snap, eris.Wrapf(err, "store: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := newReader(f)

	header, err := r.Read()
	if err == io.EOF {
		return snap, nil
	}
	if err != nil {
		return snap, eris.Wrapf(err, "store: read header of %s", path)
	}
	snap.Exists = true
	snap.Header = header

	col := findColumn(header, keyColumns)
	if col < 0 {
		return snap, eris.Errorf("store: %s has no key column (looked for %v)", path, keyColumns)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return snap, nil
		}
		if err != nil {
			return snap, eris.Wrapf(err, "store: read row %d of %s", snap.Rows+2, path)
		}
		snap.Rows++
		if col < len(row) && row[col] != "" {
			snap.Keys.Add(row[col])
		}
	}
}

// CountRows returns the number of data rows (excluding the header) in a CSV.
func CountRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "store: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := newReader(f)
	n := -1
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return max(n, 0), eris.Wrapf(err, "store: count rows of %s", path)
		}
		n++
	}
	return max(n, 0), nil
}

// newReader strips a leading UTF-8 BOM and tolerates ragged rows.
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1
	return cr
}

func findColumn(header, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i
			}
		}
	}
	return -1
}
