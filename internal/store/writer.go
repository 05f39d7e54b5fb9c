package store

import (
	"encoding/csv"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

// Writer appends records to one report's CSV file. Rows are only ever
// appended; existing content is never rewritten.
type Writer struct {
	path     string
	keyField string
	fields   []string
	f        *os.File
	csv      *csv.Writer
	created  bool
}

// OpenWriter opens path for appending. When the file is missing or empty the
// UTF-8 BOM and header row are written and synced before returning.
func OpenWriter(path, keyField string, fields, header []string) (*Writer, error) {
	if len(fields) == 0 {
		return nil, eris.New("store: no fields to write")
	}
	if len(header) != len(fields) {
		return nil, eris.Errorf("store: header has %d columns, fields has %d", len(header), len(fields))
	}

	needHeader := true
	if fi, err := os.Stat(path); err == nil {
		needHeader = fi.Size() == 0
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(err, "store: stat %s", path)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}

	w := &Writer{
		path:     path,
		keyField: keyField,
		fields:   append([]string(nil), fields...),
		f:        f,
		csv:      csv.NewWriter(f),
		created:  needHeader,
	}

	if needHeader {
		if err := w.writeHeader(header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Writer) writeHeader(header []string) error {
	bom := transform.NewWriter(w.f, unicode.UTF8BOM.NewEncoder())
	hw := csv.NewWriter(bom)
	if err := hw.Write(header); err != nil {
		return eris.Wrapf(err, "store: write header to %s", w.path)
	}
	hw.Flush()
	if err := hw.Error(); err != nil {
		return eris.Wrapf(err, "store: flush header to %s", w.path)
	}
	if err := bom.Close(); err != nil {
		return eris.Wrapf(err, "store: flush header to %s", w.path)
	}
	return w.sync()
}

// Created reports whether this writer wrote the header, i.e. the file was
// new or empty when opened.
func (w *Writer) Created() bool {
	return w.created
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}

// WritePage appends every record whose key is present and not yet in keys,
// adding each written key to keys. Records without a key are skipped. When at
// least one row was written the file is flushed and fsynced before
// returning, so a resume sees the page's keys.
func (w *Writer) WritePage(records []eastmoney.Record, keys KeySet) (int, error) {
	n := 0
	for _, rec := range records {
		key, ok := rec.Key(w.keyField)
		if !ok || keys.Has(key) {
			continue
		}
		if err := w.csv.Write(rec.Row(w.fields)); err != nil {
			return n, eris.Wrapf(err, "store: write row %s to %s", key, w.path)
		}
		keys.Add(key)
		n++
	}

	if n == 0 {
		return 0, nil
	}

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return n, eris.Wrapf(err, "store: flush %s", w.path)
	}
	return n, w.sync()
}

func (w *Writer) sync() error {
	if err := w.f.Sync(); err != nil {
		return eris.Wrapf(err, "store: sync %s", w.path)
	}
	return nil
}

// Close flushes any buffered rows and closes the file.
func (w *Writer) Close() error {
	w.csv.Flush()
	flushErr := w.csv.Error()
	if err := w.f.Close(); err != nil {
		return eris.Wrapf(err, "store: close %s", w.path)
	}
	if flushErr != nil {
		return eris.Wrapf(flushErr, "store: flush %s", w.path)
	}
	return nil
}
