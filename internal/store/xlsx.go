package store

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ExportXLSX copies the CSV at csvPath into a single-sheet workbook at
// xlsxPath. The header row is kept. Returns the number of data rows.
func ExportXLSX(csvPath, xlsxPath, sheetName string) (int, error) {
	in, err := os.Open(csvPath)
	if err != nil {
		return 0, eris.Wrapf(err, "store: open %s", csvPath)
	}
	defer in.Close() //nolint:errcheck

	if sheetName == "" {
		sheetName = "report"
	}
	// Excel rejects sheet names longer than 31 characters.
	if r := []rune(sheetName); len(r) > 31 {
		sheetName = string(r[:31])
	}

	book := xlsx.NewFile()
	sheet, err := book.AddSheet(sheetName)
	if err != nil {
		return 0, eris.Wrapf(err, "store: add sheet %q", sheetName)
	}

	r := newReader(in)
	rows := -1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return max(rows, 0), eris.Wrapf(err, "store: read %s", csvPath)
		}
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
		rows++
	}

	if err := book.Save(xlsxPath); err != nil {
		return max(rows, 0), eris.Wrapf(err, "store: save %s", xlsxPath)
	}
	return max(rows, 0), nil
}
