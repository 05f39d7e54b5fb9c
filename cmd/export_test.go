//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestXLSXPathAndSheetName(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "业绩报表_2024年年报.xlsx"), xlsxPath(filepath.Join("out", "业绩报表_2024年年报.csv")))
	assert.Equal(t, "2024年年报", sheetName("/data/业绩报表_2024年年报.csv"))
	assert.Equal(t, "custom", sheetName("/data/custom.csv"))
}

func TestExportAll(t *testing.T) {
	dir := t.TempDir()
	a := writeReport(t, dir, "业绩报表_2024年年报.csv", "\xEF\xBB\xBF股票代码,股票简称\n600519,贵州茅台\n000001,平安银行\n")
	b := writeReport(t, dir, "业绩报表_2024年一季报.csv", "股票代码\n300750\n")

	results, err := exportAll(context.Background(), []string{a, b}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, b, results[0].CSVPath)
	assert.Equal(t, 1, results[0].Rows)
	assert.Equal(t, 2, results[1].Rows)

	book, err := xlsx.OpenFile(xlsxPath(a))
	require.NoError(t, err)
	require.Len(t, book.Sheets, 1)
	assert.Equal(t, "2024年年报", book.Sheets[0].Name)
	assert.Equal(t, "股票代码", book.Sheets[0].Rows[0].Cells[0].String())
	assert.Equal(t, "贵州茅台", book.Sheets[0].Rows[1].Cells[1].String())
}

func TestExportAll_MissingFile(t *testing.T) {
	_, err := exportAll(context.Background(), []string{filepath.Join(t.TempDir(), "missing.csv")}, 0)
	assert.Error(t, err)
}

func TestExportAll_Cancelled(t *testing.T) {
	dir := t.TempDir()
	p := writeReport(t, dir, "业绩报表_2024年年报.csv", "股票代码\nA\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exportAll(ctx, []string{p}, 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(xlsxPath(p))
	assert.True(t, os.IsNotExist(statErr))
}
