package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

var (
	testFields = []string{"SECURITY_CODE", "SECURITY_NAME_ABBR", "BASIC_EPS"}
	testHeader = []string{"股票代码", "股票简称", "每股收益(元)"}
)

func TestWriter_NewFileGetsBOMAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")

	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	assert.True(t, w.Created())
	assert.Equal(t, path, w.Path())

	keys := make(KeySet)
	n, err := w.WritePage(records(t, `[
		{"SECURITY_CODE":"600519","SECURITY_NAME_ABBR":"贵州茅台","BASIC_EPS":68.64},
		{"SECURITY_CODE":"000001","SECURITY_NAME_ABBR":"平安, 银行","BASIC_EPS":2.25}
	]`), keys)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, keys.Len())
	assert.Equal(t,
		bom+"股票代码,股票简称,每股收益(元)\n600519,贵州茅台,68.64\n000001,\"平安, 银行\",2.25\n",
		readFile(t, path))
}

func TestWriter_SkipsDuplicatesAndMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")
	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	defer w.Close() //nolint:errcheck

	keys := KeySet{"A": {}, "B": {}}
	n, err := w.WritePage(records(t, `[
		{"SECURITY_CODE":"A"},
		{"SECURITY_CODE":"B"},
		{"SECURITY_CODE":null},
		{"SECURITY_NAME_ABBR":"nokey"},
		{"SECURITY_CODE":"C"},
		{"SECURITY_CODE":"C"}
	]`), keys)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, keys.Len())

	lines := strings.Split(strings.TrimSpace(readFile(t, path)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "C,,", lines[1])
}

func TestWriter_AppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")

	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	_, err = w.WritePage(records(t, `[{"SECURITY_CODE":"A"}]`), make(KeySet))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	assert.False(t, w.Created())
	_, err = w.WritePage(records(t, `[{"SECURITY_CODE":"B"}]`), make(KeySet))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	content := readFile(t, path)
	assert.Equal(t, 1, strings.Count(content, bom))
	assert.Equal(t, 1, strings.Count(content, "股票代码"))
	assert.True(t, strings.HasSuffix(content, "A,,\nB,,\n"))
}

func TestWriter_EmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.True(t, w.Created())
	assert.Equal(t, bom+"股票代码,股票简称,每股收益(元)\n", readFile(t, path))
}

func TestWriter_HeaderOnDiskBeforeFirstPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")

	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	defer w.Close() //nolint:errcheck

	content := readFile(t, path)
	assert.True(t, strings.HasPrefix(content, bom))
	assert.Equal(t, 1, strings.Count(content, bom))
	assert.Equal(t, bom+"股票代码,股票简称,每股收益(元)\n", content)
}

func TestWriter_NothingNewLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")
	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	before := readFile(t, path)

	n, err := w.WritePage(records(t, `[{"SECURITY_CODE":"A"}]`), KeySet{"A": {}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 0, n)
	assert.Equal(t, before, readFile(t, path))
}

func TestWriter_RoundTripThroughScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")
	w, err := OpenWriter(path, eastmoney.KeyField, testFields, testHeader)
	require.NoError(t, err)
	_, err = w.WritePage(records(t, `[{"SECURITY_CODE":"600000"},{"SECURITY_CODE":"600001"}]`), make(KeySet))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	snap, err := Scan(path, "股票代码", eastmoney.KeyField)
	require.NoError(t, err)
	assert.Equal(t, testHeader, snap.Header)
	assert.Equal(t, 2, snap.Keys.Len())
}

func TestOpenWriter_Validation(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenWriter(filepath.Join(dir, "a.csv"), eastmoney.KeyField, nil, nil)
	assert.Error(t, err)

	_, err = OpenWriter(filepath.Join(dir, "b.csv"), eastmoney.KeyField, testFields, testHeader[:1])
	assert.Error(t, err)

	_, err = OpenWriter(filepath.Join(dir, "missing", "c.csv"), eastmoney.KeyField, testFields, testHeader)
	assert.Error(t, err)
}
