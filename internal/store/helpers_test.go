package store

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

const bom = "\xEF\xBB\xBF"

func records(t *testing.T, raw string) []eastmoney.Record {
	t.Helper()
	var out []eastmoney.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
