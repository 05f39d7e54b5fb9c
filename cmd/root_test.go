//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"download", "interactive", "status", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "earnings-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDownloadCommand_Flags(t *testing.T) {
	for name, short := range map[string]string{
		"year":    "y",
		"quarter": "q",
		"all":     "a",
		"start":   "s",
		"end":     "e",
		"output":  "o",
		"delay":   "d",
	} {
		flag := downloadCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "download should have --%s flag", name)
		assert.Equal(t, short, flag.Shorthand, name)
	}

	assert.Equal(t, "Q4", downloadCmd.Flags().Lookup("quarter").DefValue)
	assert.Equal(t, "500ms", downloadCmd.Flags().Lookup("delay").DefValue)
	assert.NotNil(t, downloadCmd.Flags().Lookup("summary"))
	assert.NotNil(t, downloadCmd.Flags().Lookup("metrics-file"))
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag)
	assert.Equal(t, "4", flag.DefValue)
}
