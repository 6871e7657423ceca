package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"migrate", "load", "dedup", "stats", "locality", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "gazetteer", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestLoadCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range loadCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["localities"])
	assert.True(t, names["regions"])
}

func TestDedupCommand_Flags(t *testing.T) {
	flag := dedupCmd.Flags().Lookup("columns")
	require.NotNil(t, flag, "dedup command should have --columns flag")
	assert.Equal(t, "[]", flag.DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "runs command should have --limit flag")
	assert.Equal(t, "20", flag.DefValue)
}

func TestRootPreRun_LoadsAndValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	t.Setenv("GAZETTEER_STORE_DRIVER", "sqlite")
	t.Setenv("GAZETTEER_STORE_DATABASE_URL", filepath.Join(dir, "pre.db"))

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestRootPreRun_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	t.Setenv("GAZETTEER_STORE_DRIVER", "oracle")

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestSourceRoot(t *testing.T) {
	assert.Equal(t, "/arg", sourceRoot([]string{"/arg"}, "/cfg"))
	assert.Equal(t, "/cfg", sourceRoot(nil, "/cfg"))
}
