package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/builtin"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadParsesPermissionsAndBudgets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("permissions:\n  - fs.read\nmax_call_depth: 128\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.MaxCallDepth)
	require.Equal(t, "debug", cfg.LogLevel)

	check := cfg.PermissionChecker()
	require.True(t, check(builtin.Permission("fs.read")))
	require.False(t, check(builtin.Permission("net.connect")))
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("permissions: [this is not valid: yaml::"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
