package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, found := vals[key]
		return v, found
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", false, env(nil))
	require.NoError(t, err)

	require.Equal(t, "eic", cfg.GitHub.Owner)
	require.Equal(t, "EICrecon", cfg.GitHub.Repo)
	require.Equal(t, "rec_dis_18x275_minQ2=1000_craterlake_18x275.edm4eic.root", cfg.GitHub.ArtifactName)
	require.Equal(t, "capybara-reports", cfg.Report.Dir)
	require.Equal(t, "127.0.0.1:24535", cfg.Report.ServeAddr)
	require.Equal(t, "capybara-reports", cfg.Publish.PagesRepo)
	require.Equal(t, "capybara.sqlite", cfg.CacheFile)
	require.Empty(t, cfg.GitHub.Token)
	require.ErrorIs(t, cfg.GitHub.RequireToken(), ErrNoToken)
}

func TestMissingOptionalFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false, env(nil))
	require.NoError(t, err)
	require.Equal(t, "eic", cfg.GitHub.Owner)
}

func TestMissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true, env(nil))
	require.Error(t, err)
}

func TestFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capybara.yaml")
	content := `
debug: true
github:
  owner: someone
  artifact: other.root
report:
  dir: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, true, env(map[string]string{
		"GITHUB_TOKEN":       "secret",
		"CAPYBARA_OWNER":     "override",
		"CAPYBARA_S3_BUCKET": "reports-bucket",
		"CAPYBARA_DEBUG":     "false",
	}))
	require.NoError(t, err)

	require.False(t, cfg.Debug)
	require.Equal(t, "secret", cfg.GitHub.Token)
	require.Equal(t, "override", cfg.GitHub.Owner)
	require.Equal(t, "EICrecon", cfg.GitHub.Repo)
	require.Equal(t, "other.root", cfg.GitHub.ArtifactName)
	require.Equal(t, "out", cfg.Report.Dir)
	require.Equal(t, "127.0.0.1:24535", cfg.Report.ServeAddr)
	require.Equal(t, "reports-bucket", cfg.Publish.S3Bucket)
	require.NoError(t, cfg.GitHub.RequireToken())
}

func TestUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capybara.yaml")
	require.NoError(t, os.WriteFile(path, []byte("github:\n  tokn: typo\n"), 0o644))

	_, err := Load(path, true, env(nil))
	require.Error(t, err)
}
