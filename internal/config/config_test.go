package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Provider: ProviderS3,
		Pairs: []Pair{
			{LocalRoot: t.TempDir(), RemotePrefix: "backups/docs"},
		},
		S3: S3{
			Bucket:    "pairsync-test",
			Region:    "us-east-1",
			AccessKey: "AKIATEST",
			SecretKey: "secret",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig(t)
		require.NoError(t, cfg.Validate())
		assert.Equal(t, defaultWorkers, cfg.Workers)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Provider = "gdrive"
		assert.ErrorIs(t, cfg.Validate(), ErrUnsupportedProvider)
	})

	t.Run("no pairs", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Pairs = nil
		assert.ErrorIs(t, cfg.Validate(), ErrNoPairs)
	})

	t.Run("missing local root", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Pairs[0].LocalRoot = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing remote prefix", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Pairs[0].RemotePrefix = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing credentials", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.S3.SecretKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("normalizes remote prefix", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Pairs[0].RemotePrefix = "/backups/docs"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "backups/docs", cfg.Pairs[0].RemotePrefix)
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := validConfig(t)
	path := filepath.Join(t.TempDir(), "conf", "config.json")

	require.NoError(t, cfg.Save(path))

	// config files hold credentials, keep them private
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Provider, loaded.Provider)
	assert.Equal(t, cfg.Pairs, loaded.Pairs)
	assert.Equal(t, cfg.S3, loaded.S3)
	assert.Equal(t, path, loaded.Path)
}

// TestViperRoundTrip reads a saved config file back through the same
// viper decode path the CLI uses, so the on-disk field names stay bound
// to the struct fields.
func TestViperRoundTrip(t *testing.T) {
	cfg := validConfig(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.Save(path))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	require.NoError(t, v.ReadInConfig())

	got := &Config{Provider: v.GetString("provider")}
	require.NoError(t, v.UnmarshalKey("pairs", &got.Pairs))
	require.NoError(t, v.UnmarshalKey("s3", &got.S3))

	assert.Equal(t, cfg.Pairs, got.Pairs)
	assert.Equal(t, cfg.S3, got.S3)
	require.NoError(t, got.Validate())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
