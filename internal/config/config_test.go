package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fs", cfg.Store.Driver)
	assert.Equal(t, "./workspace", cfg.Store.FS.Root)
}

func TestValidateRejectsBadDriver(t *testing.T) {
	cfg := NewDefault()
	cfg.Store.Driver = "ftp"
	assert.Error(t, cfg.Validate())

	cfg.Store.Driver = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresBucketForS3(t *testing.T) {
	cfg := NewDefault()
	cfg.Store.Driver = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Store.S3.Bucket = "hmse-projects"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := NewDefault()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for name, want := range cases {
		cfg := Config{LogLevel: name}
		assert.Equal(t, want, cfg.SlogLevel(), "level %q", name)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("HMSE_LOG_LEVEL", "debug")
	t.Setenv("HMSE_STORE_DRIVER", "s3")
	t.Setenv("HMSE_S3_BUCKET", "bucket")
	t.Setenv("HMSE_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("HMSE_S3_PATH_STYLE", "true")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "s3", cfg.Store.Driver)
	assert.Equal(t, "bucket", cfg.Store.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Store.S3.Endpoint)
	assert.True(t, cfg.Store.S3.PathStyle)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_BUCKET", "expanded-bucket")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: warn
store:
  driver: s3
  s3:
    bucket: ${TEST_BUCKET}
    region: eu-central-1
`), 0o644))

	cfg := NewDefault()
	require.NoError(t, Load(path, cfg))
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "expanded-bucket", cfg.Store.S3.Bucket)
	assert.Equal(t, "eu-central-1", cfg.Store.S3.Region)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: ftp\n"), 0o644))
	assert.Error(t, Load(path, NewDefault()))
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), NewDefault()))
}
