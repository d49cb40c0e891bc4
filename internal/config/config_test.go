package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Structured)
	assert.True(t, cfg.Metrics.Enabled)

	assert.Equal(t, "wikiexport.db", cfg.Store.Path)
	assert.Equal(t, "@every 30s", cfg.Scheduler.Schedule)
	assert.Equal(t, 4, cfg.Scheduler.Cap)

	assert.Equal(t, "/tmp/wikiexport", cfg.Export.TransientRoot)
	assert.Equal(t, 100, cfg.Export.BatchSize)
	assert.EqualValues(t, 8<<20, cfg.Export.PartSize)
	assert.Equal(t, 24*time.Hour, cfg.Export.TTL)
	assert.Equal(t, time.Hour, cfg.Export.StallAfter)
	assert.Zero(t, cfg.Export.ListRate)

	assert.Empty(t, cfg.Convert.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Convert.PollInterval)

	assert.Empty(t, cfg.ObjectStore.Bucket)
	assert.False(t, cfg.ObjectStore.ForcePathStyle)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9191
  shutdown_timeout: 5s
logging:
  level: debug
  structured: false
scheduler:
  schedule: "@every 10s"
  cap: 8
source:
  pages_dir: /srv/wiki/pages
export:
  ttl: 2h
  stall_after: 15m
  list_rate: 2.5
convert:
  endpoint: https://convert.local:8443
  poll_interval: 2s
object_store:
  bucket: exports
  endpoint: https://minio.local:9000
  force_path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Structured)
	assert.Equal(t, "@every 10s", cfg.Scheduler.Schedule)
	assert.Equal(t, 8, cfg.Scheduler.Cap)
	assert.Equal(t, "/srv/wiki/pages", cfg.Source.PagesDir)
	assert.Equal(t, 2*time.Hour, cfg.Export.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Export.StallAfter)
	assert.Equal(t, 2.5, cfg.Export.ListRate)
	assert.Equal(t, "https://convert.local:8443", cfg.Convert.Endpoint)
	assert.Equal(t, 2*time.Second, cfg.Convert.PollInterval)
	assert.Equal(t, "exports", cfg.ObjectStore.Bucket)
	assert.True(t, cfg.ObjectStore.ForcePathStyle)

	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Export.BatchSize)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WIKIEXPORT_SERVER_PORT", "7070")
	t.Setenv("WIKIEXPORT_EXPORT_TTL", "36h")
	t.Setenv("WIKIEXPORT_OBJECT_STORE_BUCKET", "env-bucket")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 36*time.Hour, cfg.Export.TTL)
	assert.Equal(t, "env-bucket", cfg.ObjectStore.Bucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
