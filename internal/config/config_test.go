package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesListsAndBackupAndMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
lists:
  - name: results
    policy: delete
    max_running: 4
    default_execution_duration: 300s
    max_execution_duration: 3600s
    default_destruction_interval: 24h
    max_destruction_interval: 168h
    job_parameters:
      - name: band
        type: string
        pattern: "^[a-zA-Z]+$"
        modifiable: true
  - name: archive
    policy: always_archive
backup:
  dir: /var/lib/uws/backups
  interval_seconds: 300
metrics:
  enabled: true
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Lists, 2)
	assert.Equal(t, "results", cfg.Lists[0].Name)
	assert.Equal(t, 4, cfg.Lists[0].MaxRunning)
	assert.Equal(t, "300s", cfg.Lists[0].DefaultExecutionDuration)
	assert.Equal(t, "3600s", cfg.Lists[0].MaxExecutionDuration)
	assert.Equal(t, "24h", cfg.Lists[0].DefaultDestructionInterval)
	assert.Equal(t, "168h", cfg.Lists[0].MaxDestructionInterval)
	require.Len(t, cfg.Lists[0].JobParameters, 1)
	assert.Equal(t, "band", cfg.Lists[0].JobParameters[0].Name)
	assert.Equal(t, "always_archive", cfg.Lists[1].Policy)
	assert.Equal(t, 300*time.Second, cfg.Backup.Interval())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
