package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jumpnav/internal/config"
	"jumpnav/internal/logsink"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.Default().Planner, cfg.Planner)
	require.Equal(t, 1000.0, cfg.Tuning.Annealing.InitialTemp)
	require.Equal(t, logsink.Info, cfg.Level())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	p := writeFile(t, `
planner:
  workers: 4
  jobTimeout: 30s
  defaultAlgorithm: annealing
tuning:
  annealing:
    coolingRate: 0.01
log:
  level: debug
`)
	t.Setenv("PLANNER_WORKERS", "8")
	t.Setenv("PORT", "9090")
	cfg, err := config.Load(p)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Planner.Workers)
	require.Equal(t, 30*time.Second, cfg.Planner.JobTimeout)
	require.Equal(t, "annealing", cfg.Planner.DefaultAlgorithm)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 0.01, cfg.Tuning.Annealing.CoolingRate)
	require.Equal(t, 1000.0, cfg.Tuning.Annealing.InitialTemp)
	require.Equal(t, 64, cfg.Planner.QueueSize)
	require.Equal(t, logsink.Debug, cfg.Level())
}

func TestLoadFromEnvPath(t *testing.T) {
	p := writeFile(t, "planner:\n  queueSize: 3\n")
	t.Setenv("PLANNER_CONFIG", p)
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Planner.QueueSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := config.Load(writeFile(t, "planner:\n  defaultAlgorithm: teleport\n"))
	require.ErrorContains(t, err, "teleport")

	_, err = config.Load(writeFile(t, "tuning:\n  annealing:\n    coolingRate: 2\n"))
	require.ErrorContains(t, err, "coolingRate")

	_, err = config.Load(writeFile(t, "planner: [\n"))
	require.ErrorContains(t, err, "parse")

	t.Setenv("PLANNER_RATE_RPS", "fast")
	_, err = config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "PLANNER_RATE_RPS")
}

func TestSyncAlgorithmsFromEnv(t *testing.T) {
	t.Setenv("PLANNER_SYNC_ALGORITHMS", "greedy, exact")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, []string{"greedy", "exact"}, cfg.Planner.SyncAlgorithms)
}

func TestSyncTimeout(t *testing.T) {
	require.Equal(t, 10*time.Second, config.Default().Planner.SyncTimeout)

	t.Setenv("PLANNER_SYNC_TIMEOUT", "750ms")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, cfg.Planner.SyncTimeout)

	_, err = config.Load(writeFile(t, "planner:\n  syncTimeout: -1s\n"))
	require.ErrorContains(t, err, "syncTimeout")
}
