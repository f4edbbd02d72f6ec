package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, "goroutines: 4\niterations: 10\nlog_level: debug\ntrack_leaks: true\n")
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, Config{Goroutines: 4, Iterations: 10, LogLevel: "debug", TrackLeaks: true}, cfg)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "goroutines: 0\n"))
	require.Error(t, err)

	_, err = loadConfig(writeConfig(t, "log_level: loud\n"))
	require.Error(t, err)

	_, err = loadConfig(writeConfig(t, "goroutines: [\n"))
	require.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().IntVarP(&goroutines, "goroutines", "g", 0, "")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().BoolVar(&trackLeaks, "track-leaks", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"-g", "3", "--track-leaks"}))

	cfg := defaultConfig()
	applyFlags(cmd, &cfg)
	require.Equal(t, 3, cfg.Goroutines)
	require.True(t, cfg.TrackLeaks)
	require.Equal(t, defaultConfig().Iterations, cfg.Iterations)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestStress_DestroysExactlyOnce(t *testing.T) {
	cfg := Config{Goroutines: 16, Iterations: 200, LogLevel: "info"}
	r := stress(context.Background(), cfg, zap.NewNop())
	require.True(t, r.OK(), "%+v", r)
	require.Equal(t, int64(16*200), r.Clones)
}

func TestStress_CanceledStillDestroysOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := stress(ctx, Config{Goroutines: 4, Iterations: 1000, LogLevel: "info"}, zap.NewNop())
	require.True(t, r.OK())
	require.Zero(t, r.Clones)
}

func TestRootCommand(t *testing.T) {
	path := writeConfig(t, "goroutines: 2\niterations: 5\nlog_level: error\n")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "-n", "7"})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "ok: 14 clones across 2 goroutines")
}
