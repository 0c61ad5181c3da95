package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(Dir(tmpDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(Dir(tmpDir), "config.yaml"), []byte(content), 0o644))
	return tmpDir
}

func TestLoadConfig_Default(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxIterations, cfg.Limits.MaxIterations)
	assert.Equal(t, DefaultMaxDurationHours, cfg.Limits.MaxDurationHours)
	assert.Equal(t, DefaultNoProgress, cfg.Limits.NoProgressThreshold)
	assert.Equal(t, DefaultCommand, cfg.Assistant.Command)
	assert.Equal(t, DefaultMaxTurns, cfg.Assistant.MaxTurns)
	assert.Equal(t, DefaultOutputFormat, cfg.Assistant.OutputFormat)
	assert.True(t, cfg.Assistant.Verbose)
	assert.Equal(t, DefaultPlanPath, cfg.Paths.Plan)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.DryRun)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	t.Parallel()

	tmpDir := writeConfig(t, `limits:
  max_iterations: 12
  max_duration_hours: 2
  no_progress_threshold: 0
assistant:
  command: /usr/local/bin/claude
  model: opus
  max_turns: 40
  output_format: stream-json
  verbose: false
  extra_args: ["--add-dir", "../shared"]
paths:
  spec: docs/spec.md
  plan: docs/plan.md
  progress: docs/progress.md
dry_run: true
log_level: debug
`)

	cfg, err := LoadConfig(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Limits.MaxIterations)
	assert.Equal(t, 2.0, cfg.Limits.MaxDurationHours)
	assert.Equal(t, 0, cfg.Limits.NoProgressThreshold)
	assert.Equal(t, "/usr/local/bin/claude", cfg.Assistant.Command)
	assert.Equal(t, "opus", cfg.Assistant.Model)
	assert.Equal(t, 40, cfg.Assistant.MaxTurns)
	assert.False(t, cfg.Assistant.Verbose)
	assert.Equal(t, []string{"--add-dir", "../shared"}, cfg.Assistant.ExtraArgs)
	assert.Equal(t, "docs/plan.md", cfg.Paths.Plan)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_PartialFile(t *testing.T) {
	t.Parallel()

	tmpDir := writeConfig(t, "limits:\n  max_iterations: 7\n")

	cfg, err := LoadConfig(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Limits.MaxIterations)
	assert.Equal(t, DefaultMaxDurationHours, cfg.Limits.MaxDurationHours)
	assert.Equal(t, DefaultCommand, cfg.Assistant.Command)
	assert.Equal(t, DefaultSpecPath, cfg.Paths.Spec)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	tmpDir := writeConfig(t, "limits: [unclosed\n")

	_, err := LoadConfig(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero iterations", func(c *Config) { c.Limits.MaxIterations = 0 }, "limits.max_iterations"},
		{"negative duration", func(c *Config) { c.Limits.MaxDurationHours = -1 }, "limits.max_duration_hours"},
		{"negative no-progress threshold", func(c *Config) { c.Limits.NoProgressThreshold = -1 }, "limits.no_progress_threshold"},
		{"empty command", func(c *Config) { c.Assistant.Command = "  " }, "assistant.command"},
		{"negative turns", func(c *Config) { c.Assistant.MaxTurns = -1 }, "assistant.max_turns"},
		{"empty plan", func(c *Config) { c.Paths.Plan = "" }, "paths.plan"},
		{"empty spec", func(c *Config) { c.Paths.Spec = "" }, "paths.spec"},
		{"empty progress", func(c *Config) { c.Paths.Progress = "" }, "paths.progress"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := ValidateConfig(&cfg)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	cfg := DefaultConfig()
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Limits.MaxIterations = 9
	cfg.Assistant.Model = "sonnet"

	require.NoError(t, SaveConfig(tmpDir, &cfg))

	loaded, err := LoadConfig(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, &cfg, loaded)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("/repo", "PLAN.md"), Resolve("/repo", "PLAN.md"))
	assert.Equal(t, "/abs/PLAN.md", Resolve("/repo", "/abs/PLAN.md"))
}

func TestLoadEnvFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		env, err := LoadEnvFile(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, env)
	})

	t.Run("parses entries", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		require.NoError(t, os.MkdirAll(Dir(tmpDir), 0o755))
		content := "# comment\n\nANTHROPIC_MODEL=opus\nexport DISABLE_TELEMETRY=\"1\"\nQUOTED='a b'\n"
		require.NoError(t, os.WriteFile(filepath.Join(Dir(tmpDir), "assistant.env"), []byte(content), 0o644))

		env, err := LoadEnvFile(tmpDir)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"ANTHROPIC_MODEL":   "opus",
			"DISABLE_TELEMETRY": "1",
			"QUOTED":            "a b",
		}, env)
	})

	t.Run("missing equals", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		require.NoError(t, os.MkdirAll(Dir(tmpDir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(Dir(tmpDir), "assistant.env"), []byte("NOPE\n"), 0o644))

		_, err := LoadEnvFile(tmpDir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
	})
}
