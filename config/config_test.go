package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 20, cfg.ThresholdRounds)
	assert.Equal(t, 8000, cfg.ThresholdTokens)
	assert.Equal(t, 6, cfg.RetentionCount)
	assert.Equal(t, 3, cfg.ConsecutiveFailureThreshold)
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.Equal(t, 2, cfg.MaxReplans)
	assert.Equal(t, 10*time.Minute, cfg.MaxDuration)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
threshold_rounds: 10
retention_count: 4
max_iterations: 8
max_duration: 90s
tool_timeout: 5s
skills_dir: /srv/skills
log_format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ThresholdRounds)
	assert.Equal(t, 4, cfg.RetentionCount)
	assert.Equal(t, 8, cfg.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.MaxDuration)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "/srv/skills", cfg.SkillsDir)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8000, cfg.ThresholdTokens, "unset keys keep defaults")
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	path := writeConfig(t, "max_iterations: 8\n")
	t.Setenv("TASKLOOP_MAX_ITERATIONS", "12")
	t.Setenv("TASKLOOP_MODEL_TIMEOUT", "15s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxIterations)
	assert.Equal(t, 15*time.Second, cfg.ModelTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
max_iterations: 0
max_replans: -1
tool_timeout: -1s
log_level: loud
watch_skills: true
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, field := range []string{"max_iterations", "max_replans", "tool_timeout", "log_level", "watch_skills"} {
		assert.Contains(t, err.Error(), "field="+field)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestProjections(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.ThresholdRounds = 12
	cfg.RetentionCount = 3
	cfg.MaxReplans = 0
	cfg.ToolRetries = 1

	compaction := cfg.CompactionConfig()
	assert.Equal(t, 12, compaction.ThresholdRounds)
	assert.Equal(t, 3, compaction.RetentionCount)

	loop := cfg.LoopConfig()
	require.NoError(t, loop.Validate())
	assert.Equal(t, 0, loop.MaxReplans)
	assert.Equal(t, 1, loop.ToolRetries)
	assert.Equal(t, compaction, loop.Compaction)
	assert.NotEmpty(t, loop.SystemPrompt)
}

func TestLoggerHonorsFormat(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "debug"

	var out bytes.Buffer
	logger, err := cfg.Logger(&out)
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, out.String(), `"msg":"hello"`)
}
