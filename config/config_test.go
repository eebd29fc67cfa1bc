package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gliderlab/scholarscout/storage"
)

const sampleTOML = `
[llm]
baseUrl = "http://localhost:1234/v1"
model = "qwen3-8b"
temperature = 0

[search]
serperKey = "file-key"
fetchConcurrency = 8

[research]
resultNum = 5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:1234/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "qwen3-8b", cfg.LLM.Model)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Equal(t, 20, cfg.LLM.MaxRounds)
	assert.Equal(t, "file-key", cfg.Search.SerperKey)
	assert.Equal(t, 8, cfg.Search.FetchConcurrency)
	assert.Equal(t, 5, cfg.Research.ResultNum)
	assert.Equal(t, 40000, cfg.Research.ContentSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCOUT_MODEL", "deepseek-chat")
	t.Setenv("SERPER_KEY", "env-key")
	t.Setenv("SCOUT_DB_PATH", "/tmp/x.db")
	t.Setenv("SCOUT_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, "env-key", cfg.Search.SerperKey)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[llm\nmodel = 1"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Storage, cfg.Storage)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LLM.Model = ""
	cfg.LLM.Temperature = 3
	cfg.Research.ResultNum = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.model")
	assert.Contains(t, err.Error(), "temperature")
	assert.Contains(t, err.Error(), "resultNum")
}

func TestSyncStored(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	defer store.Close()

	first := Default()
	first.LLM.Model = "first-model"
	first.LLM.Temperature = 0.2
	fromStore, err := SyncStored(&first, store, false)
	require.NoError(t, err)
	assert.False(t, fromStore)

	second := Default()
	second.LLM.Model = "second-model"
	fromStore, err = SyncStored(&second, store, false)
	require.NoError(t, err)
	assert.True(t, fromStore)
	assert.Equal(t, "first-model", second.LLM.Model)
	assert.Equal(t, 0.2, second.LLM.Temperature)

	forced := Default()
	forced.LLM.Model = "forced-model"
	fromStore, err = SyncStored(&forced, store, true)
	require.NoError(t, err)
	assert.False(t, fromStore)
	v, err := store.GetConfig("llm", "model")
	require.NoError(t, err)
	assert.Equal(t, "forced-model", v)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "sk-1****wxyz", MaskKey("sk-1234567890wxyz"))
}
