package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Translate)
	assert.Equal(t, []string{"elevenlabs", "google"}, cfg.STT.Providers)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 8, cfg.Audio.ChunkSeconds)
	assert.Equal(t, 1024, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, 300, cfg.Audio.SilenceThreshold)
	assert.Equal(t, []string{"going out", "house expense", "groceries"}, cfg.Categories)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.BigQueryEnabled())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
  read_timeout: 5s
llm:
  model: gemini-2.0-flash
  temperature: 0.5
  translate: false
stt:
  providers: [google]
categories:
  - food
  - rent
log:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 1e-6)
	assert.False(t, cfg.LLM.Translate)
	assert.Equal(t, []string{"google"}, cfg.STT.Providers)
	assert.Equal(t, []string{"food", "rent"}, cfg.Categories)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ELEVENLABS_API_KEY", "xi-key")
	t.Setenv("LLM_MODEL_NAME", "gemini-legacy")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj")
	t.Setenv("EXPENSE_AUDIO_CHUNK_SECONDS", "4")
	t.Setenv("EXPENSE_STT_PROVIDERS", "google, elevenlabs")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	assert.Equal(t, "xi-key", cfg.STT.ElevenLabsAPIKey)
	assert.Equal(t, "gemini-legacy", cfg.LLM.Model)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 4, cfg.Audio.ChunkSeconds)
	assert.Equal(t, []string{"google", "elevenlabs"}, cfg.STT.Providers)
	assert.True(t, cfg.BigQueryEnabled())
	assert.NoError(t, cfg.RequireLLM())
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "legacy")
	t.Setenv("EXPENSE_LLM_API_KEY", "prefixed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Categories = nil
	cfg.Audio.ChunkSeconds = 0
	cfg.STT.Providers = []string{"whisper"}
	cfg.Log.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"categories", "chunk_seconds", "whisper", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.Error(t, cfg.RequireLLM())
}
