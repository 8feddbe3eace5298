package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vstarikov/govorun/internal/router"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MODEL_BACKENDS", `[{"name":"flash","provider":"gemini","model":"gemini-2.0-flash","rpm":15,"rpd":1500}]`)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500000, cfg.TokenLimit)
	assert.Equal(t, "messages.jsonl", cfg.StorePath)
	assert.Equal(t, "ru", cfg.Language)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.EnableHiCommand)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("MODEL_BACKENDS", `[]`)

	_, err := Load()
	assert.Error(t, err)
}

func TestBackendsParsing(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MODEL_BACKENDS", `[
		{"name":"flash","provider":"gemini","model":"gemini-2.0-flash","rpm":15,"rpd":1500},
		{"name":"mini","provider":"openai","model":"gpt-4o-mini"}
	]`)

	cfg, err := Load()
	require.NoError(t, err)

	backends, err := cfg.Backends()
	require.NoError(t, err)
	require.Len(t, backends, 2)
	assert.Equal(t, router.Backend{Name: "flash", Provider: "gemini", Model: "gemini-2.0-flash", RPM: 15, RPD: 1500}, backends[0])
	// отсутствующие лимиты читаются как 0 — "без лимита"
	assert.Equal(t, 0, backends[1].RPM)
	assert.Equal(t, 0, backends[1].RPD)
}

func TestBackendsMalformedJSON(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MODEL_BACKENDS", `{"name":"flash"`)

	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.Backends()
	assert.Error(t, err)
}

func TestAllowedChatIDsAndAliases(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_CHAT_IDS", "-10012345,67890")
	t.Setenv("BOT_ALIASES", "говорун,бот")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"-10012345", "67890"}, cfg.AllowedChatIDs)
	assert.Equal(t, []string{"говорун", "бот"}, cfg.BotAliases)
}
