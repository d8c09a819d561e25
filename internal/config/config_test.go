package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, time.Second, cfg.Widget.ReplyDelay)
	assert.Zero(t, cfg.Widget.WebhookTimeout)
	assert.Equal(t, 256, cfg.Widget.QueueSize)
	assert.Equal(t, "http://localhost:8080/api/demo/webhook", cfg.Widget.DemoWebhookURL)
	assert.Equal(t, "@every 10s", cfg.Analytics.RefreshSpec)
	assert.Equal(t, 30*time.Minute, cfg.Analytics.ActiveWindow)
	assert.Equal(t, 10, cfg.AI.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("WIDGET_REPLY_DELAY", "250ms")
	t.Setenv("WEBHOOK_TIMEOUT", "15s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("AI_HISTORY_LIMIT", "0")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Widget.ReplyDelay)
	assert.Equal(t, 15*time.Second, cfg.Widget.WebhookTimeout)
	assert.Equal(t, "http://127.0.0.1:9090/api/demo/webhook", cfg.Widget.DemoWebhookURL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 1, cfg.AI.HistoryLimit)
	assert.True(t, cfg.Speech.Enabled())
	assert.Equal(t, "key", cfg.Speech.AccessToken)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"port with space": {"PORT", "80 80"},
		"duration":        {"WIDGET_REPLY_DELAY", "soon"},
		"temperature":     {"ARK_TEMPERATURE", "warm"},
		"queue size":      {"RECORDER_QUEUE_SIZE", "0"},
		"speech timeout":  {"SPEECH_TIMEOUT", "30s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{APIKey: "k", Model: "m"}.Enabled())
	assert.True(t, AIConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
	assert.False(t, AIConfig{AccessKey: "a", Model: "m"}.Enabled())
}
