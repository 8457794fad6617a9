package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("SOLANA_NETWORK", "devnet")
	t.Setenv("FRONTEND_URL", "https://app.example.com")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "https://api.devnet.solana.com", cfg.Solana.RPCURL)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Solana.ConfirmTimeout)
	assert.Equal(t, 15*time.Second, cfg.Solana.RPCTimeout)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.Contains(t, cfg.CORS.AllowedOrigins, "https://app.example.com")
	assert.Contains(t, cfg.CORS.AllowedOrigins, "http://localhost:3000")
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_AGENT_API_URL", "http://agent:3000")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SOLANA_RPC_URL", "http://rpc.local")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AGENT_TIMEOUT", "15s")
	t.Setenv("BCRYPT_COST", "not-a-number")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, "http://rpc.local", cfg.Solana.RPCURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"no agent", map[string]string{"OPENAI_API_KEY": "", "AI_AGENT_API_URL": ""}},
		{"telegram without token", map[string]string{"OPENAI_API_KEY": "k", "TELEGRAM_ENABLED": "true", "TELEGRAM_BOT_TOKEN": ""}},
		{"postgres without name", map[string]string{"OPENAI_API_KEY": "k", "DB_DRIVER": "postgres", "DB_USER": "", "DB_NAME": ""}},
		{"unknown session backend", map[string]string{"OPENAI_API_KEY": "k", "SESSION_BACKEND": "etcd"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(zap.NewNop())
			assert.Error(t, err)
		})
	}
}
