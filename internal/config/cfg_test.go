package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopeana/dispatcher/internal/config"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("EMAIL_API_URL", "https://api.example.com/v1")
	t.Setenv("EMAIL_FROM", "hello@hopeana.app")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ServerAddress())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "*/15 * * * *", cfg.Dispatch.Cron)
	assert.Equal(t, 15, cfg.Dispatch.TickMinutes)
	assert.Equal(t, 500, cfg.Dispatch.HardCap)
	assert.Equal(t, 100, cfg.Dispatch.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.RunTimeout)
	assert.Equal(t, 5, cfg.Quota.FreeLimit)
	assert.Equal(t, 50, cfg.Content.HistoryMax)
	assert.Equal(t, "Hopeana", cfg.Email.FromName)
	assert.Equal(t, "Your Daily Dose of Motivation", cfg.Email.Subject)
	assert.Equal(t, uint32(3), cfg.Breaker.RepeatNumber)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ContentTTL)
}

func TestNewConfig_ProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"http without url", map[string]string{"DISPATCH_PROVIDER": "http"}, true},
		{"smtp ok", map[string]string{"DISPATCH_PROVIDER": "smtp", "SMTP_HOST": "mail", "SMTP_PORT": "25"}, false},
		{"smtp without port", map[string]string{"DISPATCH_PROVIDER": "smtp", "SMTP_HOST": "mail"}, true},
		{"rabbit ok", map[string]string{"DISPATCH_PROVIDER": "rabbitmq", "RABBITMQ_HOST": "mq"}, false},
		{"unknown provider", map[string]string{"DISPATCH_PROVIDER": "pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMAIL_FROM", "hello@hopeana.app")
			t.Setenv("EMAIL_API_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.NewConfig()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRabbitMQAddress(t *testing.T) {
	r := config.RabbitMQ{Host: "mq", Port: "5672", User: "guest", Pass: "secret"}
	assert.Equal(t, "amqp://guest:secret@mq:5672/", r.Address())
}
