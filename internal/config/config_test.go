package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsMemory(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("AUTH_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	require.Equal(t, "memory", cfg.NotifyQueue)
	require.Equal(t, 2, cfg.NotifyWorkers)
	require.Equal(t, 15*time.Second, cfg.SMTPTimeout)
	require.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	require.False(t, cfg.AuthEnabled)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SMTP_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 3*time.Second, cfg.SMTPTimeout)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without dsn", map[string]string{"STORAGE_DRIVER": "postgres", "POSTGRES_CONN": "", "AUTH_ENABLED": "false"}},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mongo", "AUTH_ENABLED": "false"}},
		{"short session key", map[string]string{"STORAGE_DRIVER": "memory", "AUTH_ENABLED": "true", "SESSION_KEY": "short"}},
		{"bad int", map[string]string{"STORAGE_DRIVER": "memory", "AUTH_ENABLED": "false", "NOTIFY_WORKERS": "many"}},
		{"unknown queue", map[string]string{"STORAGE_DRIVER": "memory", "AUTH_ENABLED": "false", "NOTIFY_QUEUE": "sqs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
