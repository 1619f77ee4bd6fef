package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	ServerAddress string

	StorageDriver     string
	PostgresConn      string
	MigrationsEnabled bool

	AuthEnabled  bool
	SessionKey   string
	CookieSecure bool
	FrontendURL  string
	WSOrigin     string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFromName string
	SMTPTimeout  time.Duration

	NotifyWorkers   int
	NotifyQueue     string
	NotifyQueueSize int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisQueueKey   string

	KafkaBrokers []string
	KafkaTopic   string

	UploadsDir     string
	MaxUploadBytes int64
	DocumentsDir   string

	LogLevel  string
	LogFormat string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// .env необязателен: в контейнере всё приходит из окружения
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddress:     getEnvOrDefault("SERVER_ADDRESS", "0.0.0.0:8080"),
		StorageDriver:     getEnvOrDefault("STORAGE_DRIVER", "postgres"),
		PostgresConn:      os.Getenv("POSTGRES_CONN"),
		SessionKey:        os.Getenv("SESSION_KEY"),
		FrontendURL:       getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		WSOrigin:          os.Getenv("WS_ALLOWED_ORIGIN"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:      getEnvOrDefault("SMTP_FROM_NAME", "MetalTrade"),
		NotifyQueue:       getEnvOrDefault("NOTIFY_QUEUE", "memory"),
		RedisAddr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisQueueKey:     getEnvOrDefault("REDIS_QUEUE_KEY", "metaltrade:emails"),
		KafkaTopic:        getEnvOrDefault("KAFKA_TOPIC", "rfq-events"),
		UploadsDir:        getEnvOrDefault("UPLOADS_DIR", "uploads"),
		DocumentsDir:      getEnvOrDefault("DOCUMENTS_DIR", "documents"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "json"),
		MigrationsEnabled: true,
		AuthEnabled:       true,
	}

	var err error
	if cfg.MigrationsEnabled, err = getBool("MIGRATIONS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.AuthEnabled, err = getBool("AUTH_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 465); err != nil {
		return nil, err
	}
	if cfg.SMTPTimeout, err = getDuration("SMTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.NotifyQueueSize, err = getInt("NOTIFY_QUEUE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_MB", 10)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload) << 20

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "postgres":
		if c.PostgresConn == "" {
			return errors.New("POSTGRES_CONN is required for postgres storage")
		}
	case "memory":
	default:
		return errors.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.NotifyQueue {
	case "memory", "redis":
	default:
		return errors.Errorf("unknown NOTIFY_QUEUE %q", c.NotifyQueue)
	}
	if c.AuthEnabled && len(c.SessionKey) < 32 {
		return errors.New("SESSION_KEY must be at least 32 bytes when AUTH_ENABLED")
	}
	if c.NotifyWorkers < 1 {
		return errors.New("NOTIFY_WORKERS must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", key)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
