package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Registry RegistryConfig
	Sync     SyncConfig
	Certs    CertificateConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RegistryConfig carries credentials and tuning for the national
// training registry client. Jobs read it at execution time, so a
// credential rotation takes effect on the next job without restart.
type RegistryConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	Timeout       time.Duration
	Environment   string
	WebhookSecret string
}

// SyncConfig governs the registry synchronization queue and workers.
type SyncConfig struct {
	QueueName         string
	WorkerConcurrency int
	MaxRetries        int
	RetryDelay        time.Duration
	JobTimeout        time.Duration
}

// CertificateConfig controls certificate PDF generation.
type CertificateConfig struct {
	IssuerName string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Registry = RegistryConfig{
		BaseURL:       v.GetString("REGISTRY_BASE_URL"),
		ClientID:      v.GetString("REGISTRY_CLIENT_ID"),
		ClientSecret:  v.GetString("REGISTRY_CLIENT_SECRET"),
		Timeout:       time.Duration(v.GetInt("REGISTRY_TIMEOUT_SECONDS")) * time.Second,
		Environment:   v.GetString("REGISTRY_ENV"),
		WebhookSecret: v.GetString("REGISTRY_WEBHOOK_SECRET"),
	}

	cfg.Sync = SyncConfig{
		QueueName:         v.GetString("SYNC_QUEUE_NAME"),
		WorkerConcurrency: v.GetInt("SYNC_WORKER_CONCURRENCY"),
		MaxRetries:        v.GetInt("SYNC_MAX_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("SYNC_RETRY_DELAY"), time.Second),
		JobTimeout:        parseDuration(v.GetString("SYNC_JOB_TIMEOUT"), 30*time.Second),
	}

	cfg.Certs = CertificateConfig{
		IssuerName: v.GetString("CERTIFICATE_ISSUER_NAME"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "tms-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REGISTRY_BASE_URL", "https://sandbox.registry.example.gov")
	v.SetDefault("REGISTRY_CLIENT_ID", "")
	v.SetDefault("REGISTRY_CLIENT_SECRET", "")
	v.SetDefault("REGISTRY_TIMEOUT_SECONDS", 30)
	v.SetDefault("REGISTRY_ENV", "sandbox")
	v.SetDefault("REGISTRY_WEBHOOK_SECRET", "")

	v.SetDefault("SYNC_QUEUE_NAME", "registry-sync")
	v.SetDefault("SYNC_WORKER_CONCURRENCY", 2)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("SYNC_RETRY_DELAY", "1s")
	v.SetDefault("SYNC_JOB_TIMEOUT", "30s")

	v.SetDefault("CERTIFICATE_ISSUER_NAME", "Hawker Boys Training Academy")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
