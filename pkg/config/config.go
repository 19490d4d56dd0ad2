package config

import (
	"errors"
	"io/fs"
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
	Env  string
	Port int

	FrontendURL     string
	FrontendOrigins []string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Google   GoogleConfig
	Sync     SyncConfig
	Log      LogConfig

	// TokenEncryptionKey is a base64 AES-256 key. Empty disables token encryption at rest.
	TokenEncryptionKey string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// TokenURL overrides the OAuth2 token endpoint; used against local fakes.
	TokenURL string
	// CalendarEndpoint overrides the Calendar API base URL.
	CalendarEndpoint string
}

type SyncConfig struct {
	Enabled         bool
	Cron            string
	LockTTL         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:                v.GetString("ENV"),
		Port:               v.GetInt("PORT"),
		FrontendURL:        v.GetString("FRONTEND_URL"),
		FrontendOrigins:    splitAndTrim(v.GetString("FRONTEND_ORIGIN")),
		TokenEncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
	}

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("REDIS_ADDR"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.Google = GoogleConfig{
		ClientID:         v.GetString("GOOGLE_CLIENT_ID"),
		ClientSecret:     v.GetString("GOOGLE_CLIENT_SECRET"),
		RedirectURL:      v.GetString("GOOGLE_REDIRECT_URI"),
		TokenURL:         v.GetString("GOOGLE_TOKEN_URL"),
		CalendarEndpoint: v.GetString("GOOGLE_CALENDAR_ENDPOINT"),
	}

	cfg.Sync = SyncConfig{
		Enabled:         v.GetBool("SYNC_ENABLED"),
		Cron:            v.GetString("SYNC_CRON"),
		LockTTL:         parseDuration(v.GetString("SYNC_LOCK_TTL"), 10*time.Minute),
		BreakerFailures: uint32(v.GetUint("SYNC_BREAKER_FAILURES")),
		BreakerTimeout:  parseDuration(v.GetString("SYNC_BREAKER_TIMEOUT"), time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("FRONTEND_URL", "http://localhost:3000/integrations")
	v.SetDefault("FRONTEND_ORIGIN", "http://localhost:3000")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_CRON", "*/30 * * * *")
	v.SetDefault("SYNC_LOCK_TTL", "10m")
	v.SetDefault("SYNC_BREAKER_FAILURES", 5)
	v.SetDefault("SYNC_BREAKER_TIMEOUT", "1m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// isMissingFile reports a missing .env; viper returns a path error rather than
// ConfigFileNotFoundError when the file name is set explicitly.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
