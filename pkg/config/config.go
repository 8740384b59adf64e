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
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Mail       MailConfig
	Population PopulationConfig
	Signup     SignupConfig
	Cache      CacheConfig
	Preterm    PretermConfig
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

// JWTConfig holds the shared secret used to validate admin tokens issued by the identity provider.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig selects the outgoing mail provider and the asynchronous queue sizing.
type MailConfig struct {
	Provider       string
	SendgridAPIKey string
	FromName       string
	FromAddress    string
	SubjectPrefix  string
	BaseURL        string
	Workers        int
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
}

// PopulationConfig drives the scheduled waiting-list population.
type PopulationConfig struct {
	Enabled  bool
	Cron     string
	LockKey  string
	LockTTL  time.Duration
	Timezone string
}

// SignupConfig carries the registration policy knobs.
type SignupConfig struct {
	OverbookingFactor float64
	AttendanceLimit   int
	SignoffWindow     time.Duration
	SignoffSecret     string
}

// CacheConfig tunes the public vacancy cache.
type CacheConfig struct {
	Enabled      bool
	VacanciesTTL time.Duration
}

// PretermConfig configures priority signup tokens.
type PretermConfig struct {
	Secret   string
	TokenTTL time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Provider:       strings.ToLower(v.GetString("MAIL_PROVIDER")),
		SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		SubjectPrefix:  v.GetString("MAIL_SUBJECT_PREFIX"),
		BaseURL:        v.GetString("PUBLIC_BASE_URL"),
		Workers:        v.GetInt("MAIL_WORKERS"),
		BufferSize:     v.GetInt("MAIL_BUFFER_SIZE"),
		MaxRetries:     v.GetInt("MAIL_MAX_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("MAIL_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Population = PopulationConfig{
		Enabled:  v.GetBool("ENABLE_POPULATION_SCHEDULER"),
		Cron:     v.GetString("POPULATION_CRON"),
		LockKey:  v.GetString("POPULATION_LOCK_KEY"),
		LockTTL:  parseDuration(v.GetString("POPULATION_LOCK_TTL"), 10*time.Minute),
		Timezone: v.GetString("POPULATION_TIMEZONE"),
	}

	cfg.Signup = SignupConfig{
		OverbookingFactor: v.GetFloat64("OVERBOOKING_FACTOR"),
		AttendanceLimit:   v.GetInt("ATTENDANCE_LIMIT"),
		SignoffWindow:     parseDuration(v.GetString("SIGNOFF_WINDOW"), 7*24*time.Hour),
		SignoffSecret:     v.GetString("SIGNOFF_SECRET"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_VACANCY_CACHE"),
		VacanciesTTL: parseDuration(v.GetString("VACANCY_CACHE_TTL"), time.Minute),
	}

	cfg.Preterm = PretermConfig{
		Secret:   v.GetString("PRETERM_SECRET"),
		TokenTTL: parseDuration(v.GetString("PRETERM_TOKEN_TTL"), 30*24*time.Hour),
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
	v.SetDefault("DB_NAME", "langcenter")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_PROVIDER", "console")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Sprachenzentrum")
	v.SetDefault("MAIL_FROM_ADDRESS", "noreply@localhost")
	v.SetDefault("MAIL_SUBJECT_PREFIX", "[Sprachenzentrum] ")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_BUFFER_SIZE", 512)
	v.SetDefault("MAIL_MAX_RETRIES", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_POPULATION_SCHEDULER", false)
	v.SetDefault("POPULATION_CRON", "*/15 * * * *")
	v.SetDefault("POPULATION_LOCK_KEY", "langcenter:population:lock")
	v.SetDefault("POPULATION_LOCK_TTL", "10m")
	v.SetDefault("POPULATION_TIMEZONE", "Europe/Berlin")

	v.SetDefault("OVERBOOKING_FACTOR", 4)
	v.SetDefault("ATTENDANCE_LIMIT", 3)
	v.SetDefault("SIGNOFF_WINDOW", "168h")
	v.SetDefault("SIGNOFF_SECRET", "dev_signoff_secret")

	v.SetDefault("ENABLE_VACANCY_CACHE", true)
	v.SetDefault("VACANCY_CACHE_TTL", "1m")

	v.SetDefault("PRETERM_SECRET", "dev_preterm_secret")
	v.SetDefault("PRETERM_TOKEN_TTL", "720h")
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
