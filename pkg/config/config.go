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

// Lock backends.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Enrollment  EnrollmentConfig
	Lock        LockConfig
	CourseCache CourseCacheConfig
	Reconcile   ReconcileConfig
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
	Enabled bool
	Secret  string
	Issuer  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrollmentConfig holds the business limits of the enrollment engine.
type EnrollmentConfig struct {
	MaxSemesterCredits     int
	DefaultCourseCredits   int
	DefaultRejectionReason string
	Timezone               string
	BatchMaxSize           int
}

// LockConfig selects and tunes the per-key lock used around capacity mutations.
type LockConfig struct {
	Backend     string
	WaitTimeout time.Duration
	RetryDelay  time.Duration
	TTL         time.Duration
}

// CourseCacheConfig governs the redis read cache for course lookups.
type CourseCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ReconcileConfig sizes the occupancy reconciliation worker pool.
type ReconcileConfig struct {
	Workers int
	Retries int
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
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
		Issuer:  v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Enrollment = EnrollmentConfig{
		MaxSemesterCredits:     positiveOr(v.GetInt("ENROLLMENT_MAX_SEMESTER_CREDITS"), 18),
		DefaultCourseCredits:   positiveOr(v.GetInt("ENROLLMENT_DEFAULT_COURSE_CREDITS"), 3),
		DefaultRejectionReason: v.GetString("ENROLLMENT_DEFAULT_REJECTION_REASON"),
		Timezone:               v.GetString("ENROLLMENT_TIMEZONE"),
		BatchMaxSize:           positiveOr(v.GetInt("ENROLLMENT_BATCH_MAX_SIZE"), 200),
	}

	cfg.Lock = LockConfig{
		Backend:     strings.ToLower(v.GetString("LOCK_BACKEND")),
		WaitTimeout: parseDuration(v.GetString("LOCK_WAIT_TIMEOUT"), 3*time.Second),
		RetryDelay:  parseDuration(v.GetString("LOCK_RETRY_DELAY"), 25*time.Millisecond),
		TTL:         parseDuration(v.GetString("LOCK_TTL"), 15*time.Second),
	}
	if cfg.Lock.Backend != LockBackendRedis {
		cfg.Lock.Backend = LockBackendMemory
	}

	cfg.CourseCache = CourseCacheConfig{
		Enabled: v.GetBool("COURSE_CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("COURSE_CACHE_TTL"), time.Minute),
	}

	cfg.Reconcile = ReconcileConfig{
		Workers: positiveOr(v.GetInt("RECONCILE_WORKERS"), 1),
		Retries: positiveOr(v.GetInt("RECONCILE_RETRIES"), 3),
	}

	return cfg, nil
}

// Location resolves the enrollment timezone, falling back to UTC.
func (c EnrollmentConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROLLMENT_MAX_SEMESTER_CREDITS", 18)
	v.SetDefault("ENROLLMENT_DEFAULT_COURSE_CREDITS", 3)
	v.SetDefault("ENROLLMENT_DEFAULT_REJECTION_REASON", "no reason provided")
	v.SetDefault("ENROLLMENT_TIMEZONE", "UTC")
	v.SetDefault("ENROLLMENT_BATCH_MAX_SIZE", 200)

	v.SetDefault("LOCK_BACKEND", LockBackendMemory)
	v.SetDefault("LOCK_WAIT_TIMEOUT", "3s")
	v.SetDefault("LOCK_RETRY_DELAY", "25ms")
	v.SetDefault("LOCK_TTL", "15s")

	v.SetDefault("COURSE_CACHE_ENABLED", false)
	v.SetDefault("COURSE_CACHE_TTL", "1m")

	v.SetDefault("RECONCILE_WORKERS", 1)
	v.SetDefault("RECONCILE_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
