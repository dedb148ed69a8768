// Package config loads runtime configuration from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage providers accepted in STORAGE_PROVIDER.
const (
	StorageNone  = ""
	StorageDrive = "drive"
	StorageS3    = "s3"
)

type Config struct {
	Port        int
	LogLevel    slog.Level
	DBPath      string
	TemplateDir string
	StaticDir   string
	BaseURL     string

	JWTSecret       string
	SessionTTL      time.Duration
	CookieSecure    bool
	SuperuserEmails []string

	CORSAllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StorageProvider     string
	DrivePhotosFolder   string
	DriveVideosFolder   string
	DriveMessagesFolder string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRefreshToken  string
	AWSRegion           string
	S3Bucket            string

	WeatherAPIKey string

	NotifyURL     string
	NotifyToken   string
	NotifyWorkers int

	WeddingDate time.Time
}

// DefaultWeddingDate is 21 February 2026, 14:30 SAST.
var DefaultWeddingDate = time.Date(2026, 2, 21, 14, 30, 0, 0, time.FixedZone("SAST", 2*60*60))

// Load reads .env (if any) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []error

	port, err := getEnvInt("PORT", 8080)
	errs = append(errs, err)
	redisDB, err := getEnvInt("REDIS_DB", 0)
	errs = append(errs, err)
	workers, err := getEnvInt("NOTIFY_WORKERS", 2)
	errs = append(errs, err)
	ttl, err := getEnvDuration("SESSION_TTL", 24*time.Hour)
	errs = append(errs, err)
	secure, err := getEnvBool("COOKIE_SECURE", false)
	errs = append(errs, err)
	level, err := getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	errs = append(errs, err)
	weddingDate, err := getEnvTime("WEDDING_DATE", DefaultWeddingDate)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        port,
		LogLevel:    level,
		DBPath:      getEnv("DB_PATH", "data/wedding.db"),
		TemplateDir: getEnv("TEMPLATE_DIR", "web/templates"),
		StaticDir:   getEnv("STATIC_DIR", "web/static"),
		BaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		SessionTTL:      ttl,
		CookieSecure:    secure,
		SuperuserEmails: getEnvList("SUPERUSER_EMAILS"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		StorageProvider:     strings.ToLower(os.Getenv("STORAGE_PROVIDER")),
		DrivePhotosFolder:   os.Getenv("DRIVE_PHOTOS_FOLDER"),
		DriveVideosFolder:   os.Getenv("DRIVE_VIDEOS_FOLDER"),
		DriveMessagesFolder: os.Getenv("DRIVE_MESSAGES_FOLDER"),
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRefreshToken:  os.Getenv("GOOGLE_REFRESH_TOKEN"),
		AWSRegion:           os.Getenv("AWS_REGION"),
		S3Bucket:            os.Getenv("S3_BUCKET_NAME"),

		WeatherAPIKey: os.Getenv("WEATHER_API_KEY"),

		NotifyURL:     os.Getenv("NOTIFY_URL"),
		NotifyToken:   os.Getenv("NOTIFY_TOKEN"),
		NotifyWorkers: workers,

		WeddingDate: weddingDate,
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.NotifyWorkers < 1 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be at least 1"))
	}

	switch c.StorageProvider {
	case StorageNone:
	case StorageDrive:
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			errs = append(errs, errors.New("STORAGE_PROVIDER=drive needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET"))
		}
		if c.DrivePhotosFolder == "" || c.DriveVideosFolder == "" {
			errs = append(errs, errors.New("STORAGE_PROVIDER=drive needs DRIVE_PHOTOS_FOLDER and DRIVE_VIDEOS_FOLDER"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("STORAGE_PROVIDER=s3 needs S3_BUCKET_NAME"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER %q", c.StorageProvider))
	}

	return errors.Join(errs...)
}

// IsSuperuserEmail reports whether email is on the SUPERUSER_EMAILS list.
func (c *Config) IsSuperuserEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.SuperuserEmails {
		if strings.ToLower(e) == email {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s=%q is not a boolean", key, v)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a duration", key, v)
	}
	return d, nil
}

func getEnvTime(key string, defaultValue time.Time) (time.Time, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: %s=%q is not an RFC3339 time", key, v)
	}
	return t, nil
}

func getEnvLevel(key string, defaultValue slog.Level) (slog.Level, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a log level", key, v)
	}
	return level, nil
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
