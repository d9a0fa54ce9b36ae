package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        string
	PublicURL   string
	FrontendURL string

	PostgresURI string
	AutoMigrate bool
	RedisURL    string
	MongoURI    string
	MongoDB     string

	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	GCSBucket       string
	LocalStorageDir string
	ChromePath      string

	ExportWorkers int
	ExportStream  string
	ExportGroup   string

	VerificationTokenTTL time.Duration
	UnverifiedAccountTTL time.Duration
	CleanupInterval      time.Duration
	MaxCVsPerUser        int
	CVCacheTTL           time.Duration
	ExportEventRetention time.Duration
	DownloadURLTTL       time.Duration

	VertexProjectID string
	VertexLocation  string
	VertexModel     string
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		PostgresURI: getEnv("POSTGRES_URI", ""),
		AutoMigrate: getEnvAsBool("AUTO_MIGRATE", true),
		RedisURL:    firstEnv("REDIS_URL", "REDIS_URI", "REDIS_ADDR"),
		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "cvitapilot"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "cvitapilot"),
		AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "CVitaPilot <no-reply@cvitapilot.local>"),

		GCSBucket:       getEnv("GCS_BUCKET", ""),
		LocalStorageDir: getEnv("LOCAL_STORAGE_DIR", "./data/exports"),
		ChromePath:      getEnv("CHROME_PATH", ""),

		ExportWorkers: getEnvAsInt("EXPORT_WORKERS", 2),
		ExportStream:  getEnv("EXPORT_STREAM", "export:stream"),
		ExportGroup:   getEnv("EXPORT_GROUP", "export-workers"),

		VerificationTokenTTL: getEnvAsDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		UnverifiedAccountTTL: getEnvAsDuration("UNVERIFIED_ACCOUNT_TTL", 72*time.Hour),
		CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),
		MaxCVsPerUser:        getEnvAsInt("MAX_CVS_PER_USER", 20),
		CVCacheTTL:           getEnvAsDuration("CV_CACHE_TTL", 10*time.Minute),
		ExportEventRetention: getEnvAsDuration("EXPORT_EVENT_RETENTION", 7*24*time.Hour),
		DownloadURLTTL:       getEnvAsDuration("DOWNLOAD_URL_TTL", 15*time.Minute),

		VertexProjectID: getEnv("VERTEX_PROJECT_ID", ""),
		VertexLocation:  getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:     getEnv("VERTEX_MODEL", ""),
	}
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := getEnv(k, ""); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
