package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	Env           string
	DatabasePath  string
	SessionSecret string
	GinMode       string
	TemplateGlob  string
	StaticDir     string
	UploadDir     string
	UploadURLPath string
	SiteBaseURL   string
	ContentPath   string

	TableBackend   string
	StorageBackend string
	AuthBackend    string
	CallTimeout    time.Duration

	Supabase SupabaseConfig
	Postgres PostgresConfig
	S3       S3Config
	Redis    RedisConfig
	SMTP     SMTPConfig

	AdminEmail    string
	AdminPassword string

	ContactRateLimit int
}

// SupabaseConfig describes the hosted backend project.
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	Table          string
	RolesTable     string
	Bucket         string
}

// PostgresConfig points at a direct Postgres connection for the gallery table.
type PostgresConfig struct {
	DSN string
}

// S3Config holds S3-compatible storage settings.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	BasePath        string
	ForcePathStyle  bool
}

// RedisConfig is optional; an empty Addr disables rate limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig is optional; an empty Host disables mail delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	To       string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := envOr("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		Env:           envOr("APP_ENV", "production"),
		DatabasePath:  envOr("DATABASE_PATH", "folio.db"),
		SessionSecret: envOr("SESSION_SECRET", "folio-dev-secret"),
		GinMode:       envOr("GIN_MODE", "release"),
		TemplateGlob:  envOr("TEMPLATE_GLOB", "web/template/*.html"),
		StaticDir:     envOr("STATIC_DIR", "web/static"),
		UploadDir:     envOr("UPLOAD_DIR", "web/static/uploads"),
		UploadURLPath: envOr("UPLOAD_URL_PATH", "/static/uploads"),
		SiteBaseURL:   strings.TrimRight(envOr("SITE_BASE_URL", "http://localhost:8080"), "/"),
		ContentPath:   strings.TrimSpace(os.Getenv("CONTENT_PATH")),

		TableBackend:   normalizeBackend(os.Getenv("TABLE_BACKEND")),
		StorageBackend: normalizeBackend(os.Getenv("STORAGE_BACKEND")),
		AuthBackend:    normalizeBackend(os.Getenv("AUTH_BACKEND")),
		CallTimeout:    envDuration("REMOTE_CALL_TIMEOUT", 15*time.Second),

		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
			AnonKey:        strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
			ServiceRoleKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
			JWTSecret:      strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET")),
			Table:          envOr("SUPABASE_TABLE", "design_works"),
			RolesTable:     envOr("SUPABASE_ROLES_TABLE", "user_roles"),
			Bucket:         envOr("SUPABASE_BUCKET", "design-images"),
		},
		Postgres: PostgresConfig{
			DSN: strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		},
		S3: S3Config{
			Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:          envOr("S3_REGION", "us-east-1"),
			AccessKeyID:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			SecretAccessKey: strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
			Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
			PublicBaseURL:   strings.TrimRight(strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL")), "/"),
			BasePath:        strings.TrimSpace(os.Getenv("S3_BASE_PATH")),
			ForcePathStyle:  envBool("S3_FORCE_PATH_STYLE", false),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Port:     envOr("SMTP_PORT", "587"),
			User:     strings.TrimSpace(os.Getenv("SMTP_USER")),
			Password: os.Getenv("SMTP_PASS"),
			From:     strings.TrimSpace(os.Getenv("SMTP_FROM")),
			To:       strings.TrimSpace(os.Getenv("CONTACT_TO_EMAIL")),
		},

		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),

		ContactRateLimit: envInt("CONTACT_RATE_LIMIT", 5),
	}
}

// IsDevelopment reports whether APP_ENV selects developer-friendly output.
func (c AppConfig) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return BackendLocal
	}
	return value
}
