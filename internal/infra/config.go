package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	GitHubToken      string
	GitHubOwner      string
	GitHubRepo       string
	GitHubBranch     string
	GitHubRepoPrefix string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	StoragePath   string
	WatermarkText string
	AdminToken    string

	ArtifactLookbackDays int
	JobTimeout           time.Duration
	CelebrityCacheTTL    time.Duration
	TemplateCacheTTL     time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:      os.Getenv("GITHUB_OWNER"),
		GitHubRepo:       getEnv("GITHUB_REPO", "fanai-celebs"),
		GitHubBranch:     getEnv("GITHUB_BRANCH", "main"),
		GitHubRepoPrefix: getEnv("GITHUB_REPO_PREFIX", "fanai-celebs"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		StoragePath:   getEnv("STORAGE_PATH", "./uploads"),
		WatermarkText: getEnv("WATERMARK_TEXT", "FanAI"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),

		ArtifactLookbackDays: getEnvInt("ARTIFACT_LOOKBACK_DAYS", 7),
		JobTimeout:           time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 300)),
		CelebrityCacheTTL:    time.Second * time.Duration(getEnvInt("CELEBRITY_CACHE_TTL_SECONDS", 86400)),
		TemplateCacheTTL:     time.Second * time.Duration(getEnvInt("TEMPLATE_CACHE_TTL_SECONDS", 43200)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GitHubToken == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is required")
	}

	if cfg.GitHubOwner == "" {
		return nil, fmt.Errorf("GITHUB_OWNER is required")
	}

	if cfg.ArtifactLookbackDays < 1 {
		cfg.ArtifactLookbackDays = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
