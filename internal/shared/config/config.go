package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// WebhookKey is a named shared secret for inbound webhook callers.
type WebhookKey struct {
	Session string
	Secret  string
}

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	DatabaseURL     string
	Env             string

	// External grain analysis service.
	AnalysisBaseURL string
	AnalysisToken   string
	AnalysisTimeout time.Duration

	// Base URL this deployment is reachable at; used to derive image URLs
	// and the webhook callback URL sent to the analysis service.
	PublicBaseURL string
	CallbackPath  string

	// Named shared secrets accepted on the inbound webhook, plus the
	// sessions permitted to deliver analysis results.
	WebhookKeys            []WebhookKey
	WebhookAllowedSessions []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string

	// Per-principal token-bucket limit on classification submissions.
	// A zero burst disables the limit.
	SubmitRatePerSec float64
	SubmitBurst      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                   getEnv("PORT", "8080"),
		CORSAllowOrigin:        splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:        normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:          getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:              getEnv("AWS_REGION", ""),
		S3Bucket:               getEnv("S3_BUCKET", ""),
		S3Prefix:               getEnv("S3_PREFIX", ""),
		DatabaseURL:            dbURL,
		Env:                    env,
		AnalysisBaseURL:        strings.TrimRight(getEnv("ANALYSIS_BASE_URL", ""), "/"),
		AnalysisToken:          getEnv("ANALYSIS_API_TOKEN", ""),
		AnalysisTimeout:        getDuration("ANALYSIS_TIMEOUT", 30*time.Second),
		PublicBaseURL:          strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CallbackPath:           getEnv("WEBHOOK_CALLBACK_PATH", "/webhook/analyze"),
		WebhookKeys:            parseWebhookKeys(getEnv("WEBHOOK_KEYS", "")),
		WebhookAllowedSessions: splitAndTrim(getEnv("WEBHOOK_ALLOWED_SESSIONS", "")),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:      getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:          getEnv("UI_REDIRECT_URL", ""),
		SubmitRatePerSec:       getFloat("SUBMIT_RATE_PER_SEC", 0.5),
		SubmitBurst:            getInt("SUBMIT_BURST", 5),
	}
}

// CallbackURL returns the absolute URL the analysis service should POST
// results back to.
func (c Config) CallbackURL() string {
	path := c.CallbackPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.PublicBaseURL + path
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config env %s invalid number: %v", key, err)
		return def
	}
	return val
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid number: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseWebhookKeys parses "session:secret,session2:secret2" pairs. Entries
// without a secret are dropped.
func parseWebhookKeys(raw string) []WebhookKey {
	var out []WebhookKey
	for _, entry := range splitAndTrim(raw) {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			log.Printf("config WEBHOOK_KEYS entry missing secret: %q", parts[0])
			continue
		}
		session := strings.TrimSpace(parts[0])
		secret := strings.TrimSpace(parts[1])
		if session == "" || secret == "" {
			continue
		}
		out = append(out, WebhookKey{Session: session, Secret: secret})
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
