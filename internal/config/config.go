package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Progress reset scopes for "switch student"
const (
	ResetScopeSession = "session"
	ResetScopeStudent = "student"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	// Remote tutoring service
	TutorAPIURL       string
	IdentityTimeout   time.Duration
	ChatTimeout       time.Duration
	TutorClientID     string
	TutorClientSecret string
	TutorTokenURL     string

	// Session storage
	SessionStore    string
	DatabasePath    string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SessionDuration time.Duration
	SessionSecret   string

	ProgressResetScope      string
	RegistrationSettleDelay time.Duration

	StaticFilesPath string
	TemplatesPath   string
	MigrationsPath  string
	DevMode         bool

	// TrustProxy makes the rate limiter key on the address a reverse proxy
	// appends to X-Forwarded-For instead of the TCP peer
	TrustProxy bool

	// Email
	AppBaseURL   string
	AWSRegion    string
	SESFromEmail string
	SESFromName  string

	Debug bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	return &Config{
		ServerPort: getEnv("PORT", "8080"),

		TutorAPIURL:       strings.TrimRight(getEnv("TUTOR_API_URL", "https://web-production-a4ec.up.railway.app"), "/"),
		IdentityTimeout:   getDuration("TUTOR_IDENTITY_TIMEOUT", 10*time.Second),
		ChatTimeout:       getDuration("TUTOR_CHAT_TIMEOUT", 30*time.Second),
		TutorClientID:     os.Getenv("TUTOR_CLIENT_ID"),
		TutorClientSecret: os.Getenv("TUTOR_CLIENT_SECRET"),
		TutorTokenURL:     os.Getenv("TUTOR_TOKEN_URL"),

		SessionStore:    strings.ToLower(getEnv("SESSION_STORE", "memory")),
		DatabasePath:    getEnv("DB_PATH", "./nia.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getInt("REDIS_DB", 0),
		SessionDuration: getDuration("SESSION_DURATION", 24*time.Hour),
		SessionSecret:   os.Getenv("SESSION_SECRET"),

		ProgressResetScope:      getResetScope("PROGRESS_RESET_SCOPE"),
		RegistrationSettleDelay: getDuration("REGISTRATION_SETTLE_DELAY", 3*time.Second),

		StaticFilesPath: getEnv("STATIC_PATH", "./static"),
		TemplatesPath:   getEnv("TEMPLATES_PATH", "./internal/templates"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		DevMode:         getBool("DEV_MODE"),
		TrustProxy:      getBool("TRUST_PROXY"),

		AppBaseURL:   strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: os.Getenv("SES_FROM_EMAIL"),
		SESFromName:  getEnv("SES_FROM_NAME", "Nia"),

		Debug: getBool("DEBUG"),
	}
}

// TutorAuthEnabled reports whether client-credentials auth is configured
func (c *Config) TutorAuthEnabled() bool {
	return c.TutorClientID != "" && c.TutorClientSecret != "" && c.TutorTokenURL != ""
}

// TutorHTTPTimeout bounds a whole tutoring service request, which may be an
// identity call or a chat call
func (c *Config) TutorHTTPTimeout() time.Duration {
	return max(c.IdentityTimeout, c.ChatTimeout)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func getResetScope(key string) string {
	switch scope := strings.ToLower(os.Getenv(key)); scope {
	case "", ResetScopeSession:
		return ResetScopeSession
	case ResetScopeStudent:
		return ResetScopeStudent
	default:
		log.Printf("Warning: invalid %s %q, using %s", key, scope, ResetScopeSession)
		return ResetScopeSession
	}
}
