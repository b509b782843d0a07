package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string
	AdminToken    string
	ClinicName    string

	// Reminder pipeline
	UseMemoryQueue     bool
	ReminderQueueURL   string
	WorkerCount        int
	SendRatePerSecond  float64
	SendBurst          int
	MaxSendAttempts    int
	RetryBaseDelay     time.Duration
	SchedulerInterval  time.Duration
	SchedulerLookback  time.Duration
	VoiceCallLead      time.Duration
	WebhookRatePerSec  float64
	WebhookRateBurst   int

	// WhatsApp provider
	WhatsAppAPIKey     string
	WhatsAppBaseURL    string
	WhatsAppFromNumber string

	// Voice agent provider
	VoiceAPIKey        string
	VoiceBaseURL       string
	VoiceAgentID       string
	VoiceFromNumber    string
	VoiceWebhookSecret string
	VoiceWebhookSkew   time.Duration

	// Operator alerts
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	AlertEmail        string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables. A local .env file is
// honored when present so development matches docker-compose defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		ClinicName:    getEnv("CLINIC_NAME", "CitaSalud"),

		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		ReminderQueueURL:  getEnv("REMINDER_QUEUE_URL", ""),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),
		SendRatePerSecond: getEnvAsFloat("SEND_RATE_PER_SECOND", 2),
		SendBurst:         getEnvAsInt("SEND_BURST", 5),
		MaxSendAttempts:   getEnvAsInt("MAX_SEND_ATTEMPTS", 4),
		RetryBaseDelay:    getEnvAsDuration("RETRY_BASE_DELAY", 30*time.Second),
		SchedulerInterval: getEnvAsDuration("SCHEDULER_INTERVAL", 5*time.Minute),
		SchedulerLookback: getEnvAsDuration("SCHEDULER_LOOKBACK", 24*time.Hour),
		VoiceCallLead:     getEnvAsDuration("VOICE_CALL_LEAD", 2*time.Hour),
		WebhookRatePerSec: getEnvAsFloat("WEBHOOK_RATE_PER_SECOND", 10),
		WebhookRateBurst:  getEnvAsInt("WEBHOOK_RATE_BURST", 30),

		WhatsAppAPIKey:     getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppBaseURL:    getEnv("WHATSAPP_BASE_URL", ""),
		WhatsAppFromNumber: getEnv("WHATSAPP_FROM_NUMBER", ""),

		VoiceAPIKey:        getEnv("VOICE_API_KEY", ""),
		VoiceBaseURL:       getEnv("VOICE_BASE_URL", ""),
		VoiceAgentID:       getEnv("VOICE_AGENT_ID", ""),
		VoiceFromNumber:    getEnv("VOICE_FROM_NUMBER", ""),
		VoiceWebhookSecret: getEnv("VOICE_WEBHOOK_SECRET", ""),
		VoiceWebhookSkew:   getEnvAsDuration("VOICE_WEBHOOK_MAX_SKEW", 30*time.Minute),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CitaSalud"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		AlertEmail:        getEnv("ALERT_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
