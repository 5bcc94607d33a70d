package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the orchestrator
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// WebSocket tuning (media stream + diagnostics)
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Speech backend
	SpeechBackendURL string
	SpeechBackendKey string
	DefaultVoice     string

	// Turn-taking / idle policy
	SilenceWindow      time.Duration
	SilencePromptLimit int
	HangupGrace        time.Duration

	// Transfer dialing
	DialTimeout time.Duration

	// Booking
	BookingScanStep    time.Duration
	BookingScanHorizon time.Duration

	// Collaborator endpoints
	RedisAddr         string
	PostgresURL       string
	DirectoryFixture  string // path to YAML fixture directory (dev)
	GoogleCredentials string // path to Google service account / oauth token
	NotifyFrom        string

	// Telephony gateway REST API
	GatewayBaseURL   string
	GatewayAccountID string
	GatewayAuthToken string

	// Externally reachable base URL of this server, used in callback URLs
	// handed to the gateway (e.g. https://voice.example.com)
	PublicBaseURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		SpeechBackendURL:  getEnv("SPEECH_BACKEND_URL", "wss://api.openai.com/v1/realtime"),
		SpeechBackendKey:  getEnv("SPEECH_BACKEND_KEY", ""),
		DefaultVoice:      getEnv("DEFAULT_VOICE", "alloy"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		PostgresURL:       getEnv("POSTGRES_URL", ""),
		DirectoryFixture:  getEnv("DIRECTORY_FIXTURE", ""),
		GoogleCredentials: getEnv("GOOGLE_CREDENTIALS", ""),
		NotifyFrom:        getEnv("NOTIFY_FROM", ""),
		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", ""),
		GatewayAccountID:  getEnv("GATEWAY_ACCOUNT_ID", ""),
		GatewayAuthToken:  getEnv("GATEWAY_AUTH_TOKEN", ""),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	var err error
	if config.WSReadTimeout, err = getEnvSeconds("WS_READ_TIMEOUT", 60); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = getEnvSeconds("WS_WRITE_TIMEOUT", 10); err != nil {
		return nil, err
	}
	if config.SilenceWindow, err = getEnvSeconds("SILENCE_WINDOW", 15); err != nil {
		return nil, err
	}
	if config.HangupGrace, err = getEnvSeconds("HANGUP_GRACE", 3); err != nil {
		return nil, err
	}
	if config.DialTimeout, err = getEnvSeconds("DIAL_TIMEOUT", 25); err != nil {
		return nil, err
	}

	promptLimit, err := strconv.Atoi(getEnv("SILENCE_PROMPT_LIMIT", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid SILENCE_PROMPT_LIMIT: %w", err)
	}
	config.SilencePromptLimit = promptLimit

	scanStep, err := strconv.Atoi(getEnv("BOOKING_SCAN_STEP_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_SCAN_STEP_MINUTES: %w", err)
	}
	config.BookingScanStep = time.Duration(scanStep) * time.Minute

	scanHorizon, err := strconv.Atoi(getEnv("BOOKING_SCAN_HORIZON_HOURS", "72"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_SCAN_HORIZON_HOURS: %w", err)
	}
	config.BookingScanHorizon = time.Duration(scanHorizon) * time.Hour

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 1 << 20 // media frames are base64 audio

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

func getEnvSeconds(key string, def int) (time.Duration, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(v) * time.Second, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
