package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	DBPath            string
	SessionDir        string
	SessionFallback   string
	SessionKey        string
	SessionDebounceMs int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	OutputDir         string

	ModelAPIURL    string
	ModelName      string
	ModelAPIKey    string
	ModelTimeoutMs int

	TemplateSource      string
	TemplateURL         string
	SyncURL             string
	RemoteTimeoutMs     int
	RemoteRateLimitRPS  int
	ExtractionSheet     string
	TintingSheet        string
	SheetsSpreadsheetID string
	LocalTemplateDir    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool
	RawMailDir   string

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int

	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, errors.Wrap(err, "resolve working directory")
	}

	cfg := Config{
		DBPath:            getEnv("DB_PATH", filepath.Join(cwd, "data", "orderdesk.db")),
		SessionDir:        getEnv("SESSION_DIR", filepath.Join(cwd, "data", "session")),
		SessionFallback:   strings.ToLower(getEnv("SESSION_FALLBACK", "file")),
		SessionKey:        getEnv("SESSION_KEY", "orderdesk.session"),
		SessionDebounceMs: getEnvInt("SESSION_DEBOUNCE_MS", 500),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		OutputDir:         getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ModelAPIURL:    getEnv("MODEL_API_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ModelName:      getEnv("MODEL_NAME", "gemini-2.0-flash"),
		ModelAPIKey:    getEnv("MODEL_API_KEY", ""),
		ModelTimeoutMs: getEnvInt("MODEL_TIMEOUT_MS", 60000),

		TemplateSource:      strings.ToLower(getEnv("TEMPLATE_SOURCE", "http")),
		TemplateURL:         getEnv("TEMPLATE_URL", ""),
		SyncURL:             getEnv("SYNC_URL", ""),
		RemoteTimeoutMs:     getEnvInt("REMOTE_TIMEOUT_MS", 30000),
		RemoteRateLimitRPS:  getEnvInt("REMOTE_RATE_LIMIT_RPS", 5),
		ExtractionSheet:     getEnv("EXTRACTION_SHEET", "Extraction"),
		TintingSheet:        getEnv("TINTING_SHEET", "Tinting"),
		SheetsSpreadsheetID: getEnv("SHEETS_SPREADSHEET_ID", ""),
		LocalTemplateDir:    getEnv("LOCAL_TEMPLATE_DIR", filepath.Join(cwd, "templates")),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),
		RawMailDir:   getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),

		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
