package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabasePath string `json:"database_path"`
	DataDir      string `json:"data_dir"`
	APIPort      string `json:"api_port"`
	LogLevel     string `json:"log_level"`
	CORSOrigins  string `json:"cors_origins"` // comma separated, * means all

	// Scan pipeline
	ScanBatchSize          int  `json:"scan_batch_size"`
	WorkerConcurrency      int  `json:"worker_concurrency"`
	RateLimitCalls         int  `json:"rate_limit_calls"`          // calls per rolling window
	RateLimitWindowSeconds int  `json:"rate_limit_window_seconds"` // rolling window length
	ClassifyTimeoutSeconds int  `json:"classify_timeout_seconds"`
	AutoDraftReplies       bool `json:"auto_draft_replies"`

	// AI classification service
	AIProvider string `json:"ai_provider"`
	AIAPIKey   string `json:"ai_api_key"`
	AIModel    string `json:"ai_model"`
	AIBaseURL  string `json:"ai_base_url"`
	UserName   string `json:"user_name"` // signature name for drafted replies

	// Mailbox provider: "gmail" or "imap"
	MailboxProvider      string `json:"mailbox_provider"`
	GmailCredentialsPath string `json:"gmail_credentials_path"`
	IMAPHost             string `json:"imap_host"`
	IMAPPort             int    `json:"imap_port"`
	IMAPUsername         string `json:"imap_username"`
	IMAPPassword         string `json:"imap_password"`
	IMAPUseSSL           bool   `json:"imap_use_ssl"`
	SMTPHost             string `json:"smtp_host"`
	SMTPPort             int    `json:"smtp_port"`

	// Automation defaults (overridable per run via preferences or flags)
	ArchiveNewsletters bool `json:"archive_newsletters"`
	DeleteSpam         bool `json:"delete_spam"`
	AutoReplyImportant bool `json:"auto_reply_important"`
	CautionMode        bool `json:"caution_mode"`

	// Persistence retry discipline
	StoreMaxRetries int `json:"store_max_retries"`
}

// Default configuration values
const (
	DefaultDatabasePath           = "data/inbox_zero.db"
	DefaultDataDir                = "data"
	DefaultAPIPort                = "8080"
	DefaultLogLevel               = "INFO"
	DefaultCORSOrigins            = "*"
	DefaultScanBatchSize          = 20
	DefaultWorkerConcurrency      = 5
	DefaultRateLimitCalls         = 30
	DefaultRateLimitWindowSeconds = 60
	DefaultClassifyTimeoutSeconds = 30
	DefaultAIProvider             = "openai"
	DefaultMailboxProvider        = "gmail"
	DefaultGmailCredentialsPath   = "credentials.json"
	DefaultIMAPPort               = 993
	DefaultSMTPPort               = 587
	DefaultStoreMaxRetries        = 5
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:           DefaultDatabasePath,
		DataDir:                DefaultDataDir,
		APIPort:                DefaultAPIPort,
		LogLevel:               DefaultLogLevel,
		CORSOrigins:            DefaultCORSOrigins,
		ScanBatchSize:          DefaultScanBatchSize,
		WorkerConcurrency:      DefaultWorkerConcurrency,
		RateLimitCalls:         DefaultRateLimitCalls,
		RateLimitWindowSeconds: DefaultRateLimitWindowSeconds,
		ClassifyTimeoutSeconds: DefaultClassifyTimeoutSeconds,
		AutoDraftReplies:       true,
		AIProvider:             DefaultAIProvider,
		MailboxProvider:        DefaultMailboxProvider,
		GmailCredentialsPath:   DefaultGmailCredentialsPath,
		IMAPPort:               DefaultIMAPPort,
		IMAPUseSSL:             true,
		SMTPPort:               DefaultSMTPPort,
		ArchiveNewsletters:     true,
		DeleteSpam:             true,
		AutoReplyImportant:     false,
		CautionMode:            true,
		StoreMaxRetries:        DefaultStoreMaxRetries,
	}

	// Config file is optional
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	// Override with environment variables
	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}

	setString("INBOX_ZERO_DATABASE_PATH", &c.DatabasePath)
	setString("INBOX_ZERO_DATA_DIR", &c.DataDir)
	setString("INBOX_ZERO_API_PORT", &c.APIPort)
	setString("INBOX_ZERO_LOG_LEVEL", &c.LogLevel)
	setString("INBOX_ZERO_CORS_ORIGINS", &c.CORSOrigins)
	setInt("INBOX_ZERO_SCAN_BATCH_SIZE", &c.ScanBatchSize)
	setInt("INBOX_ZERO_WORKER_CONCURRENCY", &c.WorkerConcurrency)
	setInt("INBOX_ZERO_RATE_LIMIT_CALLS", &c.RateLimitCalls)
	setInt("INBOX_ZERO_RATE_LIMIT_WINDOW_SECONDS", &c.RateLimitWindowSeconds)
	setInt("INBOX_ZERO_CLASSIFY_TIMEOUT_SECONDS", &c.ClassifyTimeoutSeconds)
	setBool("INBOX_ZERO_AUTO_DRAFT_REPLIES", &c.AutoDraftReplies)
	setString("INBOX_ZERO_AI_PROVIDER", &c.AIProvider)
	setString("INBOX_ZERO_AI_API_KEY", &c.AIAPIKey)
	setString("INBOX_ZERO_AI_MODEL", &c.AIModel)
	setString("INBOX_ZERO_AI_BASE_URL", &c.AIBaseURL)
	setString("INBOX_ZERO_USER_NAME", &c.UserName)
	setString("INBOX_ZERO_MAILBOX_PROVIDER", &c.MailboxProvider)
	setString("INBOX_ZERO_GMAIL_CREDENTIALS_PATH", &c.GmailCredentialsPath)
	setString("INBOX_ZERO_IMAP_HOST", &c.IMAPHost)
	setInt("INBOX_ZERO_IMAP_PORT", &c.IMAPPort)
	setString("INBOX_ZERO_IMAP_USERNAME", &c.IMAPUsername)
	setString("INBOX_ZERO_IMAP_PASSWORD", &c.IMAPPassword)
	setBool("INBOX_ZERO_IMAP_USE_SSL", &c.IMAPUseSSL)
	setString("INBOX_ZERO_SMTP_HOST", &c.SMTPHost)
	setInt("INBOX_ZERO_SMTP_PORT", &c.SMTPPort)
	setBool("INBOX_ZERO_ARCHIVE_NEWSLETTERS", &c.ArchiveNewsletters)
	setBool("INBOX_ZERO_DELETE_SPAM", &c.DeleteSpam)
	setBool("INBOX_ZERO_AUTO_REPLY_IMPORTANT", &c.AutoReplyImportant)
	setBool("INBOX_ZERO_CAUTION_MODE", &c.CautionMode)
	setInt("INBOX_ZERO_STORE_MAX_RETRIES", &c.StoreMaxRetries)
}

// ClassifyTimeout returns the per-message classification timeout
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSeconds) * time.Second
}

// RateLimitWindow returns the rolling rate-limit window length
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
