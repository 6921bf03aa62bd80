package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/unjobsworker/pkg/errors"
)

// Snapshot backends
const (
	SnapshotFile     = "file"
	SnapshotRedis    = "redis"
	SnapshotSQLite   = "sqlite"
	SnapshotPostgres = "postgres"
)

// Fetcher kinds
const (
	FetcherHTTP  = "http"
	FetcherColly = "colly"
)

// SourceConfig holds the settings of one job source
type SourceConfig struct {
	Enabled  bool
	URL      string
	MaxPages int
}

// Config represents the application configuration
type Config struct {
	Environment string

	// Schedule
	CrawlInterval time.Duration
	RunOnce       bool

	// Sources
	CareersUN        SourceConfig
	UNJobs           SourceConfig
	UNTalent         SourceConfig
	UNTalentRetries  int
	UNTalentRetryGap time.Duration
	RegionsFile      string

	// Fetcher
	Fetcher        string
	FetchTimeout   time.Duration
	FetchRate      float64
	FetchBurst     int
	ProxyURL       string
	RateLimitBlock time.Duration

	// Files
	OutputFile  string
	InputFile   string
	NewJobsFile string

	// Snapshot store
	SnapshotBackend string
	SnapshotFile    string
	SnapshotDSN     string
	SnapshotKey     string

	// Classification
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIPromptID      string
	OpenAIPromptVersion string
	ClassifyBatchSize   int
	ClassifyConcurrency int

	// Email notification
	NotifyEmail        string
	SMTPUser           string
	SMTPPass           string
	SMTPHost           string
	SMTPPort           int
	SMTPKeyringAccount string

	// Telegram notification
	TelegramToken  string
	TelegramChatID int64

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Elasticsearch configuration
	ElasticsearchURLs  []string
	ElasticsearchIndex string

	// Status server
	StatusAddr string

	// ErrorLogFile, when set, also receives every logged run error
	ErrorLogFile string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Environment: getEnv("UNJOBS_ENVIRONMENT", "development"),

		CrawlInterval: time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 3600)) * time.Second,
		RunOnce:       getEnvBool("RUN_ONCE", true),

		CareersUN: SourceConfig{
			Enabled:  getEnvBool("CAREERSUN_ENABLED", true),
			URL:      getEnv("CAREERSUN_URL", "https://careers.un.org/api/public/opening/jo/list/filteredV2/en"),
			MaxPages: getEnvInt("CAREERSUN_MAX_PAGES", 100),
		},
		UNJobs: SourceConfig{
			Enabled:  getEnvBool("UNJOBS_ENABLED", true),
			URL:      getEnv("UNJOBS_URL", "https://unjobs.org"),
			MaxPages: getEnvInt("UNJOBS_MAX_PAGES", 100),
		},
		UNTalent: SourceConfig{
			Enabled:  getEnvBool("UNTALENT_ENABLED", true),
			URL:      getEnv("UNTALENT_URL", "https://untalent.org/jobs"),
			MaxPages: getEnvInt("UNTALENT_MAX_PAGES", 50),
		},
		UNTalentRetries:  getEnvInt("UNTALENT_MAX_RETRIES", 10),
		UNTalentRetryGap: time.Duration(getEnvInt("UNTALENT_RETRY_DELAY_SECONDS", 5)) * time.Second,
		RegionsFile:      getEnv("REGIONS_FILE", ""),

		Fetcher:        strings.ToLower(getEnv("FETCHER", FetcherHTTP)),
		FetchTimeout:   time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchRate:      getEnvFloat("FETCH_RATE_PER_SECOND", 1),
		FetchBurst:     getEnvInt("FETCH_BURST", 2),
		ProxyURL:       getEnv("PROXY_URL", ""),
		RateLimitBlock: time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 600)) * time.Second,

		OutputFile:  getEnv("OUTPUT_FILE", ""),
		InputFile:   getEnv("INPUT_FILE", ""),
		NewJobsFile: getEnv("NEW_JOBS_FILE", ""),

		SnapshotBackend: strings.ToLower(getEnv("SNAPSHOT_BACKEND", SnapshotFile)),
		SnapshotFile:    getEnv("SNAPSHOT_FILE", "jobs.json"),
		SnapshotDSN:     getEnv("SNAPSHOT_DSN", ""),
		SnapshotKey:     getEnv("SNAPSHOT_KEY", "unjobsworker:snapshot"),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIPromptID:      getEnv("OPENAI_PROMPT_ID", ""),
		OpenAIPromptVersion: getEnv("OPENAI_PROMPT_VERSION", ""),
		ClassifyBatchSize:   getEnvInt("CLASSIFY_BATCH_SIZE", 20),
		ClassifyConcurrency: getEnvInt("CLASSIFY_CONCURRENCY", 1),

		NotifyEmail:        getEnv("NOTIFY_EMAIL", ""),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPass:           getEnv("SMTP_PASS", ""),
		SMTPHost:           getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPKeyringAccount: getEnv("SMTP_KEYRING_ACCOUNT", ""),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "unjobs"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		ElasticsearchURLs:  splitList(getEnv("ELASTICSEARCH_URL", "")),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "unjobs"),

		StatusAddr: getEnv("STATUS_ADDR", ""),

		ErrorLogFile: getEnv("ERROR_LOG_FILE", ""),
	}
}

// Validate checks the configuration for values the worker cannot run with
func (c *Config) Validate() error {
	if !c.CareersUN.Enabled && !c.UNJobs.Enabled && !c.UNTalent.Enabled && c.InputFile == "" {
		return errors.NewConfiguration("no source enabled and no input file given", nil)
	}
	for name, src := range map[string]SourceConfig{"careersun": c.CareersUN, "unjobs": c.UNJobs, "untalent": c.UNTalent} {
		if src.Enabled && src.MaxPages <= 0 {
			return errors.NewConfiguration(fmt.Sprintf("%s max pages must be positive", name), nil)
		}
		if src.Enabled && src.URL == "" {
			return errors.NewConfiguration(fmt.Sprintf("%s url is empty", name), nil)
		}
	}
	if c.UNTalentRetries <= 0 {
		return errors.NewConfiguration("untalent retries must be positive", nil)
	}
	if !c.RunOnce && c.CrawlInterval <= 0 {
		return errors.NewConfiguration("crawl interval must be positive", nil)
	}
	if c.ClassifyBatchSize <= 0 {
		return errors.NewConfiguration("classify batch size must be positive", nil)
	}

	switch c.Fetcher {
	case FetcherHTTP, FetcherColly:
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown fetcher %q", c.Fetcher), nil)
	}

	switch c.SnapshotBackend {
	case SnapshotFile:
		if c.SnapshotFile == "" {
			return errors.NewConfiguration("snapshot file is empty", nil)
		}
	case SnapshotRedis:
		if c.RedisAddr == "" {
			return errors.NewConfiguration("redis snapshot backend requires REDIS_ADDR", nil)
		}
	case SnapshotSQLite, SnapshotPostgres:
		if c.SnapshotDSN == "" {
			return errors.NewConfiguration(c.SnapshotBackend+" snapshot backend requires SNAPSHOT_DSN", nil)
		}
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown snapshot backend %q", c.SnapshotBackend), nil)
	}

	if c.NotifyEmail != "" && c.SMTPUser == "" {
		return errors.NewConfiguration("email notification requires SMTP_USER", nil)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return errors.NewConfiguration("telegram notification requires TELEGRAM_CHAT_ID", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
