package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/matcher"
)

const (
	defaultTimezone = "Asia/Shanghai"
	configPathEnv   = "HEADLINE_RADAR_CONFIG"
	envPrefix       = "HEADLINE_RADAR"
)

// History backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig         `yaml:"logging"`
	Scheduler     SchedulerConfig       `yaml:"scheduler"`
	Report        ReportConfig          `yaml:"report"`
	History       HistoryConfig         `yaml:"history"`
	Database      DatabaseConfig        `yaml:"database"`
	Redis         RedisConfig           `yaml:"redis"`
	Fetch         FetchConfig           `yaml:"fetch"`
	Platforms     []PlatformConfig      `yaml:"platforms"`
	Keywords      []domain.KeywordGroup `yaml:"keywords"`
	KeywordsFile  string                `yaml:"keywords_file"`
	Notifications NotificationConfig    `yaml:"notifications"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines how often a cycle runs.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReportConfig controls the window mode and output.
type ReportConfig struct {
	Mode          string `yaml:"mode"`
	RankThreshold int    `yaml:"rank_threshold"`
	OutputDir     string `yaml:"output_dir"`
}

// WindowMode parses Mode.
func (r ReportConfig) WindowMode() (domain.WindowMode, error) {
	return domain.ParseWindowMode(r.Mode)
}

// HistoryConfig picks and tunes the cross-window history store.
type HistoryConfig struct {
	Backend           string        `yaml:"backend"`
	Path              string        `yaml:"path"`
	ContinuityHorizon time.Duration `yaml:"continuity_horizon"`
	Retention         time.Duration `yaml:"retention"`
	CheckpointPath    string        `yaml:"checkpoint_path"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// RedisConfig describes the Redis history backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// FetchConfig bounds platform polling.
type FetchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

// PlatformConfig describes a single platform with its fetcher strategy.
type PlatformConfig struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Fetcher string            `yaml:"fetcher"`
	URL     string            `yaml:"url"`
	Options map[string]string `yaml:"options"`
}

// DisplayName falls back to the id.
func (p PlatformConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	NATS     NATSConfig     `yaml:"nats"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// WebhookConfig posts the report JSON to URL.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// NATSConfig publishes the report JSON on Subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type envOverrides struct {
	LogLevel         string        `envconfig:"LOG_LEVEL"`
	LogFormat        string        `envconfig:"LOG_FORMAT"`
	Interval         time.Duration `envconfig:"INTERVAL"`
	Timezone         string        `envconfig:"TIMEZONE"`
	ReportMode       string        `envconfig:"REPORT_MODE"`
	OutputDir        string        `envconfig:"OUTPUT_DIR"`
	HistoryBackend   string        `envconfig:"HISTORY_BACKEND"`
	HistoryPath      string        `envconfig:"HISTORY_PATH"`
	DatabaseDSN      string        `envconfig:"DATABASE_DSN"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD"`
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `envconfig:"TELEGRAM_CHAT_ID"`
	WebhookURL       string        `envconfig:"WEBHOOK_URL"`
	NATSURL          string        `envconfig:"NATS_URL"`
}

// Load reads .env, the YAML file at path (or the one named by
// HEADLINE_RADAR_CONFIG when path is empty) and environment overrides, then
// validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	return LoadFile(path)
}

// LoadFile is Load without the .env step, reading path when non-empty.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.KeywordsFile != "" && !filepath.IsAbs(cfg.KeywordsFile) {
			cfg.KeywordsFile = filepath.Join(filepath.Dir(path), cfg.KeywordsFile)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.loadKeywordsFile(); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a cycle.
func (c *Config) Validate() error {
	if _, err := c.Report.WindowMode(); err != nil {
		return err
	}
	switch c.History.Backend {
	case BackendFile:
		if c.History.Path == "" {
			return errors.New("history.path is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if len(c.Keywords) == 0 {
		return errors.New("at least one keyword group must be configured")
	}
	for i, g := range c.Keywords {
		if len(g.IncludeTerms) == 0 {
			return fmt.Errorf("keyword group %d has no include terms", i)
		}
	}
	if len(c.Platforms) == 0 {
		return errors.New("at least one platform must be configured")
	}
	seen := make(map[string]struct{}, len(c.Platforms))
	for _, p := range c.Platforms {
		if p.ID == "" {
			return errors.New("platform id is required")
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("platform %s is configured twice", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}
	return nil
}

// PlatformOrder lists platform ids in configured order.
func (c *Config) PlatformOrder() []string {
	ids := make([]string, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		ids = append(ids, p.ID)
	}
	return ids
}

// KeywordGroups applies the report-wide rank threshold to groups without one
// and labels unnamed groups with their first include term.
func (c *Config) KeywordGroups() []domain.KeywordGroup {
	groups := make([]domain.KeywordGroup, len(c.Keywords))
	copy(groups, c.Keywords)
	for i := range groups {
		if groups[i].RankThreshold <= 0 {
			groups[i].RankThreshold = c.Report.RankThreshold
		}
		if groups[i].Word == "" && len(groups[i].IncludeTerms) > 0 {
			groups[i].Word = groups[i].IncludeTerms[0]
		}
	}
	return groups
}

func (c *Config) applyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}

	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.Format, env.LogFormat)
	setString(&c.Scheduler.Timezone, env.Timezone)
	setString(&c.Report.Mode, env.ReportMode)
	setString(&c.Report.OutputDir, env.OutputDir)
	setString(&c.History.Backend, env.HistoryBackend)
	setString(&c.History.Path, env.HistoryPath)
	setString(&c.Database.DSN, env.DatabaseDSN)
	setString(&c.Redis.Addr, env.RedisAddr)
	setString(&c.Redis.Password, env.RedisPassword)
	setString(&c.Notifications.Telegram.BotToken, env.TelegramBotToken)
	setString(&c.Notifications.Telegram.ChatID, env.TelegramChatID)
	setString(&c.Notifications.Webhook.URL, env.WebhookURL)
	setString(&c.Notifications.NATS.URL, env.NATSURL)
	if env.Interval > 0 {
		c.Scheduler.Interval = env.Interval
	}
	return nil
}

func (c *Config) loadKeywordsFile() error {
	if c.KeywordsFile == "" {
		return nil
	}
	groups, err := matcher.LoadGroupsFile(c.KeywordsFile)
	if err != nil {
		return fmt.Errorf("keywords file: %w", err)
	}
	c.Keywords = append(c.Keywords, groups...)
	return nil
}

func (c *Config) bindTimezone() error {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Interval: 30 * time.Minute, Timezone: defaultTimezone},
		Report: ReportConfig{
			Mode:          string(domain.ModeDaily),
			RankThreshold: domain.DefaultRankThreshold,
			OutputDir:     "output",
		},
		History: HistoryConfig{
			Backend:           BackendFile,
			Path:              "data/history.json",
			ContinuityHorizon: 24 * time.Hour,
			Retention:         7 * 24 * time.Hour,
			CheckpointPath:    "data/window.json",
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: "headlineradar:history"},
		Fetch: FetchConfig{
			Concurrency: 4,
			Timeout:     15 * time.Second,
			UserAgent:   "HeadlineRadar/1.0",
		},
		Platforms: []PlatformConfig{
			{ID: "toutiao", Name: "今日头条", Fetcher: "newsnow", URL: "https://newsnow.busiyi.world"},
			{ID: "baidu", Name: "百度热搜", Fetcher: "newsnow", URL: "https://newsnow.busiyi.world"},
			{ID: "weibo", Name: "微博", Fetcher: "newsnow", URL: "https://newsnow.busiyi.world"},
			{ID: "zhihu", Name: "知乎", Fetcher: "newsnow", URL: "https://newsnow.busiyi.world"},
		},
		Notifications: NotificationConfig{
			NATS: NATSConfig{Subject: "headlineradar.reports"},
		},
	}
}
