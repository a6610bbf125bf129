// Package config loads bot configuration from an optional YAML file, a .env
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every structured environment variable,
// e.g. NEWSBOT_DISCORD_TOKEN.
const EnvPrefix = "NEWSBOT"

// ErrMissingToken is reported by Validate when no Discord token is set.
var ErrMissingToken = errors.New("config: discord token is not set (NEWSBOT_DISCORD_TOKEN or DISCORD_TOKEN)")

// Config represents the complete application configuration.
type Config struct {
	Discord    DiscordConfig    `mapstructure:"discord"    yaml:"discord"`
	Sources    SourcesConfig    `mapstructure:"sources"    yaml:"sources"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   yaml:"schedule"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// DiscordConfig holds delivery settings.
type DiscordConfig struct {
	Token        string        `mapstructure:"token"         yaml:"token"`
	ChannelIDs   []string      `mapstructure:"channel_ids"   yaml:"channel_ids"`   // empty: discover by topic
	ChannelTopic string        `mapstructure:"channel_topic" yaml:"channel_topic"` // substring of the channel topic
	SendDelay    time.Duration `mapstructure:"send_delay"    yaml:"send_delay"`
}

// SourcesConfig holds news API settings.
type SourcesConfig struct {
	CommunityURL string        `mapstructure:"community_url" yaml:"community_url"`
	NewsURL      string        `mapstructure:"news_url"      yaml:"news_url"`
	PageSize     int           `mapstructure:"page_size"     yaml:"page_size"`
	RateLimit    float64       `mapstructure:"rate_limit"    yaml:"rate_limit"` // requests per second, 0 = unlimited
	RSSFeeds     []string      `mapstructure:"rss_feeds"     yaml:"rss_feeds"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"  yaml:"http_timeout"`
}

// ScheduleConfig holds cycle intervals.
type ScheduleConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"    yaml:"poll_interval"`
	ReportInterval time.Duration `mapstructure:"report_interval"  yaml:"report_interval"`
	ReportMaxItems int           `mapstructure:"report_max_items" yaml:"report_max_items"`
}

// ClassifierConfig holds news classification settings.
type ClassifierConfig struct {
	BreakingKeywords       []string `mapstructure:"breaking_keywords"        yaml:"breaking_keywords"`
	ImportantLikeThreshold int      `mapstructure:"important_like_threshold" yaml:"important_like_threshold"`
}

// CacheConfig holds dedup cache locations.
type CacheConfig struct {
	Dir       string `mapstructure:"dir"        yaml:"dir"`
	BackupDir string `mapstructure:"backup_dir" yaml:"backup_dir"`
}

// LLMConfig holds summarizer provider configuration.
type LLMConfig struct {
	Primary       string        `mapstructure:"primary"         yaml:"primary"` // "gemini" or "openai"
	Model         string        `mapstructure:"model"           yaml:"model"`
	GeminiKey     string        `mapstructure:"gemini_key"      yaml:"gemini_key"`
	OpenAIKey     string        `mapstructure:"openai_key"      yaml:"openai_key"`
	OpenAIBaseURL string        `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	Temperature   float64       `mapstructure:"temperature"     yaml:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"      yaml:"max_tokens"`
	MaxRetries    int           `mapstructure:"max_retries"     yaml:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"         yaml:"timeout"`
}

// Enabled reports whether any provider key is configured.
func (c LLMConfig) Enabled() bool {
	return c.GeminiKey != "" || c.OpenAIKey != ""
}

// APIConfig holds the status server settings.
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled"      yaml:"enabled"`
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns host:port.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration.
// Config file search order:
//  1. ./config.yaml
//  2. ./config/config.yaml
//  3. ~/.newsbot/config.yaml
//
// A .env file in the working directory is loaded first; variables already
// set in the environment win over it. Environment variables override file
// values: NEWSBOT_<SECTION>_<KEY>, plus the unprefixed names listed in
// overrideFromEnv.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".newsbot"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := overrideFromEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultBreakingKeywords mirrors the classifier defaults.
var DefaultBreakingKeywords = []string{"속보", "긴급", "중요", "특보", "긴급속보", "특별속보"}

// setDefaults sets a default for every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.channel_ids", []string{})
	v.SetDefault("discord.channel_topic", "american_stock")
	v.SetDefault("discord.send_delay", time.Second)

	v.SetDefault("sources.community_url", "https://api.saveticker.com/api/community/list")
	v.SetDefault("sources.news_url", "https://api.saveticker.com/api/news/list")
	v.SetDefault("sources.page_size", 20)
	v.SetDefault("sources.rate_limit", 4.0)
	v.SetDefault("sources.rss_feeds", []string{})
	v.SetDefault("sources.http_timeout", 10*time.Second)

	v.SetDefault("schedule.poll_interval", 10*time.Second)
	v.SetDefault("schedule.report_interval", time.Hour)
	v.SetDefault("schedule.report_max_items", 30)

	v.SetDefault("classifier.breaking_keywords", DefaultBreakingKeywords)
	v.SetDefault("classifier.important_like_threshold", 5)

	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.backup_dir", "cache_backup")

	v.SetDefault("llm.primary", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.gemini_key", "")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv applies the unprefixed variable names used by existing
// deployments. Intervals are in seconds.
func overrideFromEnv(cfg *Config) error {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.GeminiKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIKey = v
	}
	if v := os.Getenv("COMMUNITY_API_URL"); v != "" {
		cfg.Sources.CommunityURL = v
	}
	if v := os.Getenv("NEWS_API_URL"); v != "" {
		cfg.Sources.NewsURL = v
	}
	if v := os.Getenv("BREAKING_NEWS_KEYWORDS"); v != "" {
		cfg.Classifier.BreakingKeywords = splitList(v)
	}

	ints := []struct {
		env string
		set func(int)
	}{
		{"UPDATE_INTERVAL", func(n int) { cfg.Schedule.PollInterval = time.Duration(n) * time.Second }},
		{"REPORT_INTERVAL", func(n int) { cfg.Schedule.ReportInterval = time.Duration(n) * time.Second }},
		{"REPORT_PAGE_SIZE", func(n int) { cfg.Schedule.ReportMaxItems = n }},
		{"API_PAGE_SIZE", func(n int) { cfg.Sources.PageSize = n }},
		{"IMPORTANT_LIKE_THRESHOLD", func(n int) { cfg.Classifier.ImportantLikeThreshold = n }},
	}
	for _, e := range ints {
		raw := os.Getenv(e.env)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer: %w", e.env, raw, err)
		}
		e.set(n)
	}
	return nil
}

// Validate checks the settings the bot loop cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, ErrMissingToken)
	}
	if c.Schedule.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: schedule.poll_interval must be positive, got %s", c.Schedule.PollInterval))
	}
	if c.Schedule.ReportInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: schedule.report_interval must be positive, got %s", c.Schedule.ReportInterval))
	}
	if c.Sources.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("config: sources.page_size must be positive, got %d", c.Sources.PageSize))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
