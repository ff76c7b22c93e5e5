// Package config loads and validates the parrot configuration.
//
// The file is JSON5 by default (~/.parrot/config.json5); files ending in
// .yaml or .yml are parsed as YAML. Every component receives the loaded
// *Config (or the relevant sub-struct) explicitly.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Sampler constants for the prompt scaffolding estimate.
const (
	BaseOverheadTokens    = 50
	PerItemOverheadTokens = 2
)

// Config is the root configuration.
type Config struct {
	Account   string          `json:"account,omitempty" yaml:"account,omitempty"`
	DataDir   string          `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`
	Collector CollectorConfig `json:"collector" yaml:"collector"`
	Composer  ComposerConfig  `json:"composer" yaml:"composer"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Publish   PublishConfig   `json:"publish" yaml:"publish"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Retry     RetryConfig     `json:"retry" yaml:"retry"`
}

// CollectorConfig controls the browser-driven snippet collector.
type CollectorConfig struct {
	Headless       bool   `json:"headless" yaml:"headless"`
	Stealth        bool   `json:"stealth" yaml:"stealth"`
	MinLikes       int    `json:"minLikes" yaml:"minLikes"`
	IdleLimit      int    `json:"idleLimit,omitempty" yaml:"idleLimit,omitempty"`
	ScrollStepPx   int    `json:"scrollStepPx,omitempty" yaml:"scrollStepPx,omitempty"`
	ScrollPauseMs  int    `json:"scrollPauseMs,omitempty" yaml:"scrollPauseMs,omitempty"`
	NavTimeoutMs   int    `json:"navTimeoutMs,omitempty" yaml:"navTimeoutMs,omitempty"`
	TypeDelayMs    int    `json:"typeDelayMs,omitempty" yaml:"typeDelayMs,omitempty"`
	LoginURL       string `json:"loginUrl,omitempty" yaml:"loginUrl,omitempty"`
	SearchBaseURL  string `json:"searchBaseUrl,omitempty" yaml:"searchBaseUrl,omitempty"`
	SnippetSel     string `json:"snippetSelector,omitempty" yaml:"snippetSelector,omitempty"`
	UsernameSel    string `json:"usernameSelector,omitempty" yaml:"usernameSelector,omitempty"`
	NextButtonSel  string `json:"nextButtonSelector,omitempty" yaml:"nextButtonSelector,omitempty"`
	PasswordSel    string `json:"passwordSelector,omitempty" yaml:"passwordSelector,omitempty"`
	LoginButtonSel string `json:"loginButtonSelector,omitempty" yaml:"loginButtonSelector,omitempty"`
	Username       string `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string `json:"password,omitempty" yaml:"password,omitempty"`
	Incremental    bool   `json:"incremental" yaml:"incremental"`
}

// ComposerConfig controls sampling, generation and scoring.
type ComposerConfig struct {
	Variant           string   `json:"variant,omitempty" yaml:"variant,omitempty"` // "blend" or "emulate"
	Provider          string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model             string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature       float64  `json:"temperature" yaml:"temperature"`
	Generated         int      `json:"generatedTweets,omitempty" yaml:"generatedTweets,omitempty"`
	MaxTrainingTweets int      `json:"maxTrainingTweets,omitempty" yaml:"maxTrainingTweets,omitempty"`
	MaxTokens         int      `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Tokenizer         string   `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty"` // "words" or "tiktoken"
	ExcludeLinks      bool     `json:"excludeLinks" yaml:"excludeLinks"`
	Moods             []string `json:"moods,omitempty" yaml:"moods,omitempty"`
	Adverbs           []string `json:"adverbs,omitempty" yaml:"adverbs,omitempty"`
	Lengths           []string `json:"lengths,omitempty" yaml:"lengths,omitempty"`
	BannedTopics      []string `json:"bannedTopics,omitempty" yaml:"bannedTopics,omitempty"`
	ScoreProvider     string   `json:"scoreProvider,omitempty" yaml:"scoreProvider,omitempty"`
	ScoreModel        string   `json:"scoreModel,omitempty" yaml:"scoreModel,omitempty"`
	ScoreTemperature  float64  `json:"scoreTemperature" yaml:"scoreTemperature"`
	LogDir            string   `json:"logDir,omitempty" yaml:"logDir,omitempty"`
}

// ProviderConfig holds credentials and endpoint for one completion backend.
type ProviderConfig struct {
	APIKey    string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIBase   string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	RPM       int    `json:"rpm,omitempty" yaml:"rpm,omitempty"`
}

// ProvidersConfig lists the supported completion backends.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" yaml:"openai"`
	DashScope ProviderConfig `json:"dashscope" yaml:"dashscope"`
	Gemini    ProviderConfig `json:"gemini" yaml:"gemini"`
}

// PublishConfig selects and configures the social publisher.
type PublishConfig struct {
	Target   string         `json:"target,omitempty" yaml:"target,omitempty"` // x | telegram | discord | slack
	Prefix   string         `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	X        XConfig        `json:"x" yaml:"x"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
	Slack    SlackConfig    `json:"slack" yaml:"slack"`
}

// XConfig holds OAuth 1.0a user-context credentials for the X API v2.
type XConfig struct {
	APIBase      string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APISecret    string `json:"apiSecret,omitempty" yaml:"apiSecret,omitempty"`
	AccessToken  string `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
	AccessSecret string `json:"accessSecret,omitempty" yaml:"accessSecret,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty" yaml:"token,omitempty"`
	ChatID int64  `json:"chatId,omitempty" yaml:"chatId,omitempty"`
}

type DiscordConfig struct {
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	ChannelID string `json:"channelId,omitempty" yaml:"channelId,omitempty"`
}

type SlackConfig struct {
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	ChannelID string `json:"channelId,omitempty" yaml:"channelId,omitempty"`
}

// WebhookConfig configures the optional notification webhook.
type WebhookConfig struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	MaxChars  int    `json:"maxChars,omitempty" yaml:"maxChars,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// HistoryConfig configures the SQLite ledger of published posts.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc | http
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// RetryConfig controls retries around outbound calls.
type RetryConfig struct {
	MaxRetries  int `json:"maxRetries" yaml:"maxRetries"`
	BaseDelayMs int `json:"baseDelayMs,omitempty" yaml:"baseDelayMs,omitempty"`
	MaxDelayMs  int `json:"maxDelayMs,omitempty" yaml:"maxDelayMs,omitempty"`
}

// Default returns a config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		DataDir: "~/.parrot/data",
		Collector: CollectorConfig{
			Headless:       false,
			Stealth:        true,
			IdleLimit:      10,
			ScrollStepPx:   1000,
			ScrollPauseMs:  500,
			NavTimeoutMs:   10000,
			TypeDelayMs:    20,
			LoginURL:       "https://twitter.com/login",
			SearchBaseURL:  "https://twitter.com/search",
			SnippetSel:     `div [data-testid="tweet"] > div > div > div > div > div > div[data-testid="tweetText"]`,
			UsernameSel:    `[autocomplete="username"][name="text"][type="text"]`,
			NextButtonSel:  `div[role="button"]:has(> div > span > span)`,
			PasswordSel:    `[name="password"]`,
			LoginButtonSel: `[data-testid="LoginForm_Login_Button"]`,
			Incremental:    true,
		},
		Composer: ComposerConfig{
			Variant:           "blend",
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Temperature:       0.9,
			Generated:         4,
			MaxTrainingTweets: 50,
			MaxTokens:         3300,
			Tokenizer:         "words",
			ExcludeLinks:      true,
			Moods:             []string{"happy", "sarcastic", "curious", "excited", "reflective", "annoyed"},
			Adverbs:           []string{"very", "slightly", "mildly", "extremely", "somewhat"},
			Lengths:           []string{"short", "medium-length", "long"},
			ScoreProvider:     "openai",
			ScoreModel:        "gpt-4o-mini",
			ScoreTemperature:  0.2,
			LogDir:            "~/.parrot/logs",
		},
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{APIBase: "https://api.openai.com/v1", TimeoutMs: 60000},
			DashScope: ProviderConfig{TimeoutMs: 60000},
			Gemini:    ProviderConfig{TimeoutMs: 60000},
		},
		Publish: PublishConfig{
			Target: "x",
			X:      XConfig{APIBase: "https://api.twitter.com"},
		},
		Webhook: WebhookConfig{MaxChars: 2000, TimeoutMs: 10000},
		History: HistoryConfig{Enabled: true, Path: "~/.parrot/data/history.db"},
		Retry:   RetryConfig{MaxRetries: 2, BaseDelayMs: 2000, MaxDelayMs: 30000},
	}
}

// Load reads the config file at path, fills zero fields from Default and
// validates the result. A missing file yields an error wrapping os.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json5.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON (valid JSON5) or YAML, by extension.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// applyDefaults restores defaults for fields an explicit config zeroed out.
func (c *Config) applyDefaults() {
	d := Default()
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Collector.IdleLimit <= 0 {
		c.Collector.IdleLimit = d.Collector.IdleLimit
	}
	if c.Collector.ScrollStepPx <= 0 {
		c.Collector.ScrollStepPx = d.Collector.ScrollStepPx
	}
	if c.Collector.ScrollPauseMs <= 0 {
		c.Collector.ScrollPauseMs = d.Collector.ScrollPauseMs
	}
	if c.Collector.NavTimeoutMs <= 0 {
		c.Collector.NavTimeoutMs = d.Collector.NavTimeoutMs
	}
	if c.Composer.Variant == "" {
		c.Composer.Variant = d.Composer.Variant
	}
	if c.Composer.Provider == "" {
		c.Composer.Provider = d.Composer.Provider
	}
	if c.Composer.Model == "" {
		c.Composer.Model = d.Composer.Model
	}
	if c.Composer.Generated <= 0 {
		c.Composer.Generated = d.Composer.Generated
	}
	if c.Composer.MaxTrainingTweets <= 0 {
		c.Composer.MaxTrainingTweets = d.Composer.MaxTrainingTweets
	}
	if c.Composer.MaxTokens <= 0 {
		c.Composer.MaxTokens = d.Composer.MaxTokens
	}
	if c.Composer.Tokenizer == "" {
		c.Composer.Tokenizer = d.Composer.Tokenizer
	}
	if c.Composer.ScoreProvider == "" {
		c.Composer.ScoreProvider = c.Composer.Provider
	}
	if c.Composer.ScoreModel == "" {
		c.Composer.ScoreModel = d.Composer.ScoreModel
	}
	if c.Composer.LogDir == "" {
		c.Composer.LogDir = d.Composer.LogDir
	}
	if c.Webhook.MaxChars <= 0 {
		c.Webhook.MaxChars = d.Webhook.MaxChars
	}
	if c.History.Path == "" {
		c.History.Path = d.History.Path
	}
	// Outbound calls always get at least one retry.
	if c.Retry.MaxRetries < 1 {
		c.Retry.MaxRetries = 1
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = d.Retry.BaseDelayMs
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = d.Retry.MaxDelayMs
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	cc := c.Composer
	var errs []error
	if cc.Temperature < 0 || cc.Temperature > 2 {
		errs = append(errs, fmt.Errorf("composer.temperature must be within [0, 2], got %v", cc.Temperature))
	}
	if cc.Generated < 1 {
		errs = append(errs, fmt.Errorf("composer.generatedTweets must be >= 1"))
	}
	if cc.MaxTokens <= BaseOverheadTokens {
		errs = append(errs, fmt.Errorf("composer.maxTokens must exceed the base overhead of %d", BaseOverheadTokens))
	}
	if len(cc.Moods) == 0 || len(cc.Adverbs) == 0 || len(cc.Lengths) == 0 {
		errs = append(errs, fmt.Errorf("composer.moods, composer.adverbs and composer.lengths must be non-empty"))
	}
	switch cc.Variant {
	case "blend", "emulate":
	default:
		errs = append(errs, fmt.Errorf("composer.variant must be blend or emulate, got %q", cc.Variant))
	}
	for _, p := range []string{cc.Provider, cc.ScoreProvider} {
		switch p {
		case "openai", "dashscope", "gemini":
		default:
			errs = append(errs, fmt.Errorf("composer provider must be openai, dashscope or gemini, got %q", p))
		}
	}
	switch cc.Tokenizer {
	case "words", "tiktoken":
	default:
		errs = append(errs, fmt.Errorf("composer.tokenizer must be words or tiktoken, got %q", cc.Tokenizer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RetryBase returns the configured base retry delay.
func (r RetryConfig) RetryBase() time.Duration { return time.Duration(r.BaseDelayMs) * time.Millisecond }

// RetryMax returns the configured maximum retry delay.
func (r RetryConfig) RetryMax() time.Duration { return time.Duration(r.MaxDelayMs) * time.Millisecond }

// CacheDir is where snippet caches live.
func (c *Config) CacheDir() string {
	return filepath.Join(ExpandHome(c.DataDir), "collection")
}

// CronStorePath is where scheduled jobs are persisted.
func (c *Config) CronStorePath() string {
	return filepath.Join(ExpandHome(c.DataDir), "cron", "jobs.json")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
