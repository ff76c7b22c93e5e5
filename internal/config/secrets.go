package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name used for OS keyring entries.
const KeyringService = "parrot"

// Well-known secret names. Each maps to an env var PARROT_<NAME> and a
// keyring user of the same name.
const (
	SecretOpenAIKey     = "OPENAI_API_KEY"
	SecretDashScopeKey  = "DASHSCOPE_API_KEY"
	SecretGeminiKey     = "GEMINI_API_KEY"
	SecretXAPIKey       = "X_API_KEY"
	SecretXAPISecret    = "X_API_SECRET"
	SecretXAccessToken  = "X_ACCESS_TOKEN"
	SecretXAccessSecret = "X_ACCESS_SECRET"
	SecretTelegramToken = "TELEGRAM_TOKEN"
	SecretDiscordToken  = "DISCORD_TOKEN"
	SecretSlackToken    = "SLACK_TOKEN"
	SecretLoginUsername = "LOGIN_USERNAME"
	SecretLoginPassword = "LOGIN_PASSWORD"
)

// KnownSecrets lists every secret name accepted by `parrot secrets`.
var KnownSecrets = []string{
	SecretOpenAIKey, SecretDashScopeKey, SecretGeminiKey,
	SecretXAPIKey, SecretXAPISecret, SecretXAccessToken, SecretXAccessSecret,
	SecretTelegramToken, SecretDiscordToken, SecretSlackToken,
	SecretLoginUsername, SecretLoginPassword,
}

// ResolveSecret returns the first non-empty value from the environment
// (PARROT_<name>), the OS keyring, then fallback.
func ResolveSecret(name, fallback string) string {
	if v := os.Getenv("PARROT_" + name); v != "" {
		return v
	}
	v, err := keyring.Get(KeyringService, name)
	if err == nil && v != "" {
		return v
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keyring lookup failed", "secret", name, "error", err)
	}
	return fallback
}

// SetSecret stores a secret in the OS keyring.
func SetSecret(name, value string) error {
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", name, err)
	}
	return nil
}

// DeleteSecret removes a secret from the OS keyring. Missing entries are not an error.
func DeleteSecret(name string) error {
	err := keyring.Delete(KeyringService, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", name, err)
	}
	return nil
}

// ResolveSecrets fills every credential field from env/keyring, keeping
// config-file values as the last fallback.
func (c *Config) ResolveSecrets() {
	c.Providers.OpenAI.APIKey = ResolveSecret(SecretOpenAIKey, c.Providers.OpenAI.APIKey)
	c.Providers.DashScope.APIKey = ResolveSecret(SecretDashScopeKey, c.Providers.DashScope.APIKey)
	c.Providers.Gemini.APIKey = ResolveSecret(SecretGeminiKey, c.Providers.Gemini.APIKey)

	x := &c.Publish.X
	x.APIKey = ResolveSecret(SecretXAPIKey, x.APIKey)
	x.APISecret = ResolveSecret(SecretXAPISecret, x.APISecret)
	x.AccessToken = ResolveSecret(SecretXAccessToken, x.AccessToken)
	x.AccessSecret = ResolveSecret(SecretXAccessSecret, x.AccessSecret)

	c.Publish.Telegram.Token = ResolveSecret(SecretTelegramToken, c.Publish.Telegram.Token)
	c.Publish.Discord.Token = ResolveSecret(SecretDiscordToken, c.Publish.Discord.Token)
	c.Publish.Slack.Token = ResolveSecret(SecretSlackToken, c.Publish.Slack.Token)

	c.Collector.Username = ResolveSecret(SecretLoginUsername, c.Collector.Username)
	c.Collector.Password = ResolveSecret(SecretLoginPassword, c.Collector.Password)
}
