package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/publish"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "init",
		Aliases: []string{"onboard"},
		Short:   "Interactive setup: account, model provider, publish target",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

type providerInfo struct {
	secret    string
	modelHint string
}

var providerMap = map[string]providerInfo{
	"openai":    {config.SecretOpenAIKey, "gpt-4o-mini"},
	"dashscope": {config.SecretDashScopeKey, "qwen-plus"},
	"gemini":    {config.SecretGeminiKey, "gemini-2.0-flash"},
}

var publishSecrets = map[string][]string{
	"x":        {config.SecretXAPIKey, config.SecretXAPISecret, config.SecretXAccessToken, config.SecretXAccessSecret},
	"telegram": {config.SecretTelegramToken},
	"discord":  {config.SecretDiscordToken},
	"slack":    {config.SecretSlackToken},
}

func runOnboard() {
	fmt.Println("parrot setup")
	fmt.Println()

	cfgPath := resolveConfigPath()
	cfg := config.Default()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Found existing config at %s\n", cfgPath)
		useExisting, err := promptConfirm("Use existing config as base?", true)
		if err != nil {
			fmt.Println("Cancelled.")
			return
		}
		if useExisting {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				fmt.Printf("Warning: could not load existing config: %v\n", err)
			} else {
				cfg = loaded
			}
		}
	}

	// --- account ---
	account, err := promptValidated("Account to learn from", "Handle, with or without the @", cfg.Account, func(s string) error {
		if config.NormalizeAccount(s) == "" {
			return fmt.Errorf("an account is required")
		}
		return nil
	})
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Account = config.NormalizeAccount(account)

	// --- provider ---
	providerOpts := []SelectOption[string]{
		{"OpenAI", "openai"},
		{"DashScope (Qwen)", "dashscope"},
		{"Google Gemini", "gemini"},
	}
	provider, err := promptSelect("Model provider", providerOpts, indexOf(providerOpts, cfg.Composer.Provider))
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	info := providerMap[provider]
	if provider != cfg.Composer.Provider {
		cfg.Composer.Model = info.modelHint
		cfg.Composer.ScoreModel = info.modelHint
	}
	cfg.Composer.Provider = provider
	cfg.Composer.ScoreProvider = provider

	model, err := promptString("Model", "Used for generation and scoring", cfg.Composer.Model)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Composer.Model = model
	cfg.Composer.ScoreModel = model

	temp, err := promptFloat("Temperature", "Higher is more creative and lowers the safety bar", cfg.Composer.Temperature, 0, 2)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Composer.Temperature = temp

	topics, err := promptList("Banned topics", "Comma-separated; candidates about these are rejected (- clears)", cfg.Composer.BannedTopics)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Composer.BannedTopics = topics

	if err := offerSecret(info.secret); err != nil {
		fmt.Println("Cancelled.")
		return
	}

	// --- publishing ---
	targetOpts := make([]SelectOption[string], 0, len(publish.Targets))
	for _, t := range publish.Targets {
		targetOpts = append(targetOpts, SelectOption[string]{Label: t, Value: t})
	}
	target, err := promptSelect("Publish target (used only with --publish)", targetOpts, indexOf(targetOpts, cfg.Publish.Target))
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Publish.Target = target
	if err := configureTarget(cfg, target); err != nil {
		fmt.Println("Cancelled.")
		return
	}

	hook, err := promptString("Webhook URL", "Optional; receives a summary after each run", cfg.Webhook.URL)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Webhook.URL = strings.TrimSpace(hook)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %s\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Config saved to %s\n", cfgPath)
	fmt.Println("Next steps:")
	fmt.Println("  parrot collect     # gather posts into the cache")
	fmt.Println("  parrot compose     # generate and score candidates (add --publish to post)")
}

// configureTarget asks for the non-secret settings of a publish target and
// offers to store its credentials.
func configureTarget(cfg *config.Config, target string) error {
	switch target {
	case "telegram":
		def := ""
		if cfg.Publish.Telegram.ChatID != 0 {
			def = strconv.FormatInt(cfg.Publish.Telegram.ChatID, 10)
		}
		v, err := promptString("Telegram chat ID", "Channel or group the bot posts to", def)
		if err != nil {
			return err
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.Publish.Telegram.ChatID = id
		}
	case "discord":
		v, err := promptString("Discord channel ID", "", cfg.Publish.Discord.ChannelID)
		if err != nil {
			return err
		}
		cfg.Publish.Discord.ChannelID = strings.TrimSpace(v)
	case "slack":
		v, err := promptString("Slack channel ID", "", cfg.Publish.Slack.ChannelID)
		if err != nil {
			return err
		}
		cfg.Publish.Slack.ChannelID = strings.TrimSpace(v)
	}
	for _, name := range publishSecrets[target] {
		if err := offerSecret(name); err != nil {
			return err
		}
	}
	return nil
}

// offerSecret stores a secret in the keyring unless one already resolves.
func offerSecret(name string) error {
	if config.ResolveSecret(name, "") != "" {
		fmt.Printf("%s already set.\n", name)
		return nil
	}
	v, err := promptPassword(name, "Leave empty to skip; stored in the OS keyring")
	if err != nil {
		return err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if err := config.SetSecret(name, v); err != nil {
		fmt.Printf("Warning: %s (set PARROT_%s instead)\n", err, name)
	}
	return nil
}

func indexOf(opts []SelectOption[string], value string) int {
	for i, o := range opts {
		if o.Value == value {
			return i
		}
	}
	return 0
}
