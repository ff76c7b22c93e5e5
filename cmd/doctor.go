package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/cron"
	"github.com/nextlevelbuilder/parrot/internal/snippets"
	"github.com/nextlevelbuilder/parrot/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("parrot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
	}

	account, _ := resolveAccount(cfg, accountFlag)
	fmt.Println()
	if account == "" {
		fmt.Println("  Account:  (not configured)")
	} else {
		cache := snippets.Load(snippets.PathFor(cfg.CacheDir(), account))
		fmt.Printf("  Account:  @%s (%d cached posts", account, cache.Len())
		if cache.FirstDate != nil {
			fmt.Printf(", first collected %s", cache.FirstDate.Format("2006-01-02"))
		}
		fmt.Println(")")
	}

	fmt.Println()
	fmt.Println("  Providers:")
	checkProvider("openai", cfg.Providers.OpenAI.APIKey, cfg.Composer)
	checkProvider("dashscope", cfg.Providers.DashScope.APIKey, cfg.Composer)
	checkProvider("gemini", cfg.Providers.Gemini.APIKey, cfg.Composer)

	fmt.Println()
	fmt.Println("  Publish targets:")
	p := cfg.Publish
	checkTarget("x", p.Target, p.X.APIKey != "" && p.X.APISecret != "" && p.X.AccessToken != "" && p.X.AccessSecret != "")
	checkTarget("telegram", p.Target, p.Telegram.Token != "" && p.Telegram.ChatID != 0)
	checkTarget("discord", p.Target, p.Discord.Token != "" && p.Discord.ChannelID != "")
	checkTarget("slack", p.Target, p.Slack.Token != "" && p.Slack.ChannelID != "")
	if cfg.Webhook.URL != "" {
		fmt.Printf("    %-12s %s\n", "webhook:", cfg.Webhook.URL)
	}

	fmt.Println()
	fmt.Println("  Browser:")
	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("    %-12s %s\n", "chrome:", path)
	} else {
		fmt.Printf("    %-12s NOT FOUND (will be downloaded on first collect)\n", "chrome:")
	}
	if cfg.Collector.Username == "" {
		fmt.Printf("    %-12s (not configured, collecting signed out)\n", "login:")
	} else {
		fmt.Printf("    %-12s %s\n", "login:", cfg.Collector.Username)
	}

	fmt.Println()
	if cfg.History.Enabled {
		path := config.ExpandHome(cfg.History.Path)
		fmt.Printf("  History:  %s", path)
		h, err := sqlite.Open(path)
		if err != nil {
			fmt.Printf(" (ERROR: %s)\n", err)
		} else {
			posts, _ := h.ListPublished(context.Background(), account, 1)
			h.Close()
			if len(posts) == 0 {
				fmt.Println(" (OK, nothing published yet)")
			} else {
				fmt.Printf(" (OK, last published %s)\n", posts[0].PublishedAt.Format("2006-01-02 15:04"))
			}
		}
	} else {
		fmt.Println("  History:  disabled")
	}

	svc := cron.NewService(cfg.CronStorePath(), nil)
	if err := svc.Load(); err != nil {
		fmt.Printf("  Schedule: %s (ERROR: %s)\n", cfg.CronStorePath(), err)
	} else {
		fmt.Printf("  Schedule: %d job(s)\n", len(svc.ListJobs(true)))
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkProvider(name, apiKey string, c config.ComposerConfig) {
	role := ""
	switch {
	case name == c.Provider && name == c.ScoreProvider:
		role = " [generate, score]"
	case name == c.Provider:
		role = " [generate]"
	case name == c.ScoreProvider:
		role = " [score]"
	}
	if apiKey != "" {
		fmt.Printf("    %-12s %s%s\n", name+":", maskSecret(apiKey), role)
	} else {
		fmt.Printf("    %-12s (not configured)%s\n", name+":", role)
	}
}

func checkTarget(name, selected string, hasCredentials bool) {
	status := "not configured"
	if hasCredentials {
		status = "configured"
	}
	if name == selected {
		status += " [selected]"
		if !hasCredentials {
			status += " (missing credentials)"
		}
	}
	fmt.Printf("    %-12s %s\n", name+":", status)
}
