package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile     string
	verbose     bool
	accountFlag string
)

var rootCmd = &cobra.Command{
	Use:   "parrot",
	Short: "Collect an account's posts and compose new ones in its voice",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.parrot/config.json5, or $PARROT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&accountFlag, "account", "a", "", "account handle (overrides config)")

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(composeCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(secretsCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("parrot", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	if v := os.Getenv("PARROT_CONFIG"); v != "" {
		return config.ExpandHome(v)
	}
	return config.ExpandHome("~/.parrot/config.json5")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and resolves secrets from env and keyring.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}
	cfg.ResolveSecrets()
	return cfg, nil
}

// mustLoadConfig is loadConfig for command handlers.
func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// resolveAccount picks the --account flag over the configured account.
func resolveAccount(cfg *config.Config, override string) (string, error) {
	raw := override
	if raw == "" {
		raw = cfg.Account
	}
	acct := config.NormalizeAccount(raw)
	if acct == "" {
		return "", fmt.Errorf("no account: pass --account or set \"account\" in %s", resolveConfigPath())
	}
	return acct, nil
}

func mustResolveAccount(cfg *config.Config) string {
	acct, err := resolveAccount(cfg, accountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return acct
}
