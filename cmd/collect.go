package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func collectCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Scroll the account's posts in Chrome and add new ones to the cache",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig()
			account := mustResolveAccount(cfg)
			if !cmd.Flags().Changed("headless") {
				headless = cfg.Collector.Headless
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			shutdown := setupTracing(ctx, cfg)
			defer shutdown(context.Background())

			res, err := runCollect(ctx, cfg, account, headless)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				if res.Steps > 0 {
					fmt.Fprintf(os.Stderr, "Kept %d posts (%d new) collected before the failure.\n", res.Total, res.New)
				}
				os.Exit(1)
			}
			fmt.Printf("Found %d (%d new) posts from @%s\n", res.Total, res.New, account)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run Chrome without a window (default from config)")
	return cmd
}
