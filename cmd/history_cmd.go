package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/store"
	"github.com/nextlevelbuilder/parrot/internal/store/sqlite"
)

func historyCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List posts published for the account",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig()
			account := mustResolveAccount(cfg)
			if !cfg.History.Enabled {
				fmt.Fprintln(os.Stderr, "History is disabled (history.enabled = false).")
				os.Exit(1)
			}

			h, err := sqlite.Open(config.ExpandHome(cfg.History.Path))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer h.Close()

			posts, err := h.ListPublished(context.Background(), account, limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			printHistory(os.Stdout, posts, jsonOutput)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printHistory(w io.Writer, posts []store.PublishedPost, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(posts, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	if len(posts) == 0 {
		fmt.Fprintln(w, "Nothing published yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PUBLISHED\tTARGET\tID\tTEXT\n")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.PublishedAt.Local().Format(time.DateTime), p.Target, p.ExternalID, truncateStr(p.Text, 60))
	}
	tw.Flush()
}

func truncateStr(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
