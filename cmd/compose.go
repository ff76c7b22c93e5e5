package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/composer"
)

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E57373"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8F98"))
	chosenStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
)

var postStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#8BC34A")).
	Padding(0, 1).
	Width(72)

func composeCmd() *cobra.Command {
	var (
		publishFlag bool
		webhook     string
		seed        uint64
		jsonOutput  bool
	)
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Generate candidate posts, score them for banned topics and pick one",
		Long: `Compose samples the account's cached posts, asks the model for candidates,
scores each against the banned topics and selects the first one that clears
the threshold. Every run writes a JSON log.

Nothing is posted unless --publish is given.`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig()
			account := mustResolveAccount(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			shutdown := setupTracing(ctx, cfg)
			defer shutdown(context.Background())

			res, err := runCompose(ctx, cfg, account, composeOptions{
				Publish:    publishFlag,
				WebhookURL: webhook,
				Seed:       seed,
			})

			if jsonOutput && res != nil {
				data, _ := json.MarshalIndent(res, "", "  ")
				fmt.Println(string(data))
			} else if res != nil {
				fmt.Println(renderResult(res))
			}

			if err != nil {
				if errors.Is(err, composer.ErrNoAcceptableCandidate) {
					fmt.Fprintln(os.Stderr, "No candidate cleared the safety threshold; nothing was published.")
				} else {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				}
				os.Exit(1)
			}
		},
	}
	cmd.Flags().BoolVar(&publishFlag, "publish", false, "publish the selected post to the configured target (default false: generate, score and log only)")
	cmd.Flags().StringVar(&webhook, "webhook", "", "notify this webhook URL after a successful run (overrides config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed the sampler and tone picks for a reproducible run")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}

// renderResult draws the candidates with their scores and the chosen post.
func renderResult(res *composer.Result) string {
	var b strings.Builder
	log := res.Log
	if log == nil {
		return ""
	}

	b.WriteString(labelStyle.Render(fmt.Sprintf("Candidates (threshold %.2f)", log.Threshold)))
	b.WriteString("\n")
	for i, c := range log.Choices {
		score := "-"
		style := failStyle
		if i < len(log.AvgRatings) {
			score = fmt.Sprintf("%5.2f", log.AvgRatings[i])
			if log.AvgRatings[i] >= log.Threshold {
				style = passStyle
			}
		}
		marker := "  "
		line := c
		if log.Tweet != "" && i == res.Index {
			marker = "> "
			line = chosenStyle.Render(c)
		}
		fmt.Fprintf(&b, "%s%s  %s\n", marker, style.Render(score), line)
	}

	if res.Post != "" {
		b.WriteString("\n")
		b.WriteString(postStyle.Render(res.Post))
		b.WriteString("\n")
	}

	status := "not published (pass --publish to post)"
	if res.Published {
		status = "published, id " + res.PublishID
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("run %s · %s", res.RunID, status)))
	if res.LogPath != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("log " + res.LogPath))
	}
	return b.String()
}
