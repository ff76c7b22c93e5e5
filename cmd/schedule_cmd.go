package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/composer"
	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/cron"
	"github.com/nextlevelbuilder/parrot/internal/retry"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled collect and compose runs",
	}
	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleDeleteCmd())
	cmd.AddCommand(scheduleToggleCmd())
	cmd.AddCommand(scheduleRunCmd())
	cmd.AddCommand(scheduleServeCmd())
	return cmd
}

func scheduleAddCmd() *cobra.Command {
	var (
		name        string
		kind        string
		at          string
		every       string
		expr        string
		publishFlag bool
		webhook     string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		Example: `  parrot schedule add --kind collect --every 24h
  parrot schedule add --kind compose --cron "0 9 * * *" --publish`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig()
			account := mustResolveAccount(cfg)

			sched, err := cron.ParseSchedule(at, every, expr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			svc := loadCronService(cfg, nil)
			job, err := svc.AddJob(name, sched, cron.Payload{
				Kind:    kind,
				Account: account,
				Publish: publishFlag,
				Webhook: webhook,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Added job %s (%s, %s)\n", job.ID, job.Name, job.Schedule.Describe())
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "job name (default \"<kind> <account>\")")
	cmd.Flags().StringVar(&kind, "kind", cron.PayloadCompose, "what to run: compose or collect")
	cmd.Flags().StringVar(&at, "at", "", "run once at this RFC 3339 time")
	cmd.Flags().StringVar(&every, "every", "", "run at this interval, e.g. 6h")
	cmd.Flags().StringVar(&expr, "cron", "", "run on this 5-field cron expression")
	cmd.Flags().BoolVar(&publishFlag, "publish", false, "compose jobs: publish the selected post (default false)")
	cmd.Flags().StringVar(&webhook, "webhook", "", "compose jobs: webhook URL (overrides config)")
	return cmd
}

func scheduleListCmd() *cobra.Command {
	var jsonOutput bool
	var showDisabled bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			svc := loadCronService(mustLoadConfig(), nil)
			printJobs(os.Stdout, svc.ListJobs(showDisabled), jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&showDisabled, "all", false, "include disabled jobs")
	return cmd
}

func scheduleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [jobId]",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc := loadCronService(mustLoadConfig(), nil)
			if err := svc.RemoveJob(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Deleted job %s\n", args[0])
		},
	}
}

func scheduleToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [jobId] [true|false]",
		Short: "Enable or disable a scheduled job",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			enabled := args[1] == "true" || args[1] == "1" || args[1] == "on"
			svc := loadCronService(mustLoadConfig(), nil)
			if err := svc.EnableJob(args[0], enabled); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Job %s enabled=%v\n", args[0], enabled)
		},
	}
}

func scheduleRunCmd() *cobra.Command {
	var dueOnly bool
	cmd := &cobra.Command{
		Use:   "run [jobId]",
		Short: "Run a scheduled job now",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			shutdown := setupTracing(ctx, cfg)
			defer shutdown(context.Background())

			var current atomic.Pointer[config.Config]
			current.Store(cfg)
			svc := loadCronService(cfg, jobHandler(&current))

			ran, summary, err := svc.RunJob(ctx, args[0], !dueOnly)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			if !ran {
				fmt.Printf("Job %s skipped: %s\n", args[0], summary)
				return
			}
			fmt.Println(summary)
		},
	}
	cmd.Flags().BoolVar(&dueOnly, "due", false, "only run if the job is due")
	return cmd
}

func scheduleServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler in the foreground until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadConfig()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			shutdown := setupTracing(ctx, cfg)
			defer shutdown(context.Background())

			var current atomic.Pointer[config.Config]
			current.Store(cfg)

			if w, err := config.NewWatcher(resolveConfigPath(), slog.Default()); err != nil {
				slog.Warn("config hot reload disabled", "error", err)
			} else {
				w.OnChange(func(next *config.Config) { current.Store(next) })
				go func() {
					if err := w.Run(ctx); err != nil {
						slog.Warn("config watcher exited", "error", err)
					}
				}()
			}

			svc := loadCronService(cfg, jobHandler(&current))
			if err := svc.Start(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			st := svc.Status()
			fmt.Printf("Scheduler running with %d job(s). Press Ctrl+C to stop.\n", st.Jobs)
			<-ctx.Done()
			svc.Stop()
		},
	}
}

// jobHandler dispatches a job to the collect or compose flow using the
// latest loaded config.
func jobHandler(current *atomic.Pointer[config.Config]) cron.JobHandler {
	return func(ctx context.Context, job *cron.Job) (string, error) {
		cfg := current.Load()
		account := config.NormalizeAccount(job.Payload.Account)
		switch job.Payload.Kind {
		case cron.PayloadCollect:
			res, err := runCollect(ctx, cfg, account, cfg.Collector.Headless)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("collected %d posts (%d new) for @%s", res.Total, res.New, account), nil
		case cron.PayloadCompose:
			res, err := runCompose(ctx, cfg, account, composeOptions{
				Publish:    job.Payload.Publish,
				WebhookURL: job.Payload.Webhook,
			})
			if err != nil {
				return "", finalJobError(err)
			}
			if res.Published {
				return fmt.Sprintf("published %q (id %s)", res.Post, res.PublishID), nil
			}
			return fmt.Sprintf("composed %q (not published)", res.Post), nil
		default:
			return "", retry.Permanent(fmt.Errorf("unknown job kind %q", job.Payload.Kind))
		}
	}
}

// finalJobError marks compose outcomes that a rerun cannot change, or that a
// rerun could make worse by publishing twice.
func finalJobError(err error) error {
	var pubErr *composer.PublishError
	switch {
	case errors.Is(err, composer.ErrNoAcceptableCandidate),
		errors.Is(err, composer.ErrEmptyPool),
		errors.Is(err, composer.ErrScoreLengthMismatch),
		errors.As(err, &pubErr):
		return retry.Permanent(err)
	}
	return err
}

func loadCronService(cfg *config.Config, handler cron.JobHandler) *cron.Service {
	svc := cron.NewService(cfg.CronStorePath(), handler, cron.WithRetry(retryConfig(cfg)))
	if err := svc.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading jobs: %s\n", err)
		os.Exit(1)
	}
	return svc
}

func printJobs(w io.Writer, jobs []cron.Job, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(jobs, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scheduled jobs.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tKIND\tENABLED\tSCHEDULE\tLAST RUN\tSTATUS\n")
	for _, j := range jobs {
		lastRun := "never"
		if j.State.LastRunAtMS != nil {
			lastRun = time.UnixMilli(*j.State.LastRunAtMS).Format(time.DateTime)
		}
		kind := j.Payload.Kind
		if j.Payload.Publish {
			kind += "+publish"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\t%s\n",
			j.ID, j.Name, kind, j.Enabled, j.Schedule.Describe(), lastRun, j.State.LastStatus)
	}
	tw.Flush()
}
