package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"therapy-chat-be/internal/bootstrap"
	"therapy-chat-be/internal/pkg/scheduler"
	"therapy-chat-be/internal/service"
	"therapy-chat-be/pkg/finetune"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	pollInterval    time.Duration
	pollMaxAttempts int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and the training view",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openDB()
		if err != nil {
			return err
		}
		defer env.log.Sync()

		if err := bootstrap.Migrate(env.db, env.log); err != nil {
			return err
		}
		fmt.Println(successColor("✓"), "migration complete")
		return nil
	},
}

var sweepLocksCmd = &cobra.Command{
	Use:   "sweep-locks",
	Short: "Delete expired export locks once",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openDB()
		if err != nil {
			return err
		}
		defer env.log.Sync()

		locks := service.NewLockService(env.uowFactory, env.cfg.Export.LockTTL, env.log)
		removed, err := locks.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s removed %s expired lock(s)\n", successColor("✓"), humanize.Comma(removed))
		return nil
	},
}

var pollFineTuneCmd = &cobra.Command{
	Use:   "poll-finetune <snapshot-id>",
	Short: "Poll a snapshot's fine-tune job until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid snapshot id: %w", err)
		}
		env, err := openDB()
		if err != nil {
			return err
		}
		defer env.log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		interval := env.cfg.FineTune.PollInterval
		if pollInterval > 0 {
			interval = pollInterval
		}
		attempts := env.cfg.FineTune.MaxAttempts
		if pollMaxAttempts > 0 {
			attempts = pollMaxAttempts
		}

		svc := service.NewFineTuneService(
			env.uowFactory,
			finetune.NewClient(env.cfg.Ai.OpenAIKey, env.cfg.Ai.OpenAIBaseURL),
			nil,
			scheduler.NewGroup(),
			service.FineTunePolicy{BaseModel: env.cfg.FineTune.BaseModel, PollInterval: interval, MaxAttempts: attempts},
			env.log,
		)

		task := scheduler.New("ops-poll-"+id.String(),
			scheduler.Policy{Interval: interval, MaxAttempts: attempts, RunImmediately: true},
			func(ctx context.Context, attempt int) (bool, error) {
				status, done, err := svc.PollOnce(ctx, id)
				if err != nil {
					fmt.Printf("%s attempt %d: %v\n", warnColor("!"), attempt, err)
					return false, err
				}
				fmt.Printf("%s attempt %d: %s\n", dimColor(time.Now().Format("15:04:05")), attempt, statusColor(status))
				return done, nil
			},
		)
		if err := task.Start(ctx); err != nil {
			return err
		}
		<-task.Done()

		res := task.Result()
		switch res.Outcome {
		case scheduler.OutcomeCompleted:
			fmt.Println(successColor("✓"), "job finished")
			return nil
		case scheduler.OutcomeExhausted:
			return fmt.Errorf("gave up after %d attempts: %v", res.Attempts, res.LastErr)
		default:
			return fmt.Errorf("polling %s", res.Outcome)
		}
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Summarize a session through the API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		title, err := c.SummarizeSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(successColor("✓"), title)
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List fine-tune snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		snaps, err := c.Snapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tROWS\tSTATUS\tMODEL\tCREATED\tHASH")
		for _, s := range snaps {
			model := s.FineTunedModel
			if model == "" {
				model = "-"
			}
			fmt.Fprintf(w, "%s\tv%d\t%s\t%s\t%s\t%s\t%s\n",
				s.Name,
				s.Version,
				humanize.Comma(int64(s.RowCount)),
				statusColor(s.JobStatus),
				model,
				humanize.Time(s.CreatedAt),
				dimColor(shortHash(s.FilterHash)),
			)
		}
		return w.Flush()
	},
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return strings.TrimSpace(h)
}

func init() {
	pollFineTuneCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Poll interval (defaults to FINETUNE_POLL_INTERVAL)")
	pollFineTuneCmd.Flags().IntVar(&pollMaxAttempts, "max-attempts", 0, "Attempts before giving up (defaults to FINETUNE_MAX_ATTEMPTS)")

	rootCmd.AddCommand(migrateCmd, sweepLocksCmd, pollFineTuneCmd, summarizeCmd, snapshotsCmd)
}
