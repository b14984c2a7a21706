package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/report"
	cronlib "github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// scheduleParser accepts five-field expressions and descriptors such as
// "@hourly" or "@every 30m".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		schedule   string
		maxResults int
		now        bool
	)

	cmd := &cobra.Command{
		Use:   "watch <topic>",
		Short: "Repeat a run for a topic on a cron schedule until interrupted",
		Long: `watch re-runs search, scrape and persist for a topic on a schedule.
Use search.dedupe=seen to skip posts already collected by earlier runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			topic := strings.Join(args, " ")
			if !cmd.Flags().Changed("max") {
				maxResults = a.cfg.Search.MaxResults
			}

			sched, err := scheduleParser.Parse(schedule)
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
			if a.cfg.Storage.Backend == "" || a.cfg.Storage.Backend == "none" {
				a.logger.Warn("storage backend is none; watch results are only logged")
			}

			r, err := a.newRunner(ctx, event.LogSink(a.logger))
			if err != nil {
				return err
			}
			defer r.Close()

			tick := func() { a.runScheduled(ctx, r, topic, maxResults) }

			c := cronlib.New(
				cronlib.WithParser(scheduleParser),
				cronlib.WithLogger(cronLogger{logger: a.logger}),
				cronlib.WithChain(cronlib.SkipIfStillRunning(cronLogger{logger: a.logger})),
			)
			c.Schedule(sched, cronlib.FuncJob(tick))

			if now {
				tick()
			}

			c.Start()
			a.logger.Info("watching topic",
				"topic", topic,
				"schedule", schedule,
				"next", sched.Next(time.Now()).Format(time.RFC3339),
			)

			<-ctx.Done()
			stopped := c.Stop()
			<-stopped.Done()
			a.logger.Info("watch stopped", "topic", topic)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schedule, "schedule", "s", "@every 1h", "cron expression or descriptor")
	cmd.Flags().IntVarP(&maxResults, "max", "n", 0, "maximum number of posts per run (default search.max_results)")
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately before the first scheduled tick")
	return cmd
}

func (a *app) runScheduled(ctx context.Context, r *runner, topic string, maxResults int) {
	if ctx.Err() != nil {
		return
	}
	res, err := r.pipeline.Discover(ctx, topic, maxResults)
	if err != nil {
		a.logger.Error("scheduled run failed", "topic", topic, "error", err)
	}
	if res == nil {
		return
	}
	s := report.GenerateSummary(res)
	a.logger.Info("scheduled run finished",
		"topic", s.Topic,
		"run_id", s.RunID,
		"addresses", s.Addresses,
		"extracted", s.Extracted,
		"unavailable", s.Unavailable,
		"duration", s.Duration,
	)
}
