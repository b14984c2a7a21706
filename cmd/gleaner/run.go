package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/pipeline"
	"github.com/FranksOps/gleaner/internal/report"
	"github.com/spf13/cobra"
)

// runner owns one assembled pipeline and the resources behind it.
type runner struct {
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

func (a *app) newRunner(ctx context.Context, sink event.Sink) (*runner, error) {
	r := &runner{}

	agent, closer, err := newAgent(ctx, a.cfg, sink, a.logger)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, closer)

	s, err := newScraper(a.cfg, sink, a.logger)
	if err != nil {
		r.Close()
		return nil, err
	}

	store, err := openBackend(ctx, a.cfg.Storage)
	if err != nil {
		r.Close()
		return nil, err
	}
	if store != nil {
		r.closers = append(r.closers, store)
	}

	r.pipeline = &pipeline.Pipeline{
		Searcher: agent,
		Scraper:  s,
		Store:    store,
		Logger:   a.logger,
	}
	return r, nil
}

func (r *runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func writeReport(w io.Writer, format string, res *pipeline.Result) error {
	summary := report.GenerateSummary(res)
	switch strings.ToLower(format) {
	case "", "text":
		return report.WriteText(w, summary)
	case "json":
		return report.WriteJSON(w, summary)
	case "html":
		return report.WriteHTML(w, summary)
	}
	return fmt.Errorf("unknown report format %q", format)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		maxResults int
		format     string
		output     string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Search, scrape and persist posts for a topic, then print a report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			topic := strings.Join(args, " ")
			if !cmd.Flags().Changed("max") {
				maxResults = a.cfg.Search.MaxResults
			}

			sink := event.LogSink(a.logger)
			var progress *progressSink
			if !noProgress {
				progress = newProgressSink(cmd.ErrOrStderr(), maxResults, "fetching")
				sink = event.Multi(sink, progress)
			}

			r, err := a.newRunner(ctx, sink)
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.pipeline.Discover(ctx, topic, maxResults)
			if progress != nil {
				progress.Finish()
			}
			if res == nil {
				return err
			}
			if err != nil {
				a.logger.Error("failed to persist some records", "error", err)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, ferr := os.Create(output)
				if ferr != nil {
					return fmt.Errorf("failed to create report file: %w", ferr)
				}
				defer f.Close()
				out = f
			}
			if rerr := writeReport(out, format, res); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max", "n", 0, "maximum number of posts (default search.max_results)")
	cmd.Flags().StringVar(&format, "format", "text", "report format (text|json|html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}
