package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FranksOps/gleaner/internal/event"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "search <topic>",
		Short: "Print the post addresses found for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			topic := strings.Join(args, " ")
			if !cmd.Flags().Changed("max") {
				maxResults = a.cfg.Search.MaxResults
			}

			agent, closer, err := newAgent(ctx, a.cfg, event.LogSink(a.logger), a.logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			for _, addr := range agent.Search(ctx, topic, maxResults) {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max", "n", 0, "maximum number of addresses (default search.max_results)")
	return cmd
}

func newScrapeCmd(a *app) *cobra.Command {
	var (
		file       string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "scrape [address...]",
		Short: "Fetch post pages and print extracted records as NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			addresses := append([]string{}, args...)
			if file != "" {
				fromFile, err := readAddressFile(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				addresses = append(addresses, fromFile...)
			}
			if len(addresses) == 0 {
				return fmt.Errorf("no addresses given; pass them as arguments or with --file")
			}

			sink := event.LogSink(a.logger)
			var progress *progressSink
			if !noProgress {
				progress = newProgressSink(cmd.ErrOrStderr(), len(addresses), "fetching")
				sink = event.Multi(sink, progress)
			}

			s, err := newScraper(a.cfg, sink, a.logger)
			if err != nil {
				return err
			}

			records, stats := s.RunWithStats(ctx, addresses)
			if progress != nil {
				progress.Finish()
			}
			a.logger.Info("scrape finished",
				"requested", stats.Requested,
				"unavailable", stats.Unavailable,
				"extracted", stats.Extracted,
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return fmt.Errorf("failed to write record: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read addresses from a file, one per line (- for stdin)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func readAddressFile(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return readAddresses(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open address file: %w", err)
	}
	defer f.Close()
	return readAddresses(f)
}

// readAddresses returns the non-blank lines of r, skipping # comments.
func readAddresses(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read addresses: %w", err)
	}
	return out, nil
}
