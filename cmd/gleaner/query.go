package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/gleaner/internal/storage"
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		filter storage.Filter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print stored posts as NDJSON, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openBackend(ctx, a.cfg.Storage)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("query needs a storage backend; set storage.backend")
			}
			defer store.Close()

			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			rows, err := store.Query(ctx, filter)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, row := range rows {
				if err := enc.Encode(row); err != nil {
					return fmt.Errorf("failed to write row: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Topic, "topic", "", "only posts collected for this topic")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "only posts from this run id")
	cmd.Flags().StringVar(&filter.Address, "url", "", "only the post at this address")
	cmd.Flags().DurationVar(&since, "since", 0, "only posts stored within this duration")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of posts (0 for no limit)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "skip this many posts")
	return cmd
}
