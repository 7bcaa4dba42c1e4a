package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingua/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished sessions and score statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")
		statsOnly, _ := cmd.Flags().GetBool("stats")

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.ResultStats(ctx, owner)
		if err != nil {
			return fmt.Errorf("query stats: %w", err)
		}
		if len(stats) == 0 {
			fmt.Println("No finished sessions yet.")
			return nil
		}
		fmt.Println(renderStats(stats))
		if statsOnly {
			return nil
		}

		opts := store.QueryOpts{Limit: limit, Owner: owner}
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}
		results, err := s.QueryResults(ctx, opts)
		if err != nil {
			return fmt.Errorf("query results: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		fmt.Println()
		fmt.Println(renderResults(results))
		return nil
	},
}

func init() {
	f := historyCmd.Flags()
	f.StringP("owner", "o", "", "Only show sessions of this learner")
	f.IntP("limit", "n", 20, "Number of sessions to show")
	f.Duration("since", 0, "Only show sessions finished within this window (e.g. 168h)")
	f.Bool("stats", false, "Only print the per-kind summary")
}
