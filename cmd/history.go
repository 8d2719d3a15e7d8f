package cmd

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/withobsrvr/stackctl/internal/output"
	"github.com/withobsrvr/stackctl/internal/storage"
)

var historyOpts struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent emissions",
	Long: `List the emissions recorded by generate, newest first. The history is
what generate uses to prune files a previous run wrote but the current one
did not.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("history is disabled")
		}

		ledger := storage.NewBoltDBStorage(&storage.BoltOptions{Path: cfg.History.Path})
		if err := ledger.Open(); err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer ledger.Close()

		emissions, err := ledger.List(cmd.Context(), historyOpts.limit)
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}
		if len(emissions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No emissions recorded")
			return nil
		}

		tbl := output.NewTable("REQUEST", "FORMAT", "DIRECTORY", "FILES", "WRITTEN", "PRUNED", "AGE")
		for _, e := range emissions {
			tbl.Row(
				shortID(e.ID),
				string(e.Format),
				e.Dir,
				fmt.Sprint(len(e.Files)),
				fmt.Sprint(e.Written),
				fmt.Sprint(e.Pruned),
				units.HumanDuration(time.Since(e.CreatedAt))+" ago",
			)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tbl.String())
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyOpts.limit, "limit", 20, "maximum number of emissions to show (0 for all)")
}
