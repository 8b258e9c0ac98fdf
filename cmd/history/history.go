// Package history implements the history subcommand listing past
// ingestion runs.
package history

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jiangyuyi/feather-trace/internal/conf"
	"github.com/jiangyuyi/feather-trace/internal/datastore"
)

// Command creates the history subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(settings, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", viper.GetInt("history.limit"), "Number of runs to show")

	return cmd
}

func runHistory(settings *conf.Settings, limit int) error {
	if limit <= 0 {
		limit = 10
	}

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no datastore enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer ds.Close()

	scans, err := ds.GetRecentScans(limit)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Println("No ingestion runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tRANGE\tPROCESSED\tSTATUS")
	for _, s := range scans {
		rangeCol := "-"
		if s.RangeStart != "" || s.RangeEnd != "" {
			rangeCol = fmt.Sprintf("%s..%s", s.RangeStart, s.RangeEnd)
		}
		fmt.Fprintf(w, "%s\t%.1fs\t%s\t%d\t%s\n",
			s.StartTime.Format("2006-01-02 15:04:05"),
			s.DurationSeconds,
			rangeCol,
			s.ProcessedCount,
			s.Status)
	}
	return w.Flush()
}
