package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/franksops/lzstage/store"
)

var statusState string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the transfer journal of previous runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(cfg.StateDir, "state.db")
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No transfers recorded.")
			return nil
		}

		journal, err := store.NewBoltStore(path)
		if err != nil {
			return err
		}
		defer journal.Close()

		records, err := journal.ListJobs()
		if err != nil {
			return err
		}
		return printJournal(cmd.OutOrStdout(), records, store.JobState(statusState))
	},
}

func printJournal(w io.Writer, records []*store.JobRecord, state store.JobState) error {
	sort.Slice(records, func(i, k int) bool {
		return records[i].ID < records[k].ID
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tBYTES\tUPDATED\tDESTINATION\tERROR")
	counts := make(map[store.JobState]int)
	for _, r := range records {
		counts[r.State]++
		if state != "" && r.State != state {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			r.State, r.TotalBytes, r.UpdatedAt.Format("2006-01-02 15:04:05"), r.DestinationPath, r.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d pending, %d in progress, %d completed, %d failed\n",
		counts[store.StatePending], counts[store.StateInProgress], counts[store.StateCompleted], counts[store.StateFailed])
	return err
}

func init() {
	statusCmd.Flags().StringVar(&statusState, "state", "", "Only show jobs in this state (Pending, InProgress, Completed, Failed)")
}
