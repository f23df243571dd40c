package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/scheduler"
	"calplanner/src-server/utils"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [calendarID]",
	Short: "Fetch and reconcile one calendar, or every calendar with --all",
	Example: `  calplanner sync 0b6f3c1e-8d2a-4a57-9d0e-2f1f0f5d8a11
  calplanner sync --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return errors.New("give either a calendar id or --all")
		}

		as := utils.NewAppState()
		defer as.GracefulShutdown()
		if err := model.Migrate(cmd.Context(), as.BunDB); err != nil {
			return err
		}
		engine := reconcile.NewEngine(as.BunDB, as.HTTPClient)

		if all {
			summary, err := scheduler.SyncAll(cmd.Context(), as.BunDB, engine)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d calendars synced, %d failed\n", summary.Synced, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d calendars failed to sync", summary.Failed)
			}
			return nil
		}

		result, err := engine.Sync(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "calendar\t%s\n", result.CalendarID)
		fmt.Fprintf(tw, "modules created\t%d\n", result.ModulesCreated)
		fmt.Fprintf(tw, "modules removed\t%d\n", result.ModulesRemoved)
		fmt.Fprintf(tw, "events\t%d\n", result.EventsCreated)
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("all", false, "sync every calendar with an http(s) feed")
}
