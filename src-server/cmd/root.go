package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "calplanner",
	Short: "Aggregate calendar feeds into filterable project schedules",
	Long: `CalPlanner subscribes projects to remote iCalendar feeds, groups their
events into modules, and re-exports the modules you keep as a feed of its own.

  calplanner serve                 # HTTP API, metrics and periodic sync
  calplanner migrate               # create or upgrade the database schema
  calplanner import project.yaml   # create a project from a config file
  calplanner sync --all            # sync every calendar now
  calplanner export <projectID>    # write a project's feed to stdout`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
