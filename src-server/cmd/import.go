package cmd

import (
	"fmt"
	"os"

	"calplanner/src-server/model"
	"calplanner/src-server/projectconf"
	"calplanner/src-server/reconcile"
	"calplanner/src-server/utils"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <project.yaml>",
	Short: "Create a project from a YAML config and sync its calendars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		config, err := projectconf.Parse(data)
		if err != nil {
			return err
		}

		as := utils.NewAppState()
		defer as.GracefulShutdown()
		if err := model.Migrate(cmd.Context(), as.BunDB); err != nil {
			return err
		}

		project, err := projectconf.Import(cmd.Context(), as.BunDB, reconcile.NewEngine(as.BunDB, as.HTTPClient), config)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s created\n", project.ID)
		if base := as.Config.GetPublicBaseURL(); base != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "public feed: %s/public/projects/%s/ics\n", base, project.PublicToken)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
