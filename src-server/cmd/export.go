package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"calplanner/src-server/model"
	"calplanner/src-server/selection"
	"calplanner/src-server/utils"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <projectID>",
	Short: "Write the visible events of a project as an iCalendar feed",
	Long: `Write the visible events of a project as an iCalendar feed.

--from and --to take RFC 3339 instants, plain dates, or phrases such as
"today", "next monday" or "in 2 weeks", read in TIMEZONE.`,
	Example: `  calplanner export 4f1c... --from today --to "in 2 weeks" -o week.ics`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		output, _ := cmd.Flags().GetString("output")

		as := utils.NewAppState()
		defer as.GracefulShutdown()
		if err := model.Migrate(cmd.Context(), as.BunDB); err != nil {
			return err
		}

		now := time.Now().In(as.Config.GetLocation())
		var window selection.Window
		if from != "" {
			start, err := utils.ParseMoment(as.When, from, now)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			window.Start = &start
		}
		if to != "" {
			end, err := utils.ParseMoment(as.When, to, now)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			window.End = &end
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return selection.ExportProject(cmd.Context(), as.BunDB, args[0], window, w)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("from", "", "leave out events ending before this moment")
	exportCmd.Flags().String("to", "", "leave out events starting after this moment")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}
