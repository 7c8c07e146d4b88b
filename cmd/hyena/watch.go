package main

import (
	"github.com/spf13/cobra"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Upload PDFs dropped into a directory (company_year[_quarter].pdf)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			app.Poller.AddNotifier(&terminalNotifier{w: c.out})
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return app.RunInbox(cmd.Context(), dir)
		},
	}
}
