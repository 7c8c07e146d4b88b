package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the backend API, vector store and cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			report := app.Health.Health(cmd.Context())
			for _, probe := range []domain.ProbeResult{report.API, report.VectorStore, report.KeyValue} {
				mark := "✓"
				if !probe.OK {
					mark = "✗"
				}
				line := fmt.Sprintf("%s %-8s %s", mark, probe.Name, probe.Status)
				if probe.Message != "" {
					line += "  " + probe.Message
				}
				fmt.Fprintln(c.out, line)
			}
			if !report.Healthy() {
				return errors.New("backend is unhealthy")
			}
			return nil
		},
	}
}
