package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

func newEventsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow terminal document events published by watchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if app.Events == nil {
				return errors.New("events need NATS_URL to be set")
			}
			enc := json.NewEncoder(c.out)
			return app.Events.SubscribeDocumentEvents(cmd.Context(), func(_ context.Context, event domain.DocumentEvent) error {
				if asJSON {
					return enc.Encode(event)
				}
				_, err := fmt.Fprintf(c.out, "%s  %s\n", event.At.Local().Format("15:04:05"), event.Summary())
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON lines")
	return cmd
}
