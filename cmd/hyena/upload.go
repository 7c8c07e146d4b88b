package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hyena-client/internal/bootstrap"
	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/usecase"
)

func newUploadCmd(c *cli) *cobra.Command {
	var (
		req  domain.UploadRequest
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF report and follow its processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			notifier := &terminalNotifier{w: c.out}
			app.Poller.AddNotifier(notifier)

			req.Path = args[0]
			doc, err := app.IngestUC.Upload(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "uploaded %s as %s, processing...\n", doc.Filename, doc.ID)
			if !wait {
				app.Poller.Cancel(doc.ID)
				return nil
			}
			return finishPolls(cmd.Context(), c, app, notifier, []string{doc.ID})
		},
	}
	cmd.Flags().StringVar(&req.Company, "company", "", "company the report belongs to (required)")
	cmd.Flags().IntVar(&req.Year, "year", 0, "fiscal year of the report (required)")
	cmd.Flags().StringVar(&req.Quarter, "quarter", "", "fiscal quarter, e.g. Q4")
	cmd.Flags().StringVar(&req.Filename, "name", "", "file name to store on the backend")
	cmd.Flags().BoolVar(&wait, "wait", true, "poll until processing finishes")
	return cmd
}

func newPollCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "poll <doc-id>...",
		Short: "Poll documents until they finish processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			notifier := &terminalNotifier{w: c.out}
			app.Poller.AddNotifier(notifier)
			for _, id := range args {
				if _, ok := app.Documents.Get(id); !ok {
					app.Documents.Put(domain.Document{ID: id, Status: domain.StatusProcessing})
				}
				app.Poller.Register(cmd.Context(), id)
			}
			return finishPolls(cmd.Context(), c, app, notifier, args)
		},
	}
}

func newResumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume polling for documents left unfinished by an earlier run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if app.Config.PostgresDSN == "" {
				return fmt.Errorf("resume needs POSTGRES_DSN to be set")
			}
			notifier := &terminalNotifier{w: c.out}
			app.Poller.AddNotifier(notifier)
			started, err := app.IngestUC.Resume(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "resumed %d polls\n", started)
			ids := make([]string, 0, started)
			for _, doc := range app.Documents.List(domain.DocumentFilter{}) {
				ids = append(ids, doc.ID)
			}
			return finishPolls(cmd.Context(), c, app, notifier, ids)
		},
	}
}

// finishPolls waits for every poll and reports documents that never reached a
// terminal status.
func finishPolls(ctx context.Context, c *cli, app *bootstrap.App, notifier *terminalNotifier, ids []string) error {
	if err := waitPolls(ctx, app.Poller); err != nil {
		return err
	}
	for _, id := range ids {
		doc, ok := app.Documents.Get(id)
		if ok && !doc.Status.IsTerminal() {
			fmt.Fprintf(c.out, "%s %s is still %s, stopped polling\n", doc.Status.Label(), id, doc.Status)
		}
	}
	if n := notifier.failures(); n > 0 {
		return fmt.Errorf("%d document(s) did not complete", n)
	}
	return nil
}

func waitPolls(ctx context.Context, poller *usecase.Poller) error {
	done := make(chan struct{})
	go func() {
		poller.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
