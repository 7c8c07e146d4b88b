package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hyena-client/internal/bootstrap"
	"github.com/kirillkom/hyena-client/internal/core/domain"
)

type askOptions struct {
	filters domain.QueryFilters
	html    bool
	export  bool
}

func newAskCmd(c *cli) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question; with no argument, read one question per line from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return askOnce(cmd, c, app, strings.Join(args, " "), opts)
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(c.out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(c.out)
					return scanner.Err()
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if err := askOnce(cmd, c, app, question, opts); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
				fmt.Fprintln(c.out)
			}
		},
	}
	cmd.Flags().StringVar(&opts.filters.Company, "company", "", "restrict retrieval to one company")
	cmd.Flags().IntVar(&opts.filters.Year, "year", 0, "restrict retrieval to one fiscal year")
	cmd.Flags().StringVar(&opts.filters.Quarter, "quarter", "", "restrict retrieval to one quarter (Q1..Q4)")
	cmd.Flags().IntVar(&opts.filters.TopK, "top-k", domain.DefaultTopK, "number of evidence chunks to retrieve")
	cmd.Flags().BoolVar(&opts.html, "html", false, "print the rendered markup instead of streaming text")
	cmd.Flags().BoolVar(&opts.export, "export", false, "save the answer page and evidence workbook to the export directory")
	return cmd
}

func askOnce(cmd *cobra.Command, c *cli, app *bootstrap.App, question string, opts askOptions) error {
	observer := &terminalObserver{w: c.out, html: opts.html}
	answer, err := app.AskUC.Ask(cmd.Context(), question, opts.filters, observer)
	if err != nil {
		return err
	}
	if !opts.export {
		return nil
	}
	keys, err := app.ExportUC.ExportAnswer(cmd.Context(), answer)
	if err != nil {
		return fmt.Errorf("export answer: %w", err)
	}
	for _, key := range keys {
		path, err := app.Storage.Path(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "saved", path)
	}
	return nil
}
