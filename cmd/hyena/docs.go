package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

func newDocsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List, inspect, delete and export ingested documents",
	}
	cmd.AddCommand(newDocsListCmd(c), newDocsStatusCmd(c), newDocsDeleteCmd(c), newDocsExportCmd(c))
	return cmd
}

func addFilterFlags(cmd *cobra.Command, filter *domain.DocumentFilter) {
	cmd.Flags().StringVar(&filter.Company, "company", "", "only documents of this company")
	cmd.Flags().IntVar(&filter.Year, "year", 0, "only documents of this year")
}

func newDocsListCmd(c *cli) *cobra.Command {
	var filter domain.DocumentFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the documents known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if err := app.CatalogUC.Refresh(cmd.Context()); err != nil {
				return err
			}
			printDocuments(c, app.CatalogUC.List(filter))
			if filter == (domain.DocumentFilter{}) {
				fmt.Fprintf(c.out, "\ncompanies: %v\nyears: %v\n", app.Documents.Companies(), app.Documents.Years())
			}
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func printDocuments(c *cli, docs []domain.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(c.out, "no documents")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tCOMPANY\tYEAR\tQUARTER\tSTATUS\tCHUNKS\tTEXT/TABLE/IMAGE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s %s\t%d\t%d/%d/%d\n",
			d.ID, d.Filename, d.Company, d.Year, d.Quarter, d.Status.Label(), d.Status,
			d.TotalChunks, d.TextChunks, d.TableChunks, d.ImageChunks)
	}
	_ = tw.Flush()
}

func newDocsStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <doc-id>",
		Short: "Query the processing status of one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			report, err := app.Backend.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s  chunks=%d (text %d, table %d, image %d)\n",
				report.Status.Label(), report.Status, report.TotalChunks,
				report.TextChunks, report.TableChunks, report.ImageChunks)
			if report.Error != nil && *report.Error != "" {
				fmt.Fprintln(c.out, "error:", *report.Error)
			}
			return nil
		},
	}
}

func newDocsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id>",
		Short: "Delete a document and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if err := app.CatalogUC.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "deleted", args[0])
			return nil
		},
	}
}

func newDocsExportCmd(c *cli) *cobra.Command {
	var filter domain.DocumentFilter
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the document list to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if err := app.CatalogUC.Refresh(cmd.Context()); err != nil {
				return err
			}
			if len(app.CatalogUC.List(filter)) == 0 {
				return errors.New("no documents match the filter")
			}
			key, err := app.ExportUC.ExportDocuments(cmd.Context(), filter)
			if err != nil {
				return err
			}
			path, err := app.Storage.Path(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, "saved", path)
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}
