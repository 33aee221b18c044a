package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/tamzid2001/docuflux/internal/config"
	"github.com/tamzid2001/docuflux/internal/domain"

	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file>...",
		Short: "Extract several documents concurrently, one spreadsheet each",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *config.Container) error {
				docs := make([]*domain.InputDocument, 0, len(args))
				for _, path := range args {
					doc, err := loadDocument(path, c.Config.GetMaxFileSize())
					if err != nil {
						return err
					}
					docs = append(docs, doc)
				}

				result, err := c.BatchRunner.Run(ctx, docs)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FILE\tRESULT\tSHEET")
				for i, res := range result.Results {
					outcome := "ok"
					if f := res.Failure; f != nil {
						outcome = fmt.Sprintf("%s failed: %s", f.Stage, f.Reason)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", docs[i].DisplayName, outcome, res.SheetURL())
				}
				_ = tw.Flush()
				fmt.Fprintf(cmd.OutOrStdout(), "%d succeeded, %d failed\n", result.Succeeded, result.Failed)

				if result.Failed > 0 {
					return fmt.Errorf("%d of %d documents failed", result.Failed, len(docs))
				}
				return nil
			})
		},
	}
}
