package main

import (
	"context"
	"fmt"

	"github.com/tamzid2001/docuflux/internal/config"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract the table in one PDF or image into a new spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *config.Container) error {
				doc, err := loadDocument(args[0], c.Config.GetMaxFileSize())
				if err != nil {
					return err
				}

				result := c.Pipeline.Run(ctx, doc)
				out := cmd.OutOrStdout()
				if f := result.Failure; f != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s failed (%s): %s\n", f.Stage, f.Kind, f.Reason)
					if url := result.SheetURL(); url != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "empty spreadsheet left at %s\n", url)
					}
					return fmt.Errorf("%s failed", f.Stage)
				}

				fmt.Fprintln(out, result.Message)
				fmt.Fprintln(out, result.SheetURL())
				return nil
			})
		},
	}
}
