package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tamzid2001/docuflux/internal/config"
	"github.com/tamzid2001/docuflux/internal/domain"

	"github.com/spf13/cobra"
)

// containerFactory is replaced in tests.
var containerFactory = config.NewContainer

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docuflux",
		Short: "Turn scanned tables into spreadsheets",
		Long: `docuflux rasterizes a PDF or image, asks a vision model for its tabular
content, and writes the result into a new spreadsheet.`,
		SilenceUsage: true,
	}
	root.AddCommand(newExtractCmd(), newBatchCmd())
	return root
}

// withContainer builds the container for one command and always closes it.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *config.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := containerFactory(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer c.Close()
	return fn(ctx, c)
}

// loadDocument reads a file from disk into an input document.
func loadDocument(path string, maxSize int64) (*domain.InputDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, domain.ErrInvalidFile)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, domain.ErrFileTooLarge, info.Size(), maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", path, domain.ErrInvalidFile)
	}
	name := filepath.Base(path)
	return &domain.InputDocument{
		Data:        data,
		MediaKind:   domain.MediaKindFromFilename(name),
		DisplayName: name,
	}, nil
}
