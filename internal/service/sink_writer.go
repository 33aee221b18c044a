package service

import (
	"context"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
)

// Fixed tab layout of every created spreadsheet.
const (
	PrimaryTab        = "Sheet1"
	DescriptionTab    = "Description"
	DescriptionHeader = "Description"
)

// SpreadsheetSinkWriter creates one spreadsheet per result and writes the grid and
// description into it.
type SpreadsheetSinkWriter struct {
	sheets  domain.SpreadsheetService
	timeout time.Duration
	logger  domain.Logger
}

// NewSpreadsheetSinkWriter creates a new sink writer
func NewSpreadsheetSinkWriter(sheets domain.SpreadsheetService, timeout time.Duration, logger domain.Logger) *SpreadsheetSinkWriter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SpreadsheetSinkWriter{
		sheets:  sheets,
		timeout: timeout,
		logger:  logger,
	}
}

// Commit creates the spreadsheet and writes into it. Creation is never retried; if
// a write fails the created resource is returned inside the SinkWriteError.
func (w *SpreadsheetSinkWriter) Commit(ctx context.Context, result *domain.ExtractionResult, title string) (*domain.SinkResource, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	tabs := []string{PrimaryTab}
	if result.Description != "" {
		tabs = append(tabs, DescriptionTab)
	}

	resource, err := w.sheets.CreateSpreadsheet(ctx, title, tabs)
	if err != nil {
		pe := domain.NewPipelineError(domain.KindSinkCreateError, "failed to create spreadsheet", err)
		pe.Status = domain.StatusOf(err)
		return nil, pe
	}
	w.logger.Info("Spreadsheet created", "spreadsheet_id", resource.ID, "title", title)

	if len(result.Grid) > 0 {
		if err := w.sheets.WriteRows(ctx, resource.ID, PrimaryTab+"!A1", result.Grid); err != nil {
			return nil, w.writeFailure(resource, "failed to write grid", err)
		}
	}

	if result.Description != "" {
		rows := [][]string{{DescriptionHeader}, {result.Description}}
		if err := w.sheets.WriteRows(ctx, resource.ID, DescriptionTab+"!A1", rows); err != nil {
			return nil, w.writeFailure(resource, "failed to write description", err)
		}
	}

	return resource, nil
}

func (w *SpreadsheetSinkWriter) writeFailure(resource *domain.SinkResource, msg string, err error) error {
	w.logger.Error("Spreadsheet left without data", err, "spreadsheet_id", resource.ID, "url", resource.URL)
	pe := domain.NewPipelineError(domain.KindSinkWriteError, msg, err)
	pe.Status = domain.StatusOf(err)
	pe.Resource = resource
	return pe
}
