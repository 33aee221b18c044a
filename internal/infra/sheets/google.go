package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/tamzid2001/docuflux/internal/domain"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const spreadsheetURLPrefix = "https://docs.google.com/spreadsheets/d/"

// APIError is a failed Sheets API call with its HTTP status.
type APIError struct {
	Op     string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sheets %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("sheets %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) StatusCode() int { return e.Status }

// GoogleSheetsService implements domain.SpreadsheetService on the Sheets v4 API
type GoogleSheetsService struct {
	svc    *gsheets.Service
	logger domain.Logger
}

// NewGoogleSheetsService creates the Sheets client once; it is shared by all runs.
func NewGoogleSheetsService(ctx context.Context, logger domain.Logger, opts ...option.ClientOption) (*GoogleSheetsService, error) {
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &GoogleSheetsService{svc: svc, logger: logger}, nil
}

// CreateSpreadsheet creates a spreadsheet with the given tabs, in order.
func (s *GoogleSheetsService) CreateSpreadsheet(ctx context.Context, title string, tabs []string) (*domain.SinkResource, error) {
	sheetList := make([]*gsheets.Sheet, 0, len(tabs))
	for i, tab := range tabs {
		sheetList = append(sheetList, &gsheets.Sheet{
			Properties: &gsheets.SheetProperties{Title: tab, Index: int64(i)},
		})
	}

	created, err := s.svc.Spreadsheets.Create(&gsheets.Spreadsheet{
		Properties: &gsheets.SpreadsheetProperties{Title: title},
		Sheets:     sheetList,
	}).Fields("spreadsheetId", "spreadsheetUrl").Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError("create", err)
	}
	if created.SpreadsheetId == "" {
		return nil, &APIError{Op: "create", Err: errors.New("response carried no spreadsheet id")}
	}

	url := created.SpreadsheetUrl
	if url == "" {
		url = spreadsheetURLPrefix + created.SpreadsheetId
	}
	s.logger.Debug("Sheets spreadsheet created", "spreadsheet_id", created.SpreadsheetId)

	return &domain.SinkResource{ID: created.SpreadsheetId, Title: title, URL: url}, nil
}

// WriteRows writes rows starting at writeRange. Values are stored as entered (RAW),
// so nothing is parsed as a number, date or formula.
func (s *GoogleSheetsService) WriteRows(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, writeRange, &gsheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrapAPIError("write", err)
	}
	return nil
}

func wrapAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Op: op, Status: gerr.Code, Err: err}
	}
	return &APIError{Op: op, Err: err}
}
