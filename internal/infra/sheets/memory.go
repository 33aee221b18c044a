package sheets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tamzid2001/docuflux/internal/domain"

	"github.com/google/uuid"
)

type memorySpreadsheet struct {
	title string
	tabs  map[string][][]string
}

// MemoryService keeps spreadsheets in process memory. It backs local runs and tests.
type MemoryService struct {
	mu     sync.RWMutex
	sheets map[string]*memorySpreadsheet
}

func NewMemoryService() *MemoryService {
	return &MemoryService{sheets: make(map[string]*memorySpreadsheet)}
}

func (m *MemoryService) CreateSpreadsheet(ctx context.Context, title string, tabs []string) (*domain.SinkResource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	sheet := &memorySpreadsheet{title: title, tabs: make(map[string][][]string, len(tabs))}
	for _, tab := range tabs {
		sheet.tabs[tab] = nil
	}

	m.mu.Lock()
	m.sheets[id] = sheet
	m.mu.Unlock()

	return &domain.SinkResource{ID: id, Title: title, URL: "memory://spreadsheets/" + id}, nil
}

// WriteRows accepts "Tab!A1" or "Tab" ranges. Rows replace the tab content.
func (m *MemoryService) WriteRows(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tab, anchor, _ := strings.Cut(writeRange, "!")
	if anchor != "" && anchor != "A1" {
		return fmt.Errorf("memory sheets only support writes anchored at A1, got %q", writeRange)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[spreadsheetID]
	if !ok {
		return fmt.Errorf("spreadsheet %s not found", spreadsheetID)
	}
	if _, ok := sheet.tabs[tab]; !ok {
		return fmt.Errorf("tab %q not found in spreadsheet %s", tab, spreadsheetID)
	}

	copied := make([][]string, len(rows))
	for i, row := range rows {
		copied[i] = append([]string(nil), row...)
	}
	sheet.tabs[tab] = copied
	return nil
}

// ReadRows returns a copy of a tab's rows.
func (m *MemoryService) ReadRows(spreadsheetID, tab string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sheet, ok := m.sheets[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("spreadsheet %s not found", spreadsheetID)
	}
	rows, ok := sheet.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("tab %q not found in spreadsheet %s", tab, spreadsheetID)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

// Tabs lists the tab names of a spreadsheet, sorted.
func (m *MemoryService) Tabs(spreadsheetID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sheet, ok := m.sheets[spreadsheetID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(sheet.tabs))
	for name := range sheet.tabs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of spreadsheets created so far.
func (m *MemoryService) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sheets)
}
