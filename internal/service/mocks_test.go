package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tamzid2001/docuflux/internal/domain"
)

type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		messages: []string{},
	}
}

func (m *MockLogger) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.record("INFO: " + msg)
}

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	if err == nil {
		err = errors.New("<nil>")
	}
	m.record("ERROR: " + msg + " - " + err.Error())
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.record("DEBUG: " + msg)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.record("WARN: " + msg)
}

func (m *MockLogger) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// MockVisionModel returns a fixed payload, or the payload keyed by the image bytes.
type MockVisionModel struct {
	mu       sync.Mutex
	Payload  []byte
	ByImage  map[string][]byte
	Err      error
	Calls    int
	Block    bool
	LastSeen *domain.CanonicalImage
}

func (m *MockVisionModel) Generate(ctx context.Context, img *domain.CanonicalImage) ([]byte, error) {
	m.mu.Lock()
	m.Calls++
	m.LastSeen = img
	payload := m.Payload
	if p, ok := m.ByImage[string(img.Data)]; ok {
		payload = p
	}
	err, block := m.Err, m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (m *MockVisionModel) Name() string { return "mock" }

func (m *MockVisionModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockSpreadsheetService records created spreadsheets and writes.
type MockSpreadsheetService struct {
	mu        sync.Mutex
	CreateErr error
	WriteErr  error
	Created   []*domain.SinkResource
	Tabs      map[string][]string
	Writes    map[string][][]string
	next      int
}

func NewMockSpreadsheetService() *MockSpreadsheetService {
	return &MockSpreadsheetService{
		Tabs:   map[string][]string{},
		Writes: map[string][][]string{},
	}
}

func (m *MockSpreadsheetService) CreateSpreadsheet(ctx context.Context, title string, tabs []string) (*domain.SinkResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.next++
	id := fmt.Sprintf("sheet-%d", m.next)
	res := &domain.SinkResource{ID: id, Title: title, URL: "https://sheets.test/" + id}
	m.Created = append(m.Created, res)
	m.Tabs[id] = tabs
	return res, nil
}

func (m *MockSpreadsheetService) WriteRows(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes[spreadsheetID+"|"+writeRange] = rows
	return nil
}

func (m *MockSpreadsheetService) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}

// MockRunRepository keeps records in memory and can be told to fail.
type MockRunRepository struct {
	mu      sync.Mutex
	Err     error
	Records []*domain.RunRecord
}

func (m *MockRunRepository) Record(ctx context.Context, record *domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Records = append(m.Records, record)
	return nil
}

func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.RunRecord(nil), m.Records...), nil
}
