package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tamzid2001/docuflux/internal/config"
	"github.com/tamzid2001/docuflux/internal/domain"
	"github.com/tamzid2001/docuflux/internal/infra/sheets"
	"github.com/tamzid2001/docuflux/internal/monitoring"
	"github.com/tamzid2001/docuflux/internal/repository"
	"github.com/tamzid2001/docuflux/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tablePayload = `{"grid":[["Item","Qty"],["Bolts","12"]],"description":"Parts list"}`

type stubModel struct {
	payload []byte
	err     error
}

func (m *stubModel) Generate(ctx context.Context, img *domain.CanonicalImage) ([]byte, error) {
	return m.payload, m.err
}

func (m *stubModel) Name() string { return "stub" }

type testServer struct {
	handler   http.Handler
	sheets    *sheets.MemoryService
	metrics   *monitoring.Metrics
	uploadDir string
	runner    *service.BatchRunner
}

func newTestServer(t *testing.T, model domain.VisionModel) *testServer {
	t.Helper()
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("BATCH_MAX_FILES", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	cfg := config.NewConfig()

	logger := NewMockHandlerLogger()
	metrics := monitoring.NewMetrics()
	mem := sheets.NewMemoryService()
	runs := repository.NewMemoryRunRepository(0)
	batches := repository.NewMemoryBatchStore()
	uploadDir := t.TempDir()

	pipeline := service.NewPipeline(
		service.NewRasterNormalizer(service.DefaultRasterOptions(), logger),
		service.NewExtractionClient(model, time.Second, logger),
		service.NewSpreadsheetSinkWriter(mem, time.Second, logger),
		runs,
		metrics,
		logger,
	)
	container := &config.Container{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Model:       model,
		Sheets:      mem,
		Runs:        runs,
		Batches:     batches,
		Files:       repository.NewLocalFileStore(uploadDir, logger),
		Pipeline:    pipeline,
		BatchRunner: service.NewBatchRunner(pipeline, batches, 2, cfg.GetBatchMaxFiles(), metrics, logger),
	}
	return &testServer{handler: NewRouter(container), sheets: mem, metrics: metrics, uploadDir: uploadDir, runner: container.BatchRunner}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

type upload struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, target string, uploads ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+u.field+`"; filename="`+u.filename+`"`)
		if u.contentType != "" {
			h.Set("Content-Type", u.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, 4))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x * 20), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "docuflux", body["service"])
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestRouter_ExtractImage(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(multipartRequest(t, "/api/v1/extractions",
		upload{field: "file", filename: "parts.png", contentType: "image/png", data: pngBytes(t, 8)}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "Image processed, transcribed, and sheet created successfully", body["message"])
	url, _ := body["sheetUrl"].(string)
	assert.True(t, strings.HasPrefix(url, "memory://spreadsheets/"), url)
	assert.Equal(t, 1, s.sheets.Count())
}

func TestRouter_ExtractMissingFile(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(multipartRequest(t, "/api/v1/extractions",
		upload{field: "other", filename: "x.png", data: []byte("x")}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "File is required", decodeBody(t, rr)["error"])
}

func TestRouter_ExtractNotMultipart(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extractions", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestRouter_ExtractTooLarge(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	big := bytes.Repeat([]byte{0xff}, (1<<20)+1)
	rr := s.do(multipartRequest(t, "/api/v1/extractions",
		upload{field: "file", filename: "huge.png", contentType: "image/png", data: big}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "too large")
}

func TestRouter_ExtractUnsupportedIsClientError(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(multipartRequest(t, "/api/v1/extractions",
		upload{field: "file", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	msg, _ := decodeBody(t, rr)["error"].(string)
	assert.True(t, strings.HasPrefix(msg, "Error processing document: normalize failed:"), msg)
	assert.Equal(t, 0, s.sheets.Count())
}

func TestRouter_ExtractSchemaViolationIsServerError(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte("Here is the table you asked for.")})

	rr := s.do(multipartRequest(t, "/api/v1/extractions",
		upload{field: "file", filename: "scan.png", contentType: "image/png", data: pngBytes(t, 8)}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	msg, _ := body["error"].(string)
	assert.True(t, strings.HasPrefix(msg, "Error processing document: extract failed:"), msg)
	assert.NotContains(t, body, "sheetUrl")
}

func TestRouter_BatchSubmitAndPoll(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(multipartRequest(t, "/api/v1/batches",
		upload{field: "files", filename: "a.png", contentType: "image/png", data: pngBytes(t, 8)},
		upload{field: "files", filename: "b.png", contentType: "image/png", data: pngBytes(t, 9)},
	))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	id, _ := body["batchId"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, float64(2), body["total"])

	var status domain.BatchStatus
	require.Eventually(t, func() bool {
		poll := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+id, nil))
		if poll.Code != http.StatusOK {
			return false
		}
		status = domain.BatchStatus{}
		return json.Unmarshal(poll.Body.Bytes(), &status) == nil && status.State == domain.BatchComplete
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, status.Succeeded)
	assert.NotEmpty(t, status.FirstURL)
}

func TestRouter_BatchTooManyFiles(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(multipartRequest(t, "/api/v1/batches",
		upload{field: "files", filename: "a.png", contentType: "image/png", data: pngBytes(t, 8)},
		upload{field: "files", filename: "b.png", contentType: "image/png", data: pngBytes(t, 9)},
		upload{field: "files", filename: "c.png", contentType: "image/png", data: pngBytes(t, 10)},
	))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, s.sheets.Count())
}

func TestRouter_BatchAfterShutdown(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})
	require.NoError(t, s.runner.Shutdown(context.Background()))

	rr := s.do(multipartRequest(t, "/api/v1/batches",
		upload{field: "files", filename: "a.png", contentType: "image/png", data: pngBytes(t, 8)}))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, 0, s.sheets.Count())
}

func TestRouter_BatchUnknown(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Batch not found", body["error"])
}

func TestRouter_Runs(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})
	s.do(multipartRequest(t, "/api/v1/extractions",
		upload{field: "file", filename: "parts.png", contentType: "image/png", data: pngBytes(t, 8)}))

	rr := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "parts", body.Runs[0].Title)
	assert.Equal(t, domain.RunDone, body.Runs[0].State)

	bad := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRouter_MetricsAndCORS(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})
	s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{method="GET",path="/health",status="200"}`)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/extractions", nil)
	preflight.Header.Set("Origin", "http://localhost:5173")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := s.do(preflight)
	assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UploadStoresFileUntouched(t *testing.T) {
	model := &stubModel{payload: []byte(tablePayload)}
	s := newTestServer(t, model)

	rr := s.do(multipartRequest(t, "/api/v1/files",
		upload{field: "file", filename: "my scan.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4 raw")}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	path, _ := body["path"].(string)
	require.True(t, strings.HasPrefix(path, "/uploads/"), path)
	assert.True(t, strings.HasSuffix(path, "-my_scan.pdf"), path)

	data, err := os.ReadFile(filepath.Join(s.uploadDir, strings.TrimPrefix(path, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 raw", string(data))
	assert.Equal(t, 0, s.sheets.Count())
}

func TestRouter_UploadMissingFile(t *testing.T) {
	s := newTestServer(t, &stubModel{payload: []byte(tablePayload)})

	rr := s.do(multipartRequest(t, "/api/v1/files",
		upload{field: "files", filename: "a.png", data: []byte("x")}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
