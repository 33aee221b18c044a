package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDeriveTitle(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	tests := []struct {
		name        string
		displayName string
		want        string
	}{
		{name: "PDF extension stripped", displayName: "invoice.pdf", want: "invoice"},
		{name: "Image extension stripped", displayName: "scan-01.JPG", want: "scan-01"},
		{name: "Only last extension stripped", displayName: "q3.report.pdf", want: "q3.report"},
		{name: "No extension", displayName: "ledger", want: "ledger"},
		{name: "Path components dropped", displayName: "C:\\Users\\me\\table.png", want: "table"},
		{name: "Empty name falls back", displayName: "", want: "Extraction 2024-03-09 14:05:00"},
		{name: "Extension only falls back", displayName: ".pdf", want: "Extraction 2024-03-09 14:05:00"},
		{name: "Whitespace falls back", displayName: "   ", want: "Extraction 2024-03-09 14:05:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.displayName, now); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.displayName, got, tt.want)
			}
		})
	}
}

func TestNormalizeMediaKind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"application/pdf", MediaKindPDF},
		{"PDF", MediaKindPDF},
		{"image/jpg", MediaKindJPEG},
		{"image/PNG", MediaKindPNG},
		{"image/jpeg; charset=binary", MediaKindJPEG},
		{"text/plain", "text/plain"},
	}

	for _, tt := range tests {
		if got := NormalizeMediaKind(tt.in); got != tt.want {
			t.Errorf("NormalizeMediaKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want Stage
	}{
		{KindUnsupportedFormat, StageNormalize},
		{KindDecodeError, StageNormalize},
		{KindRasterizationError, StageNormalize},
		{KindExtractionTimeout, StageExtract},
		{KindSchemaViolation, StageExtract},
		{KindUpstreamError, StageExtract},
		{KindSinkCreateError, StageSink},
		{KindSinkWriteError, StageSink},
	}

	for _, tt := range tests {
		if got := StageOf(tt.kind); got != tt.want {
			t.Errorf("StageOf(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestPipelineError_Wrapping(t *testing.T) {
	cause := errors.New("connection reset")
	pe := NewPipelineError(KindUpstreamError, "extraction request failed", cause)
	pe.Status = 503
	wrapped := fmt.Errorf("stage failed: %w", pe)

	if !IsKind(wrapped, KindUpstreamError) {
		t.Fatal("expected wrapped error to report UpstreamError")
	}
	if IsKind(wrapped, KindSchemaViolation) {
		t.Fatal("did not expect SchemaViolation")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if !strings.Contains(pe.Error(), "status 503") {
		t.Errorf("expected status in message, got %q", pe.Error())
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain error should not have a kind")
	}
}

func TestCanonicalImage_DataURI(t *testing.T) {
	img := &CanonicalImage{Data: []byte("abc"), MIMEType: MediaKindJPEG}

	if got, want := img.DataURI(), "data:image/jpeg;base64,YWJj"; got != want {
		t.Errorf("DataURI() = %q, want %q", got, want)
	}
	if img.Format() != "jpeg" {
		t.Errorf("Format() = %q, want jpeg", img.Format())
	}

	img.Release()
	if img.Data != nil {
		t.Error("Release should drop the buffer")
	}
}

func TestBatchResult_URLs(t *testing.T) {
	b := &BatchResult{Results: []*PipelineResult{
		{Resource: &SinkResource{URL: "u1"}},
		{Failure: &Failure{Stage: StageExtract}},
		{Resource: &SinkResource{URL: "u2"}},
	}}

	urls := b.URLs()
	if len(urls) != 2 || urls[0] != "u1" || urls[1] != "u2" {
		t.Errorf("URLs() = %v", urls)
	}
}

func TestMediaKindFromFilename(t *testing.T) {
	tests := map[string]string{
		"scan.PNG":       MediaKindPNG,
		"a/b/report.pdf": MediaKindPDF,
		"photo.jpeg":     MediaKindJPEG,
		"fax.tif":        MediaKindTIFF,
		"notes.txt":      "application/octet-stream",
		"no-extension":   "application/octet-stream",
	}
	for name, want := range tests {
		if got := MediaKindFromFilename(name); got != want {
			t.Errorf("MediaKindFromFilename(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestInputDocument_IsPDF(t *testing.T) {
	if !(&InputDocument{MediaKind: "application/pdf; charset=binary"}).IsPDF() {
		t.Error("parameterized PDF kind should be a PDF")
	}
	if (&InputDocument{MediaKind: MediaKindPNG}).IsPDF() {
		t.Error("PNG should not be a PDF")
	}
}

func TestExtractionResult_RowCount(t *testing.T) {
	r := &ExtractionResult{Grid: [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}}}
	if r.RowCount() != 3 {
		t.Errorf("RowCount() = %d, want 3", r.RowCount())
	}
}

func TestRunState_IsTerminal(t *testing.T) {
	for _, s := range []RunState{RunReceived, RunNormalizing, RunExtracting, RunSinking} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []RunState{RunDone, RunFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
