package domain

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"time"
)

// Media kinds accepted at the ingestion boundary.
const (
	MediaKindPDF  = "application/pdf"
	MediaKindJPEG = "image/jpeg"
	MediaKindPNG  = "image/png"
	MediaKindWebP = "image/webp"
	MediaKindGIF  = "image/gif"
	MediaKindBMP  = "image/bmp"
	MediaKindTIFF = "image/tiff"
)

// InputDocument is the raw upload. It is not modified after it is received.
type InputDocument struct {
	Data        []byte
	MediaKind   string
	DisplayName string
}

// IsPDF reports whether the declared media kind is a PDF.
func (d *InputDocument) IsPDF() bool {
	k := NormalizeMediaKind(d.MediaKind)
	return k == MediaKindPDF
}

var extensionKinds = map[string]string{
	".pdf":  MediaKindPDF,
	".jpg":  MediaKindJPEG,
	".jpeg": MediaKindJPEG,
	".png":  MediaKindPNG,
	".webp": MediaKindWebP,
	".gif":  MediaKindGIF,
	".bmp":  MediaKindBMP,
	".tif":  MediaKindTIFF,
	".tiff": MediaKindTIFF,
}

// MediaKindFromFilename guesses a media kind from the file extension, or returns
// "application/octet-stream".
func MediaKindFromFilename(name string) string {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(name))]; ok {
		return kind
	}
	return "application/octet-stream"
}

// NormalizeMediaKind lower-cases a media kind, strips parameters and resolves aliases.
func NormalizeMediaKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if i := strings.Index(k, ";"); i >= 0 {
		k = strings.TrimSpace(k[:i])
	}
	switch k {
	case "pdf", "application/x-pdf":
		return MediaKindPDF
	case "image/jpg", "image/pjpeg":
		return MediaKindJPEG
	case "image/x-ms-bmp":
		return MediaKindBMP
	}
	return k
}

// CanonicalImage is the single raster handed to the extraction step.
type CanonicalImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// DataURI renders the image as a base64 data URI.
func (c *CanonicalImage) DataURI() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

// Format returns the subtype of the MIME type, e.g. "jpeg".
func (c *CanonicalImage) Format() string {
	return strings.TrimPrefix(c.MIMEType, "image/")
}

// Release drops the pixel buffer so it can be collected before the request ends.
func (c *CanonicalImage) Release() {
	if c == nil {
		return
	}
	c.Data = nil
}

// ExtractionResult is a validated grid plus description.
type ExtractionResult struct {
	Grid        [][]string `json:"grid"`
	Description string     `json:"description"`
}

// RowCount returns the number of grid rows.
func (r *ExtractionResult) RowCount() int {
	return len(r.Grid)
}

// SinkResource identifies a created spreadsheet.
type SinkResource struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

const fallbackTitleLayout = "2006-01-02 15:04:05"

// DeriveTitle strips the extension from a display name. Without a usable name it
// falls back to a timestamped title.
func DeriveTitle(displayName string, now time.Time) string {
	base := strings.TrimSpace(filepath.Base(strings.ReplaceAll(displayName, "\\", "/")))
	if base == "." || base == "/" {
		base = ""
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return "Extraction " + now.UTC().Format(fallbackTitleLayout)
	}
	return base
}

// ExtractionInstruction is the fixed prompt sent with every image. Backends pair it
// with a declared response schema; it never changes per request.
const ExtractionInstruction = "Transcribe all tabular content from this image. " +
	"Return a JSON object with two keys: \"grid\", a two-dimensional array of strings where each " +
	"inner array is one row of the table in reading order, and \"description\", a short plain-text " +
	"description of what the document is. Copy cell text exactly as printed, use an empty string " +
	"for empty cells, and do not add commentary outside the JSON object."
