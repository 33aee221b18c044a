package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/tamzid2001/docuflux/internal/domain"
	apperrors "github.com/tamzid2001/docuflux/pkg/errors"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling parts to temporary files.
const multipartMemory = 32 << 20

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeAppError writes an AppError with its own status code.
func writeAppError(w http.ResponseWriter, err *apperrors.AppError) {
	writeError(w, err.StatusCode, err.Message)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// parseUpload limits the request body and parses the multipart form. Both a body
// over the limit and a malformed form are the caller's fault.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBody int64) *apperrors.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewValidationError(fmt.Sprintf("File too large. Maximum size is %s.", humanBytes(maxBody)))
		}
		return apperrors.NewValidationError("Invalid multipart form", err.Error())
	}
	return nil
}

// readDocument reads one uploaded part into an input document.
func readDocument(fh *multipart.FileHeader, maxFileSize int64) (*domain.InputDocument, *apperrors.AppError) {
	name := sanitizeFilename(fh.Filename)
	if fh.Size > maxFileSize {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("File %s too large. Maximum size is %s.", name, humanBytes(maxFileSize)))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("Could not read uploaded file", err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return nil, apperrors.NewValidationError("Could not read uploaded file", err.Error())
	}
	if int64(len(data)) > maxFileSize {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("File %s too large. Maximum size is %s.", name, humanBytes(maxFileSize)))
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("File %s is empty", name))
	}

	return &domain.InputDocument{
		Data:        data,
		MediaKind:   mediaKindOf(fh.Header.Get("Content-Type"), name),
		DisplayName: name,
	}, nil
}

// mediaKindOf prefers the declared part type and falls back to the extension
// when the client sent nothing useful.
func mediaKindOf(contentType, filename string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return domain.MediaKindFromFilename(filename)
}

// sanitizeFilename strips any path components a client may have sent.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "document"
	}
	return name
}

func humanBytes(n int64) string {
	const mb = 1 << 20
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
