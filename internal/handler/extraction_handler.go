// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/tamzid2001/docuflux/internal/domain"
	apperrors "github.com/tamzid2001/docuflux/pkg/errors"
)

// ExtractionHandler turns one uploaded document into a spreadsheet.
type ExtractionHandler struct {
	pipeline    domain.PipelineRunner
	maxFileSize int64
	logger      domain.Logger
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(pipeline domain.PipelineRunner, maxFileSize int64, logger domain.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		pipeline:    pipeline,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

type extractionResponse struct {
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	SheetURL string `json:"sheetUrl,omitempty"`
	RunID    string `json:"runId,omitempty"`
}

// Extract handles POST /api/v1/extractions with a multipart "file" field.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if appErr := parseUpload(w, r, h.maxFileSize+multipartMemory); appErr != nil {
		writeAppError(w, appErr)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	doc, appErr := readDocument(files[0], h.maxFileSize)
	if appErr != nil {
		writeAppError(w, appErr)
		return
	}

	result := h.pipeline.Run(r.Context(), doc)
	if f := result.Failure; f != nil {
		appErr := apperrors.FromFailure(f)
		requestID, _ := GetRequestID(r)
		if apperrors.IsType(appErr, apperrors.ErrorTypeValidation) {
			h.logger.Warn("Extraction rejected input", "request_id", requestID, "run_id", result.RunID, "kind", f.Kind, "error", f.Err)
		} else {
			h.logger.Error("Extraction request failed", f.Err, "request_id", requestID, "run_id", result.RunID, "stage", f.Stage, "kind", f.Kind)
		}
		writeJSON(w, apperrors.GetStatusCode(appErr), extractionResponse{
			Error:    appErr.Message,
			SheetURL: result.SheetURL(),
			RunID:    result.RunID,
		})
		return
	}

	writeJSON(w, http.StatusOK, extractionResponse{
		Message:  result.Message,
		SheetURL: result.SheetURL(),
		RunID:    result.RunID,
	})
}
