package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/tamzid2001/docuflux/internal/domain"
	apperrors "github.com/tamzid2001/docuflux/pkg/errors"

	"github.com/gorilla/mux"
)

// BatchSubmitter is the slice of the batch runner the HTTP layer needs.
type BatchSubmitter interface {
	Submit(ctx context.Context, docs []*domain.InputDocument) (*domain.BatchStatus, error)
	Status(ctx context.Context, id string) (*domain.BatchStatus, error)
}

// BatchHandler accepts multi-document uploads and reports their progress.
type BatchHandler struct {
	runner      BatchSubmitter
	maxFileSize int64
	maxFiles    int
	logger      domain.Logger
}

func NewBatchHandler(runner BatchSubmitter, maxFileSize int64, maxFiles int, logger domain.Logger) *BatchHandler {
	return &BatchHandler{
		runner:      runner,
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
		logger:      logger,
	}
}

// Submit handles POST /api/v1/batches with repeated "files" fields.
func (h *BatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	maxBody := h.maxFileSize*int64(h.maxFiles) + multipartMemory
	if appErr := parseUpload(w, r, maxBody); appErr != nil {
		writeAppError(w, appErr)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "At least one file is required")
		return
	}
	if len(files) > h.maxFiles {
		writeError(w, http.StatusBadRequest, domain.ErrTooManyFiles.Error())
		return
	}

	docs := make([]*domain.InputDocument, 0, len(files))
	for _, fh := range files {
		doc, appErr := readDocument(fh, h.maxFileSize)
		if appErr != nil {
			writeAppError(w, appErr)
			return
		}
		docs = append(docs, doc)
	}

	status, err := h.runner.Submit(r.Context(), docs)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyFiles) || errors.Is(err, domain.ErrEmptyBatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		h.logger.Error("Failed to submit batch", err, "files", len(docs))
		writeError(w, http.StatusInternalServerError, "Failed to start batch")
		return
	}

	h.logger.Info("Batch submitted", "batch_id", status.ID, "total", status.Total)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"batchId": status.ID,
		"total":   status.Total,
	})
}

// Status handles GET /api/v1/batches/{id}.
func (h *BatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "Batch ID is required")
		return
	}

	status, err := h.runner.Status(r.Context(), id)
	if errors.Is(err, domain.ErrBatchNotFound) {
		writeAppError(w, apperrors.NewNotFoundError("Batch not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to load batch status", err, "batch_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to load batch status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
