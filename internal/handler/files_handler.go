package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
)

// FilesHandler stores uploads untouched. Nothing is extracted.
type FilesHandler struct {
	store       domain.FileStore
	maxFileSize int64
	logger      domain.Logger
	now         func() time.Time
}

func NewFilesHandler(store domain.FileStore, maxFileSize int64, logger domain.Logger) *FilesHandler {
	return &FilesHandler{
		store:       store,
		maxFileSize: maxFileSize,
		logger:      logger,
		now:         time.Now,
	}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Upload handles POST /api/v1/files with a multipart "file" field.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	key := fmt.Sprintf("%d-%s", h.now().UnixMilli(), strings.ReplaceAll(doc.DisplayName, " ", "_"))
	stored, err := h.store.Put(r.Context(), key, doc.MediaKind, doc.Data)
	if err != nil {
		h.logger.Error("Error uploading file", err, "key", key)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrFileExists) {
			status = http.StatusConflict
		}
		writeJSON(w, status, uploadResponse{Success: false, Message: "Error uploading file"})
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Path: stored.Path, URL: stored.URL})
}
