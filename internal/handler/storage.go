package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/driftchat/backend/internal/blob"
	"github.com/driftchat/backend/internal/store"
	"github.com/driftchat/backend/pkg/logger"
)

// StorageHandler handles asset storage endpoints.
type StorageHandler struct {
	messages *store.MessageStore
	blobs    blob.Store
	logger   *logger.Logger
}

// NewStorageHandler creates a storage handler.
func NewStorageHandler(messages *store.MessageStore, blobs blob.Store, log *logger.Logger) *StorageHandler {
	return &StorageHandler{
		messages: messages,
		blobs:    blobs,
		logger:   log,
	}
}

// Delete handles DELETE /api/storage/{fileKey}.
func (h *StorageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileKey := chi.URLParam(r, "fileKey")
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "missing file key")
		return
	}

	if _, err := h.messages.GetFile(fileKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("file lookup failed", zap.String("file_key", fileKey), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	if err := h.blobs.Delete(r.Context(), fileKey); err != nil {
		h.logger.Error("blob delete failed", zap.String("file_key", fileKey), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	if err := h.messages.DeleteFile(fileKey); err != nil {
		h.logger.Error("file record delete failed", zap.String("file_key", fileKey), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
