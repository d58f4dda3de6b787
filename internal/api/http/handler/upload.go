package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dtroode/cardbook-server/internal/api/http/response"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// multipartOverhead leaves room for boundaries and part headers on top of
// the file itself.
const multipartOverhead = 64 << 10

// AvatarService stores profile pictures.
type AvatarService interface {
	Upload(ctx context.Context, userID int64, file io.Reader, size int64, contentType string) (model.Avatar, error)
}

// Upload serves file upload endpoints. It expects the gateway to have
// attached a principal.
type Upload struct {
	avatars        AvatarService
	contextManager model.ContextManager
	maxFileBytes   int64
	logger         *logger.Logger
}

// NewUpload creates a new Upload handler.
func NewUpload(avatars AvatarService, contextManager model.ContextManager, maxFileBytes int64, logger *logger.Logger) *Upload {
	return &Upload{
		avatars:        avatars,
		contextManager: contextManager,
		maxFileBytes:   maxFileBytes,
		logger:         logger,
	}
}

// Avatar handles POST /api/v1/upload/avatar with a multipart "file" field.
func (h *Upload) Avatar(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.contextManager.GetPrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxFileBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, model.NewValidationError("file", "is too large"), h.logger)
			return
		}
		response.Error(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, model.NewValidationError("file", "is required"), h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	// The declared part content type is not trusted.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, r, err, h.logger)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	contentType := http.DetectContentType(head[:n])

	avatar, err := h.avatars.Upload(r.Context(), principal.Claims.UserID, file, header.Size, contentType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	response.Success(w, "upload successful", avatar)
}
