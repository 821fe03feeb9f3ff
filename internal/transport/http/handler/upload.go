package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"exmora-backend/internal/app"
	"exmora-backend/internal/transport/http/response"
)

type UploadHandler struct {
	uploadService *app.UploadService
}

func NewUploadHandler(uploadService *app.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload accepts a multipart batch under the "files" field and creates a
// new session from the accepted PDFs.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}

	fileHeaders := form.File["files"]
	files := make([]app.UploadFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		f, err := header.Open()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read uploaded file")
			return
		}
		files = append(files, app.UploadFile{Filename: header.Filename, Data: data})
	}

	result, err := h.uploadService.Upload(c.Request.Context(), userID, files)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput),
			errors.Is(err, app.ErrTooManyFiles),
			errors.Is(err, app.ErrUnsupportedFile),
			errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrExtractFailed):
			response.Error(c, http.StatusBadRequest, response.CodeExtractFailed, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	response.OK(c, result)
}
