package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exmora-backend/internal/ai"
	"exmora-backend/internal/app"
	"exmora-backend/internal/transport/http/response"
)

type AskHandler struct {
	askService *app.AskService
}

type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID uint   `json:"session_id"`
}

func NewAskHandler(askService *app.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// Ask answers a question against the caller's session. Missing sessions and
// backend failures come back as structured payloads; only an unexpected
// store failure maps to a 500.
func (h *AskHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.askService.Ask(c.Request.Context(), app.AskInput{
		UserID:    userID,
		SessionID: req.SessionID,
		Question:  req.Question,
	})
	if err != nil {
		var backendErr *ai.BackendError
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrQuestionEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNoActiveSession):
			response.Error(c, http.StatusNotFound, response.CodeNoActiveSession, err.Error())
		case errors.As(err, &backendErr):
			response.Error(c, http.StatusBadGateway, response.CodeBackendError, backendErr.Detail)
		case errors.Is(err, app.ErrPersistExchange):
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ask failed")
		}
		return
	}

	response.OK(c, result)
}
