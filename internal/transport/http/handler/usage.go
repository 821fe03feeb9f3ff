package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exmora-backend/internal/model"
	"exmora-backend/internal/quota"
	"exmora-backend/internal/repository"
	"exmora-backend/internal/transport/http/response"
)

type UsageHandler struct {
	limiter   *quota.Limiter
	usageRepo *repository.UsageRepository
}

func NewUsageHandler(limiter *quota.Limiter, usageRepo *repository.UsageRepository) *UsageHandler {
	return &UsageHandler{limiter: limiter, usageRepo: usageRepo}
}

// Today reports the caller's remaining ask budget plus the durable counters
// the usage worker has recorded so far. The recorded row can lag the quota
// counter since accounting is asynchronous.
func (h *UsageHandler) Today(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	now := time.Now()
	status, err := h.limiter.Peek(c.Request.Context(), userID, now)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read usage failed")
		return
	}

	record, err := h.usageRepo.GetByUserAndDate(c.Request.Context(), userID, model.UsageDate(now))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read usage failed")
		return
	}
	if record == nil {
		record = &model.UsageRecord{UserID: userID, Date: model.UsageDate(now)}
	}

	response.OK(c, gin.H{
		"quota":    status,
		"recorded": record,
	})
}
