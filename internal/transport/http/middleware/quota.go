package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exmora-backend/internal/quota"
	"exmora-backend/internal/transport/http/response"
)

const ContextQuotaKey = "quota_status"

// AskQuota counts the request against the caller's daily budget before the
// ask handler runs. Over-budget requests get a structured 429 carrying the
// reset time. A quota-store outage fails open so that a Redis blip cannot
// take question-answering down.
func AskQuota(limiter *quota.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDAny, exists := c.Get(ContextUserIDKey)
		userID, ok := userIDAny.(string)
		if !exists || !ok || userID == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
			c.Abort()
			return
		}

		status, allowed, err := limiter.Take(c.Request.Context(), userID, time.Now())
		if err != nil {
			log.Printf("quota check failed for %s: %v", userID, err)
			c.Next()
			return
		}
		if !allowed {
			response.ErrorWithData(c, http.StatusTooManyRequests, response.CodeQuotaExceeded,
				"daily limit reached", status)
			c.Abort()
			return
		}

		c.Set(ContextQuotaKey, status)
		c.Next()
	}
}
