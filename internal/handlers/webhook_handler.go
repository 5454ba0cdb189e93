package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tribehealth/aigateway/internal/apierror"
	"github.com/tribehealth/aigateway/internal/imagecoord"
)

// WebhookHandler serves the Image Backend's webhook delivery endpoint.
type WebhookHandler struct {
	coord *imagecoord.Coordinator
}

// NewWebhookHandler builds a WebhookHandler.
func NewWebhookHandler(coord *imagecoord.Coordinator) *WebhookHandler {
	return &WebhookHandler{coord: coord}
}

// ReplicateWebhook handles POST /v1/webhook/replicate/:id. It returns
// 200 whenever id parses, regardless of downstream outcome — the
// backend retries on non-2xx, which would duplicate already-recorded
// work.
func (h *WebhookHandler) ReplicateWebhook(c *gin.Context) {
	var body imagecoord.WebhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		if _, perr := uuid.Parse(c.Param("id")); perr != nil {
			writeAPIError(c, apierror.New(apierror.KindBadRequest, "invalid job id", perr))
			return
		}
		slog.Error("webhook: dropping malformed body", "job_id", c.Param("id"), "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if aerr := h.coord.HandleWebhook(c.Request.Context(), c.Param("id"), body); aerr != nil {
		writeAPIError(c, aerr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
