// Package handlers wires the gateway's components (image coordinator,
// chat relay, job store) into gin HTTP endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tribehealth/aigateway/internal/apierror"
	"github.com/tribehealth/aigateway/internal/identity"
	"github.com/tribehealth/aigateway/internal/imagecoord"
)

// ImageHandler serves the image-generation and webhook endpoints.
type ImageHandler struct {
	coord    *imagecoord.Coordinator
	identity *identity.Enricher
}

// NewImageHandler builds an ImageHandler.
func NewImageHandler(coord *imagecoord.Coordinator, enricher *identity.Enricher) *ImageHandler {
	return &ImageHandler{coord: coord, identity: enricher}
}

// CreateImage handles POST /v1/images/generations.
func (h *ImageHandler) CreateImage(c *gin.Context) {
	var req imagecoord.CreateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierror.New(apierror.KindBadRequest, "invalid request body", err))
		return
	}

	req.User = h.identity.Resolve(c.Request.Context(), c.GetHeader("Authorization"), req.User)

	resp, aerr := h.coord.CreateImage(c.Request.Context(), req)
	if aerr != nil {
		writeAPIError(c, aerr)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// writeAPIError renders an *apierror.Error as an OpenAI-shaped error
// body, bypassing the generic utils envelope.
func writeAPIError(c *gin.Context, aerr *apierror.Error) {
	body := gin.H{
		"error": gin.H{
			"message": aerr.Message,
			"type":    string(aerr.Kind),
		},
	}
	if aerr.TaskID != "" {
		body["error"].(gin.H)["task_id"] = aerr.TaskID
	}
	c.AbortWithStatusJSON(aerr.HTTPStatus(), body)
}
