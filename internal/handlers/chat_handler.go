package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tribehealth/aigateway/internal/apierror"
	"github.com/tribehealth/aigateway/internal/chatrelay"
)

// ChatHandler serves the chat-completion relay endpoint.
type ChatHandler struct {
	relay *chatrelay.Relay
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(relay *chatrelay.Relay) *ChatHandler {
	return &ChatHandler{relay: relay}
}

// CreateChatCompletion handles POST /v1/chat/completions, dispatching to
// either the blocking or streaming path based on the request body.
func (h *ChatHandler) CreateChatCompletion(c *gin.Context) {
	var req chatrelay.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierror.New(apierror.KindBadRequest, "invalid request body", err))
		return
	}

	bearer := c.GetHeader("Authorization")

	if req.Stream {
		if aerr := h.relay.Stream(c.Request.Context(), bearer, req, c.Writer); aerr != nil {
			writeAPIError(c, aerr)
		}
		return
	}

	resp, aerr := h.relay.Complete(c.Request.Context(), bearer, req)
	if aerr != nil {
		writeAPIError(c, aerr)
		return
	}
	c.JSON(http.StatusOK, resp)
}
