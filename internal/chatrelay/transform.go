package chatrelay

import (
	"fmt"
	"strings"
	"time"
)

const defaultUser = "proxy"

// buildDialogRequest implements the request-translation rules of the
// chat relay: all messages but the last are joined into a history
// string, the last message becomes the query, and most generation
// parameters pass through unchanged.
func buildDialogRequest(req ChatCompletionRequest) dialogRequest {
	history := ""
	if len(req.Messages) > 1 {
		lines := make([]string, 0, len(req.Messages)-1)
		for _, m := range req.Messages[:len(req.Messages)-1] {
			lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content.String()))
		}
		history = strings.Join(lines, "\n")
	}

	query := ""
	if len(req.Messages) > 0 {
		query = req.Messages[len(req.Messages)-1].Content.String()
	}

	responseMode := "blocking"
	if req.Stream {
		responseMode = "streaming"
	}

	user := req.User
	if user == "" {
		user = defaultUser
	}

	return dialogRequest{
		Inputs:       dialogInputs{ConversationHistory: history},
		Query:        []string{query},
		ResponseMode: responseMode,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
		MaxTokens:    req.MaxTokens,
		Tools:        req.Tools,
		User:         user,
	}
}

// transformBlocking builds the OpenAI-shaped blocking response from the
// Dialog Backend's reply.
func transformBlocking(resp dialogResponse, requestModel string) ChatCompletionResponse {
	model := requestModel
	if model == "" {
		model = "dify-transformed"
	}

	return ChatCompletionResponse{
		ID:     fmt.Sprintf("chatcmpl-%d", time.Now().UnixMilli()),
		Object: "chat.completion",
		Model:  model,
		Choices: []Choice{
			{
				Index: 0,
				Message: ChoiceBody{
					Role:      "assistant",
					Content:   resp.Answer,
					ToolCalls: resp.ToolCalls,
					Files:     resp.Files,
				},
				FinishReason: "stop",
			},
		},
	}
}

// transformStreamFrame converts one Dialog Backend SSE event into an
// OpenAI-shaped chunk. ok is false when the frame should be dropped:
// any event other than "message", or a message with empty/whitespace
// answer.
func transformStreamFrame(evt dialogStreamEvent, requestModel string) (ChunkResponse, bool) {
	if evt.Event != "message" || strings.TrimSpace(evt.Answer) == "" {
		return ChunkResponse{}, false
	}

	model := requestModel
	if model == "" {
		model = "dify-transformed"
	}

	return ChunkResponse{
		ID:     fmt.Sprintf("chatcmpl-%d", time.Now().UnixMilli()),
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []ChunkChoice{
			{
				Index:        0,
				Delta:        ChunkDelta{Content: evt.Answer},
				FinishReason: nil,
			},
		},
	}, true
}
