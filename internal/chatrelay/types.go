// Package chatrelay translates OpenAI-shaped chat-completion requests
// into Dialog Backend requests, forwards the caller's bearer token, and
// transforms the backend's reply (blocking JSON or SSE stream) back into
// OpenAI-shaped frames.
package chatrelay

import (
	"encoding/json"
	"strings"
)

// Message is one element of an OpenAI chat-completion request's
// "messages" array. Content may be a plain string or an ordered list of
// {type, text} parts; both are accepted by UnmarshalJSON.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content holds either a string or a list of text parts, joined with a
// single space when read as plain text.
type Content struct {
	raw string
}

// ContentPart is one element of a multi-part message content list.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts either a JSON string or an array of {type, text}
// objects, per the OpenAI chat-completion content contract.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.raw = s
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		texts = append(texts, p.Text)
	}
	c.raw = strings.Join(texts, " ")
	return nil
}

// MarshalJSON renders Content back out as a plain string.
func (c Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.raw)
}

// String returns the flattened text of the content.
func (c Content) String() string { return c.raw }

// ChatCompletionRequest is the OpenAI-shaped inbound request body.
type ChatCompletionRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	Stream      bool       `json:"stream"`
	Temperature *float64   `json:"temperature,omitempty"`
	TopP        *float64   `json:"top_p,omitempty"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	Tools       []any      `json:"tools,omitempty"`
	User        string     `json:"user,omitempty"`
}

// dialogRequest is what is actually sent to the Dialog Backend.
type dialogRequest struct {
	Inputs       dialogInputs `json:"inputs"`
	Query        []string     `json:"query"`
	ResponseMode string       `json:"response_mode"`
	Temperature  *float64     `json:"temperature,omitempty"`
	TopP         *float64     `json:"top_p,omitempty"`
	MaxTokens    *int         `json:"max_tokens,omitempty"`
	Tools        []any        `json:"tools,omitempty"`
	User         string       `json:"user"`
}

type dialogInputs struct {
	ConversationHistory string `json:"conversation_history"`
}

// dialogResponse is the Dialog Backend's blocking JSON reply shape.
type dialogResponse struct {
	Answer    string `json:"answer"`
	ToolCalls []any  `json:"tool_calls,omitempty"`
	Files     []any  `json:"files,omitempty"`
}

// dialogStreamEvent is one parsed `data: <json>` frame from the Dialog
// Backend's SSE stream.
type dialogStreamEvent struct {
	Event     string `json:"event"`
	TaskID    string `json:"task_id"`
	MessageID string `json:"message_id"`
	CreatedAt int64  `json:"created_at"`
	Answer    string `json:"answer"`
	ToolCalls []any  `json:"tool_calls,omitempty"`
	Files     []any  `json:"files,omitempty"`
}

// ChatCompletionResponse is the OpenAI-shaped blocking response body.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is the single choice produced for every response (the Dialog
// Backend has no concept of multiple candidates).
type Choice struct {
	Index        int          `json:"index"`
	Message      ChoiceBody   `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// ChoiceBody is the assistant message returned in a blocking response.
type ChoiceBody struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ToolCalls []any  `json:"tool_calls,omitempty"`
	Files     []any  `json:"files,omitempty"`
}

// ChunkResponse is one OpenAI-shaped `chat.completion.chunk` SSE frame.
type ChunkResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is the single delta-bearing choice in a streaming chunk.
type ChunkChoice struct {
	Index        int          `json:"index"`
	Delta        ChunkDelta   `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

// ChunkDelta carries the incremental content of a streaming chunk.
type ChunkDelta struct {
	Content string `json:"content"`
}
