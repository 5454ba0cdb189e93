package chatrelay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tribehealth/aigateway/internal/apierror"
)

// Relay forwards chat-completion requests to the Dialog Backend.
type Relay struct {
	baseURL string
	http    *http.Client

	// serverKey is a fallback bearer token used only when the caller
	// omits Authorization and allowServerKey is true. Off by default:
	// the canonical behavior is forwarding the caller's own token.
	serverKey      string
	allowServerKey bool
}

// New builds a Relay. baseURL is the Dialog Backend's API root.
func New(baseURL string) *Relay {
	return &Relay{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 0}, // streaming responses have no fixed upper bound
	}
}

// WithServerKey enables the non-canonical fallback of authenticating to
// the Dialog Backend with a server-side key when the caller sends none.
// Disabled unless allow is true.
func (r *Relay) WithServerKey(key string, allow bool) *Relay {
	r.serverKey = key
	r.allowServerKey = allow
	return r
}

func (r *Relay) resolveBearer(bearer string) string {
	if bearer == "" && r.allowServerKey && r.serverKey != "" {
		return r.serverKey
	}
	return bearer
}

// Complete handles the non-streaming path: forward, wait for the full
// JSON reply, transform, return.
func (r *Relay) Complete(ctx context.Context, bearer string, req ChatCompletionRequest) (*ChatCompletionResponse, *apierror.Error) {
	bearer = r.resolveBearer(bearer)
	if bearer == "" {
		return nil, apierror.New(apierror.KindUnauthorized, "missing Authorization bearer token", nil)
	}

	dialogReq := buildDialogRequest(req)
	resp, aerr := r.post(ctx, bearer, dialogReq)
	if aerr != nil {
		return nil, aerr
	}
	defer resp.Body.Close()

	var dr dialogResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, apierror.New(apierror.KindInternal, "failed to decode dialog backend response", err)
	}

	out := transformBlocking(dr, req.Model)
	return &out, nil
}

// Stream handles the SSE path, writing OpenAI-shaped chunk frames to w
// as they arrive from the Dialog Backend, finishing with "data: [DONE]".
func (r *Relay) Stream(ctx context.Context, bearer string, req ChatCompletionRequest, w http.ResponseWriter) *apierror.Error {
	bearer = r.resolveBearer(bearer)
	if bearer == "" {
		return apierror.New(apierror.KindUnauthorized, "missing Authorization bearer token", nil)
	}

	dialogReq := buildDialogRequest(req)
	resp, aerr := r.post(ctx, bearer, dialogReq)
	if aerr != nil {
		return aerr
	}
	defer resp.Body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return apierror.New(apierror.KindInternal, "streaming not supported by response writer", nil)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var evt dialogStreamEvent
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			slog.Warn("chatrelay: dropping malformed stream frame", "error", err)
			continue
		}

		chunk, ok := transformStreamFrame(evt, req.Model)
		if !ok {
			continue
		}
		if err := writeSSE(w, flusher, chunk); err != nil {
			slog.Warn("chatrelay: failed writing to client stream", "error", err)
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("chatrelay: upstream stream ended with error", "error", err)
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
	return nil
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, chunk ChunkResponse) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (r *Relay) post(ctx context.Context, bearer string, dialogReq dialogRequest) (*http.Response, *apierror.Error) {
	body, err := json.Marshal(dialogReq)
	if err != nil {
		return nil, apierror.New(apierror.KindInternal, "failed to marshal dialog backend request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return nil, apierror.New(apierror.KindInternal, "failed to build dialog backend request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if !strings.HasPrefix(bearer, "Bearer ") {
		bearer = "Bearer " + bearer
	}
	httpReq.Header.Set("Authorization", bearer)

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return nil, apierror.New(apierror.KindBadGateway, "dialog backend call failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, apierror.BadGatewayStatus(
			fmt.Sprintf("dialog backend returned status %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode, nil,
		)
	}
	return resp, nil
}
