// Package imageapi is a thin wrapper around the Image Backend's
// prediction API (a Replicate-shaped webhook-driven generator).
package imageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the Image Backend.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client. baseURL is the Image Backend's API root
// (e.g. "https://api.replicate.com/v1"); apiKey is sent as a bearer token.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PredictionInput is the backend-facing prediction request body.
type PredictionInput struct {
	Prompt          string  `json:"prompt"`
	AspectRatio     string  `json:"aspect_ratio"`
	OutputFormat    string  `json:"output_format"`
	SafetyTolerance int     `json:"safety_tolerance"`
	Raw             bool    `json:"raw"`
}

// CreatePredictionRequest is the full request sent to the backend's
// model-scoped predictions endpoint: the input payload and a webhook
// URL the backend will POST results to. Model is not part of the body;
// it is part of the URL path (see CreatePrediction).
type CreatePredictionRequest struct {
	Model   string          `json:"-"`
	Input   PredictionInput `json:"input"`
	Webhook string          `json:"webhook"`
}

// CreatePredictionResponse is the backend's synchronous acknowledgement.
type CreatePredictionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreatePrediction issues the backend call described in the image
// coordinator's create_image algorithm: POST to
// "<baseURL>/models/<model>/predictions" with the input payload and
// webhook URL. The model is resolved into the URL path, not the body,
// matching the backend's model-scoped prediction endpoint.
func (c *Client) CreatePrediction(ctx context.Context, req CreatePredictionRequest) (*CreatePredictionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	url := c.baseURL + "/models/" + req.Model + "/predictions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call image backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out CreatePredictionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode image backend response: %w", err)
	}
	return &out, nil
}

// FetchBytes retrieves raw bytes from an ephemeral result URL, used by
// the b64_json response path. The content-addressed uploader does its
// own fetching and does not call it.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fetched body: %w", err)
	}
	return data, nil
}
