// Package imagecoord implements the asynchronous image-generation
// coordinator: it accepts an OpenAI-shaped image request, persists a
// job, calls the Image Backend, waits bounded for a webhook reply, and
// composes either an inline response or a timeout continuation. It also
// handles the webhook side of that same job.
package imagecoord

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tribehealth/aigateway/internal/apierror"
	"github.com/tribehealth/aigateway/internal/imageapi"
	"github.com/tribehealth/aigateway/internal/jobstore"
	"github.com/tribehealth/aigateway/internal/rendezvous"
)

// waitTimeout is the bounded synchronous wait for a webhook reply.
const waitTimeout = 30 * time.Second

// JobStore is the subset of jobstore.Store the coordinator depends on.
type JobStore interface {
	Insert(ctx context.Context, job *jobstore.ImageJob) error
	Update(ctx context.Context, id uuid.UUID, u jobstore.Update) error
	Get(ctx context.Context, id uuid.UUID) (*jobstore.ImageJob, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]jobstore.ImageJob, error)
}

// Registry is the subset of rendezvous.Registry the coordinator depends on.
type Registry interface {
	Register(id uuid.UUID, callbackURL string)
	Publish(id uuid.UUID, result rendezvous.Result)
	Wait(id uuid.UUID, timeout time.Duration) (*rendezvous.Result, bool)
	Snapshot(id uuid.UUID) (string, bool)
	Drop(id uuid.UUID)
}

// Backend is the subset of imageapi.Client the coordinator depends on.
type Backend interface {
	CreatePrediction(ctx context.Context, req imageapi.CreatePredictionRequest) (*imageapi.CreatePredictionResponse, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Uploader is the subset of cau.Uploader the coordinator depends on.
type Uploader interface {
	Pin(ctx context.Context, urls []string) ([]string, error)
}

// Coordinator wires the Job Store, Rendezvous Registry, Image Backend
// client, and Content-Addressed Uploader into the create/webhook pair.
type Coordinator struct {
	Jobs      JobStore
	Registry  Registry
	Backend   Backend
	Uploader  Uploader
	PublicURL string

	callbackClient *http.Client
}

// New builds a Coordinator.
func New(jobs JobStore, registry Registry, backend Backend, uploader Uploader, publicURL string) *Coordinator {
	return &Coordinator{
		Jobs:           jobs,
		Registry:       registry,
		Backend:        backend,
		Uploader:       uploader,
		PublicURL:      publicURL,
		callbackClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateImageRequest is the OpenAI-shaped image-generation request body.
type CreateImageRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Model          string `json:"model"`
	CallbackURL    string `json:"callback_url"`
	User           string `json:"user"`
}

// ImageData is one element of the image-generation response's "data" array.
type ImageData struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
	IPFSURL string `json:"ipfs_url,omitempty"`
}

// CreateImageResponse is the full 200 response body.
type CreateImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// CreateImage implements the create_image algorithm.
func (c *Coordinator) CreateImage(ctx context.Context, req CreateImageRequest) (*CreateImageResponse, *apierror.Error) {
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}
	responseFormat := req.ResponseFormat
	if responseFormat == "" {
		responseFormat = "url"
	}

	id := uuid.New()
	job := &jobstore.ImageJob{
		ID:     id,
		Status: jobstore.StatusProcessing,
		Prompt: req.Prompt,
		Model:  ResolveModel(req.Model),
		Size:   size,
	}
	if req.User != "" {
		job.UserID = &req.User
	}
	if req.CallbackURL != "" {
		job.CallbackURL = &req.CallbackURL
	}

	if err := c.Jobs.Insert(ctx, job); err != nil {
		return nil, apierror.New(apierror.KindStorage, "failed to persist image job", err)
	}

	c.Registry.Register(id, req.CallbackURL)

	webhookURL := fmt.Sprintf("%s/v1/webhook/replicate/%s", c.PublicURL, id.String())
	predReq := imageapi.CreatePredictionRequest{
		Model: job.Model,
		Input: imageapi.PredictionInput{
			Prompt:          req.Prompt,
			AspectRatio:     ResolveAspect(size),
			OutputFormat:    "png",
			SafetyTolerance: 2,
			Raw:             false,
		},
		Webhook: webhookURL,
	}

	if _, err := c.Backend.CreatePrediction(ctx, predReq); err != nil {
		msg := err.Error()
		_ = c.Jobs.Update(ctx, id, jobstore.Update{Status: jobstore.StatusFailed, Error: &msg})
		c.Registry.Drop(id)
		return nil, apierror.New(apierror.KindBadGateway, "image backend call failed", err)
	}

	result, ok := c.Registry.Wait(id, waitTimeout)
	if !ok {
		// Refresh updated_at without changing status. If a webhook has made
		// the job terminal in the meantime, the store's terminal-state guard
		// turns this write into a no-op.
		if err := c.Jobs.Update(ctx, id, jobstore.Update{Status: jobstore.StatusProcessing}); err != nil {
			slog.Warn("imagecoord: failed to refresh pending job", "job_id", id, "error", err)
		}
		return nil, apierror.Timeout(id.String())
	}

	data, err := c.buildResponseData(ctx, responseFormat, result)
	if err != nil {
		return nil, apierror.New(apierror.KindInternal, "failed to build image response", err)
	}

	if err := c.Jobs.Update(ctx, id, jobstore.Update{
		Status:   jobstore.StatusCompleted,
		URLs:     result.URLs,
		IPFSURLs: result.IPFSURLs,
	}); err != nil {
		slog.Warn("imagecoord: failed to persist completed job", "job_id", id, "error", err)
	}
	c.Registry.Drop(id)

	return &CreateImageResponse{Created: time.Now().Unix(), Data: data}, nil
}

func (c *Coordinator) buildResponseData(ctx context.Context, responseFormat string, result *rendezvous.Result) ([]ImageData, error) {
	if responseFormat == "b64_json" {
		data := make([]ImageData, len(result.URLs))
		for i, url := range result.URLs {
			bytesOut, err := c.Backend.FetchBytes(ctx, url)
			if err != nil {
				return nil, fmt.Errorf("fetch image bytes for b64 response: %w", err)
			}
			data[i] = ImageData{B64JSON: base64.StdEncoding.EncodeToString(bytesOut)}
		}
		return data, nil
	}

	data := make([]ImageData, len(result.URLs))
	for i, url := range result.URLs {
		d := ImageData{URL: url}
		if i < len(result.IPFSURLs) {
			d.IPFSURL = result.IPFSURLs[i]
		}
		data[i] = d
	}
	return data, nil
}

// WebhookBody is the Image Backend's webhook delivery payload.
type WebhookBody struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
}

// HandleWebhook implements the replicate_webhook algorithm. The returned
// error is only non-nil when id fails to parse (a BadRequest); every
// other failure is logged and the caller must still respond 200.
func (c *Coordinator) HandleWebhook(ctx context.Context, idStr string, body WebhookBody) *apierror.Error {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return apierror.New(apierror.KindBadRequest, "invalid job id", err)
	}

	if body.Status == "succeeded" && len(body.Output) > 0 {
		cids, err := c.Uploader.Pin(ctx, body.Output)
		if err != nil {
			msg := fmt.Sprintf("content pinning failed: %v", err)
			slog.Error("imagecoord: CAU pin failed", "job_id", id, "error", err)
			if uerr := c.Jobs.Update(ctx, id, jobstore.Update{Status: jobstore.StatusFailed, Error: &msg}); uerr != nil {
				slog.Error("imagecoord: failed to persist pin failure", "job_id", id, "error", uerr)
			}
			return nil
		}

		result := rendezvous.Result{URLs: body.Output, IPFSURLs: cids}
		c.Registry.Publish(id, result)

		if err := c.Jobs.Update(ctx, id, jobstore.Update{
			Status:   jobstore.StatusCompleted,
			URLs:     body.Output,
			IPFSURLs: cids,
		}); err != nil {
			slog.Error("imagecoord: failed to persist completed job from webhook", "job_id", id, "error", err)
		}

		if callbackURL, ok := c.Registry.Snapshot(id); ok && callbackURL != "" {
			// Detached from the inbound request context: the webhook sender
			// only needs our 200, but the callback delivery must still run
			// even if that sender disconnects immediately after.
			c.deliverCallback(context.Background(), callbackURL, buildCallbackData(body.Output, cids))
		}
		c.Registry.Drop(id)
		return nil
	}

	errMsg := fmt.Sprintf("backend job failed with status: %s", body.Status)
	if err := c.Jobs.Update(ctx, id, jobstore.Update{Status: jobstore.StatusFailed, Error: &errMsg}); err != nil {
		slog.Error("imagecoord: failed to persist failed job", "job_id", id, "error", err)
	}
	return nil
}

func buildCallbackData(urls, ipfsURLs []string) []ImageData {
	data := make([]ImageData, len(urls))
	for i, url := range urls {
		d := ImageData{URL: url}
		if i < len(ipfsURLs) {
			d.IPFSURL = ipfsURLs[i]
		}
		data[i] = d
	}
	return data
}

// deliverCallback fires the client-supplied callback URL with the
// completed job's image data. Best-effort: errors are logged only.
func (c *Coordinator) deliverCallback(ctx context.Context, callbackURL string, data []ImageData) {
	payload, err := json.Marshal(CreateImageResponse{Created: time.Now().Unix(), Data: data})
	if err != nil {
		slog.Error("imagecoord: failed to marshal callback payload", "callback_url", callbackURL, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("imagecoord: failed to build callback request", "callback_url", callbackURL, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.callbackClient.Do(req)
	if err != nil {
		slog.Error("imagecoord: callback delivery failed", "callback_url", callbackURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("imagecoord: callback endpoint returned non-2xx", "callback_url", callbackURL, "status", resp.StatusCode)
	}
}
