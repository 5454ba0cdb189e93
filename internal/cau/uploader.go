// Package cau fetches ephemeral result URLs and pins their bytes to a
// content-addressed store, producing cid:// URLs positionally aligned
// to the inputs.
package cau

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tribehealth/aigateway/internal/imgutil"
)

// Archiver mirrors raw bytes to durable storage before pinning. Optional;
// a nil Archiver simply skips archival.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Uploader pins HTTP(S) URLs to a content store reachable at baseURL,
// exposing an `/api/v0/add` multipart endpoint.
type Uploader struct {
	baseURL  string
	http     *http.Client
	archiver Archiver
	// concurrency bounds how many URLs are fetched/pinned at once.
	concurrency int
}

// New creates an Uploader. archiver may be nil to disable archival mirroring.
func New(baseURL string, archiver Archiver) *Uploader {
	return &Uploader{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		archiver:    archiver,
		concurrency: 4,
	}
}

type addResponse struct {
	Hash string `json:"Hash"`
}

// Pin fetches each url, uploads its bytes to the content store, and
// returns the resulting cid:// URLs in the same order as urls. A failure
// on any single URL fails the whole call; no partial results are returned.
func (u *Uploader) Pin(ctx context.Context, urls []string) ([]string, error) {
	out := make([]string, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, u.concurrency)

	for i, rawURL := range urls {
		i, rawURL := i, rawURL
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gCtx.Done():
				return gCtx.Err()
			}
			defer func() { <-sem }()

			cid, err := u.pinOne(gCtx, rawURL)
			if err != nil {
				return fmt.Errorf("pin %s: %w", rawURL, err)
			}
			out[i] = cid
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Uploader) pinOne(ctx context.Context, rawURL string) (string, error) {
	data, contentType, err := u.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if info, err := imgutil.Validate(data); err != nil {
		slog.Warn("cau: fetched bytes are not a recognizable image", "url", rawURL, "error", err)
	} else {
		slog.Debug("cau: fetched image", "url", rawURL, "width", info.Width, "height", info.Height, "format", info.Format)
	}

	if u.archiver != nil {
		key := archiveKey(rawURL)
		if err := u.archiver.Put(ctx, key, data, contentType); err != nil {
			slog.Warn("cau: archival mirror failed, continuing", "url", rawURL, "error", err)
		}
	}

	hash, err := u.add(ctx, data)
	if err != nil {
		return "", err
	}
	return "cid://" + hash, nil
}

func (u *Uploader) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (u *Uploader) add(ctx context.Context, data []byte) (string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write multipart: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/v0/add", body)
	if err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("add: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("add: unexpected status %d", resp.StatusCode)
	}

	var out addResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode add response: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("add: empty hash in response")
	}
	return out.Hash, nil
}

// archiveKey derives an archive object key from the source URL; it has
// no cryptographic role, just a stable, collision-unlikely name.
func archiveKey(rawURL string) string {
	h := fnv.New32a()
	h.Write([]byte(rawURL))
	return fmt.Sprintf("image-archive/%08x", h.Sum32())
}
