package imagecoord

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tribehealth/aigateway/internal/imageapi"
	"github.com/tribehealth/aigateway/internal/jobstore"
	"github.com/tribehealth/aigateway/internal/rendezvous"
)

type fakeJobStore struct {
	jobs      map[uuid.UUID]*jobstore.ImageJob
	insertErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*jobstore.ImageJob)}
}

func (f *fakeJobStore) Insert(_ context.Context, job *jobstore.ImageJob) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobStore) Update(_ context.Context, id uuid.UUID, u jobstore.Update) error {
	job, ok := f.jobs[id]
	if !ok {
		return nil
	}
	if job.Status == jobstore.StatusCompleted || job.Status == jobstore.StatusFailed {
		return nil
	}
	job.Status = u.Status
	if u.URLs != nil {
		job.URLs = u.URLs
	}
	if u.IPFSURLs != nil {
		job.IPFSURLs = u.IPFSURLs
	}
	if u.Error != nil {
		job.Error = u.Error
	}
	return nil
}

func (f *fakeJobStore) Get(_ context.Context, id uuid.UUID) (*jobstore.ImageJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, jobstore.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]jobstore.ImageJob, error) {
	var out []jobstore.ImageJob
	for _, j := range f.jobs {
		if j.UserID != nil && *j.UserID == userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeRegistry struct {
	callbackURLs map[uuid.UUID]string
	results      map[uuid.UUID]rendezvous.Result
	waitResult   *rendezvous.Result // if set, Wait returns this regardless of publish
	dropped      map[uuid.UUID]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		callbackURLs: make(map[uuid.UUID]string),
		results:      make(map[uuid.UUID]rendezvous.Result),
		dropped:      make(map[uuid.UUID]bool),
	}
}

func (f *fakeRegistry) Register(id uuid.UUID, callbackURL string) {
	f.callbackURLs[id] = callbackURL
}

func (f *fakeRegistry) Publish(id uuid.UUID, result rendezvous.Result) {
	f.results[id] = result
}

func (f *fakeRegistry) Wait(id uuid.UUID, _ time.Duration) (*rendezvous.Result, bool) {
	if f.waitResult != nil {
		return f.waitResult, true
	}
	if r, ok := f.results[id]; ok {
		return &r, true
	}
	return nil, false
}

func (f *fakeRegistry) Snapshot(id uuid.UUID) (string, bool) {
	cb, ok := f.callbackURLs[id]
	return cb, ok
}

func (f *fakeRegistry) Drop(id uuid.UUID) {
	f.dropped[id] = true
	delete(f.callbackURLs, id)
}

type fakeBackend struct {
	createErr error
	fetchData map[string][]byte
}

func (f *fakeBackend) CreatePrediction(_ context.Context, _ imageapi.CreatePredictionRequest) (*imageapi.CreatePredictionResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &imageapi.CreatePredictionResponse{ID: "r1", Status: "starting"}, nil
}

func (f *fakeBackend) FetchBytes(_ context.Context, url string) ([]byte, error) {
	return f.fetchData[url], nil
}

type fakeUploader struct {
	pinErr error
}

func (f *fakeUploader) Pin(_ context.Context, urls []string) ([]string, error) {
	if f.pinErr != nil {
		return nil, f.pinErr
	}
	cids := make([]string, len(urls))
	for i := range urls {
		cids[i] = "cid://Q" + string(rune('a'+i))
	}
	return cids, nil
}

func TestCreateImageSynchronousSuccess(t *testing.T) {
	jobs := newFakeJobStore()
	registry := newFakeRegistry()
	registry.waitResult = &rendezvous.Result{
		URLs:     []string{"https://cdn/x.png"},
		IPFSURLs: []string{"cid://QmX"},
	}
	backend := &fakeBackend{}
	coord := New(jobs, registry, backend, &fakeUploader{}, "https://gateway.example.com")

	resp, aerr := coord.CreateImage(context.Background(), CreateImageRequest{
		Prompt: "a cat", Size: "1024x1024", Model: "dall-e-3-pro",
	})
	if aerr != nil {
		t.Fatalf("unexpected error: %v", aerr)
	}
	if len(resp.Data) != 1 || resp.Data[0].URL != "https://cdn/x.png" || resp.Data[0].IPFSURL != "cid://QmX" {
		t.Fatalf("unexpected response data: %+v", resp.Data)
	}
}

func TestCreateImageTimeout(t *testing.T) {
	jobs := newFakeJobStore()
	registry := newFakeRegistry()
	backend := &fakeBackend{}
	coord := New(jobs, registry, backend, &fakeUploader{}, "https://gateway.example.com")

	_, aerr := coord.CreateImage(context.Background(), CreateImageRequest{Prompt: "a cat"})
	if aerr == nil {
		t.Fatalf("expected a timeout error")
	}
	if aerr.TaskID == "" {
		t.Fatalf("expected a task id on timeout error")
	}
}

func TestCreateImageBackendFailureUpdatesJobFailed(t *testing.T) {
	jobs := newFakeJobStore()
	registry := newFakeRegistry()
	backend := &fakeBackend{createErr: context.DeadlineExceeded}
	coord := New(jobs, registry, backend, &fakeUploader{}, "https://gateway.example.com")

	_, aerr := coord.CreateImage(context.Background(), CreateImageRequest{Prompt: "a cat"})
	if aerr == nil {
		t.Fatalf("expected an error")
	}

	var found bool
	for _, j := range jobs.jobs {
		if j.Status == jobstore.StatusFailed {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the job to be marked failed")
	}
}

func TestCreateImageB64Response(t *testing.T) {
	jobs := newFakeJobStore()
	registry := newFakeRegistry()
	registry.waitResult = &rendezvous.Result{URLs: []string{"https://cdn/x.png"}}
	backend := &fakeBackend{fetchData: map[string][]byte{"https://cdn/x.png": []byte("pngbytes")}}
	coord := New(jobs, registry, backend, &fakeUploader{}, "https://gateway.example.com")

	resp, aerr := coord.CreateImage(context.Background(), CreateImageRequest{
		Prompt: "a cat", ResponseFormat: "b64_json",
	})
	if aerr != nil {
		t.Fatalf("unexpected error: %v", aerr)
	}
	if len(resp.Data) != 1 || resp.Data[0].B64JSON == "" || resp.Data[0].URL != "" {
		t.Fatalf("unexpected response data: %+v", resp.Data)
	}
}

func TestHandleWebhookSucceededPinsAndCompletesJob(t *testing.T) {
	jobs := newFakeJobStore()
	id := uuid.New()
	jobs.jobs[id] = &jobstore.ImageJob{ID: id, Status: jobstore.StatusProcessing}
	registry := newFakeRegistry()
	registry.Register(id, "")
	coord := New(jobs, registry, &fakeBackend{}, &fakeUploader{}, "https://gateway.example.com")

	aerr := coord.HandleWebhook(context.Background(), id.String(), WebhookBody{
		ID: id.String(), Status: "succeeded", Output: []string{"https://cdn/a.png"},
	})
	if aerr != nil {
		t.Fatalf("unexpected error: %v", aerr)
	}
	if jobs.jobs[id].Status != jobstore.StatusCompleted {
		t.Fatalf("expected job to be completed, got %v", jobs.jobs[id].Status)
	}
	if _, ok := registry.results[id]; !ok {
		t.Fatalf("expected rendezvous to be published")
	}
	if !registry.dropped[id] {
		t.Fatalf("expected rendezvous entry to be dropped after webhook delivery")
	}
}

func TestHandleWebhookFailedDoesNotPublish(t *testing.T) {
	jobs := newFakeJobStore()
	id := uuid.New()
	jobs.jobs[id] = &jobstore.ImageJob{ID: id, Status: jobstore.StatusProcessing}
	registry := newFakeRegistry()
	registry.Register(id, "")
	coord := New(jobs, registry, &fakeBackend{}, &fakeUploader{}, "https://gateway.example.com")

	aerr := coord.HandleWebhook(context.Background(), id.String(), WebhookBody{
		ID: id.String(), Status: "failed",
	})
	if aerr != nil {
		t.Fatalf("unexpected error: %v", aerr)
	}
	if jobs.jobs[id].Status != jobstore.StatusFailed {
		t.Fatalf("expected job to be failed, got %v", jobs.jobs[id].Status)
	}
	if jobs.jobs[id].Error == nil {
		t.Fatalf("expected an error message on the job")
	}
	if _, ok := registry.results[id]; ok {
		t.Fatalf("expected no publish for a failed webhook")
	}
}

func TestHandleWebhookInvalidIDIsBadRequest(t *testing.T) {
	jobs := newFakeJobStore()
	registry := newFakeRegistry()
	coord := New(jobs, registry, &fakeBackend{}, &fakeUploader{}, "https://gateway.example.com")

	aerr := coord.HandleWebhook(context.Background(), "not-a-uuid", WebhookBody{Status: "succeeded"})
	if aerr == nil {
		t.Fatalf("expected a bad request error for an unparseable id")
	}
}

func TestSecondUpdateAfterTerminalIsNoop(t *testing.T) {
	jobs := newFakeJobStore()
	id := uuid.New()
	jobs.jobs[id] = &jobstore.ImageJob{ID: id, Status: jobstore.StatusProcessing}

	errMsg := "boom"
	if err := jobs.Update(context.Background(), id, jobstore.Update{Status: jobstore.StatusCompleted, URLs: []string{"a"}, IPFSURLs: []string{"b"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := jobs.Update(context.Background(), id, jobstore.Update{Status: jobstore.StatusFailed, Error: &errMsg}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.jobs[id].Status != jobstore.StatusCompleted {
		t.Fatalf("terminal status changed after second update: %v", jobs.jobs[id].Status)
	}
}
