package cau

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestPinPreservesOrdering(t *testing.T) {
	assetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "bytes-for-"+r.URL.Path)
	}))
	defer assetServer.Close()

	addServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/add" {
			http.NotFound(w, r)
			return
		}
		reader, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		part, err := reader.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(part)
		fmt.Fprintf(w, `{"Hash":"hash-%s"}`, body)
	}))
	defer addServer.Close()

	u := New(addServer.URL, nil)
	urls := []string{
		assetServer.URL + "/a",
		assetServer.URL + "/b",
		assetServer.URL + "/c",
	}

	cids, err := u.Pin(context.Background(), urls)
	if err != nil {
		t.Fatalf("Pin failed: %v", err)
	}
	if len(cids) != 3 {
		t.Fatalf("expected 3 cids, got %d", len(cids))
	}
	want := []string{"cid://hash-bytes-for-/a", "cid://hash-bytes-for-/b", "cid://hash-bytes-for-/c"}
	for i, c := range cids {
		if c != want[i] {
			t.Fatalf("cid[%d] = %q, want %q", i, c, want[i])
		}
	}
}

func TestPinFailsWholeCallOnSingleError(t *testing.T) {
	assetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer assetServer.Close()

	addServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Hash":"h"}`)
	}))
	defer addServer.Close()

	u := New(addServer.URL, nil)
	_, err := u.Pin(context.Background(), []string{assetServer.URL + "/good", assetServer.URL + "/bad"})
	if err == nil {
		t.Fatalf("expected an error when one URL fails")
	}
}

func TestPinEmptyInput(t *testing.T) {
	u := New("http://unused", nil)
	cids, err := u.Pin(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cids) != 0 {
		t.Fatalf("expected no cids, got %d", len(cids))
	}
}

// recordingArchiver lets the test assert the CAU mirrors bytes before pinning.
type recordingArchiver struct {
	mu   sync.Mutex
	keys []string
}

func (a *recordingArchiver) Put(_ context.Context, key string, _ []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return nil
}

func (a *recordingArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keys)
}

func TestPinArchivesBeforePinning(t *testing.T) {
	assetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "bytes")
	}))
	defer assetServer.Close()

	archiver := &recordingArchiver{}

	addServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if archiver.count() == 0 {
			http.Error(w, "add called before archive", http.StatusConflict)
			return
		}
		mr, _ := r.MultipartReader()
		var part *multipart.Part
		part, _ = mr.NextPart()
		_, _ = io.ReadAll(part)
		fmt.Fprint(w, `{"Hash":"h"}`)
	}))
	defer addServer.Close()

	u := New(addServer.URL, archiver)

	if _, err := u.Pin(context.Background(), []string{assetServer.URL}); err != nil {
		t.Fatalf("Pin failed: %v", err)
	}
	if len(archiver.keys) != 1 {
		t.Fatalf("expected archiver to be called once, got %d", len(archiver.keys))
	}
}
