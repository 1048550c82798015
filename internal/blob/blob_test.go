package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string) *Client {
	return NewClient(Config{
		Endpoint:   url,
		Container:  "cases",
		SASToken:   "sv=2024&sig=abc",
		RetryDelay: time.Millisecond,
	})
}

func TestUpload(t *testing.T) {
	var gotPath, gotBlobType, gotQuery string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotBlobType = r.Header.Get("x-ms-blob-type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Upload(context.Background(), "case-1/raw/referral.pdf", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if gotPath != "/cases/case-1/raw/referral.pdf" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBlobType != "BlockBlob" {
		t.Errorf("x-ms-blob-type = %q", gotBlobType)
	}
	if gotQuery != "sv=2024&sig=abc" {
		t.Errorf("query = %q", gotQuery)
	}
	if string(gotBody) != "pdf-bytes" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDownloadToBytesRelativePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cases/policies/crohns.pdf" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte("policy-bytes"))
	}))
	defer srv.Close()

	data, err := testClient(srv.URL).DownloadToBytes(context.Background(), "policies/crohns.pdf")
	if err != nil {
		t.Fatalf("DownloadToBytes() error: %v", err)
	}
	if string(data) != "policy-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestDownloadToBytesFullURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/other-container/policies/p.pdf" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("sig") != "abc" {
			t.Errorf("SAS token not appended: %q", r.URL.RawQuery)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// Full URLs, as returned by the policy index, bypass the configured container.
	data, err := testClient(srv.URL).DownloadToBytes(context.Background(), srv.URL+"/other-container/policies/p.pdf")
	if err != nil {
		t.Fatalf("DownloadToBytes() error: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("data = %q", data)
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	data, err := testClient(srv.URL).DownloadToBytes(context.Background(), "p.pdf")
	if err != nil {
		t.Fatalf("DownloadToBytes() error: %v", err)
	}
	if string(data) != "recovered" {
		t.Errorf("data = %q", data)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).DownloadToBytes(context.Background(), "missing.pdf"); err == nil {
		t.Fatal("expected error for 404")
	}
}
