package docintel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string) *Client {
	return NewClient(Config{
		Endpoint:     url,
		APIKey:       "test-key",
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	})
}

func TestAnalyze(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Error("missing subscription key header")
		}
		if r.URL.Query().Get("outputContentFormat") != "markdown" {
			t.Errorf("outputContentFormat = %q", r.URL.Query().Get("outputContentFormat"))
		}
		var body analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		decoded, _ := base64.StdEncoding.DecodeString(body.Base64Source)
		if string(decoded) != "pdf-bytes" {
			t.Errorf("document = %q", decoded)
		}
		w.Header().Set("Operation-Location", srv.URL+"/operations/op-1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			w.Write([]byte(`{"status": "running"}`))
			return
		}
		w.Write([]byte(`{"status": "succeeded", "analyzeResult": {"content": "# Policy\n\nCriteria here."}}`))
	})

	result, err := testClient(srv.URL).Analyze(context.Background(), []byte("pdf-bytes"), ModelLayout)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if result.Content != "# Policy\n\nCriteria here." {
		t.Errorf("content = %q", result.Content)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d, want 3", polls.Load())
	}
}

func TestAnalyzeOperationFails(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", srv.URL+"/operations/op-2")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "failed", "error": {"code": "InvalidContent", "message": "corrupt document"}}`))
	})

	_, err := testClient(srv.URL).Analyze(context.Background(), []byte("x"), ModelLayout)
	if err == nil {
		t.Fatal("expected error for failed analysis")
	}
}

func TestAnalyzeRejectedSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": "InvalidRequest"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Analyze(context.Background(), []byte("x"), ModelLayout)
	if err == nil {
		t.Fatal("expected error for rejected submission")
	}
}
