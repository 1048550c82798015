package endpoints

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/api"
	"github.com/payerops/paflow/internal/casestore"
	"github.com/payerops/paflow/internal/pdfpages"
	"github.com/payerops/paflow/internal/pipeline"
	"github.com/payerops/paflow/internal/svcctx"
)

// Case processing status values reported by the status endpoint.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Tracker records which cases are currently being processed, so the status
// endpoint can distinguish in-flight cases from unknown ones.
type Tracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]struct{})}
}

// Start marks a case as in flight.
func (t *Tracker) Start(caseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[caseID] = struct{}{}
}

// Finish clears a case's in-flight mark.
func (t *Tracker) Finish(caseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, caseID)
}

// Active reports whether a case is currently being processed.
func (t *Tracker) Active(caseID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[caseID]
	return ok
}

// SubmitResponse is returned when a case is accepted for processing.
type SubmitResponse struct {
	CaseID string `json:"case_id"`
	Status string `json:"status"`
	Files  int    `json:"files"`
}

// SubmitCaseEndpoint handles POST /api/cases with multipart file upload.
type SubmitCaseEndpoint struct {
	Tracker *Tracker
}

var _ api.Endpoint = (*SubmitCaseEndpoint)(nil)

func (e *SubmitCaseEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cases", e.handler
}

func (e *SubmitCaseEndpoint) RequiresInit() bool { return true }

// defaultMaxUploadMB bounds request bodies when no server config is present.
const defaultMaxUploadMB = 64

func (e *SubmitCaseEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(defaultMaxUploadMB) << 20
	if mgr := svcctx.ConfigManagerFrom(r.Context()); mgr != nil {
		if mb := mgr.Get().Server.MaxUploadSizeMB; mb > 0 {
			maxBytes = int64(mb) << 20
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	for _, fh := range files {
		if !pdfpages.IsPDF(fh.Filename) && !pdfpages.IsImage(fh.Filename) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF or page image", fh.Filename))
			return
		}
	}

	caseID := r.FormValue("case_id")
	if caseID == "" {
		caseID = uuid.New().String()
	}
	if e.Tracker.Active(caseID) {
		writeError(w, http.StatusConflict, fmt.Sprintf("case %s is already being processed", caseID))
		return
	}

	proc := svcctx.PipelineFrom(r.Context())
	if proc == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	tempDir, err := os.MkdirTemp("", "paflow-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create temp dir: %v", err))
		return
	}

	var uploads []string
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			os.RemoveAll(tempDir)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to open uploaded file: %v", err))
			return
		}

		destPath := filepath.Join(tempDir, filepath.Base(fh.Filename))
		dst, err := os.Create(destPath)
		if err != nil {
			src.Close()
			os.RemoveAll(tempDir)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create file: %v", err))
			return
		}

		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			os.RemoveAll(tempDir)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save file: %v", err))
			return
		}

		uploads = append(uploads, destPath)
	}

	// Process in the background; the pipeline persists the record on every
	// path so results are readable once the run finishes.
	e.Tracker.Start(caseID)
	go func() {
		defer e.Tracker.Finish(caseID)
		defer os.RemoveAll(tempDir)
		defer func() {
			// A single bad case must not take the server down with it.
			if rec := recover(); rec != nil && logger != nil {
				logger.Error("case processing panicked", "case_id", caseID, "panic", rec)
			}
		}()

		if _, err := proc.Run(context.Background(), uploads, caseID); err != nil {
			if logger != nil {
				logger.Error("case processing failed", "case_id", caseID, "error", err)
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		CaseID: caseID,
		Status: StatusProcessing,
		Files:  len(uploads),
	})
}

func (e *SubmitCaseEndpoint) Command(getServerURL func() string) *cobra.Command {
	var caseID string
	cmd := &cobra.Command{
		Use:   "submit <file> [file...]",
		Short: "Submit case documents for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			fields := map[string]string{}
			if caseID != "" {
				fields["case_id"] = caseID
			}
			var resp SubmitResponse
			if err := client.PostFiles(cmd.Context(), "/api/cases", args, fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&caseID, "case-id", "", "Case ID (generated when empty)")
	return cmd
}

// GetCaseEndpoint handles GET /api/cases/{id}.
type GetCaseEndpoint struct {
	Tracker *Tracker
}

var _ api.Endpoint = (*GetCaseEndpoint)(nil)

func (e *GetCaseEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cases/{id}", e.handler
}

func (e *GetCaseEndpoint) RequiresInit() bool { return true }

func (e *GetCaseEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")

	store := svcctx.CaseStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "case store not initialized")
		return
	}

	record, err := store.Get(r.Context(), caseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load case: %v", err))
		return
	}
	if record == nil {
		if e.Tracker.Active(caseID) {
			writeError(w, http.StatusConflict, fmt.Sprintf("case %s is still processing", caseID))
			return
		}
		writeError(w, http.StatusNotFound, fmt.Sprintf("case %s not found", caseID))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (e *GetCaseEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <case-id>",
		Short: "Get case results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var record casestore.CaseRecord
			if err := client.Get(cmd.Context(), "/api/cases/"+args[0], &record); err != nil {
				return err
			}
			return api.Output(record)
		},
	}
}

// CaseStatusResponse reports processing progress for a case.
type CaseStatusResponse struct {
	CaseID string `json:"case_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CaseStatusEndpoint handles GET /api/cases/{id}/status.
type CaseStatusEndpoint struct {
	Tracker *Tracker
}

var _ api.Endpoint = (*CaseStatusEndpoint)(nil)

func (e *CaseStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cases/{id}/status", e.handler
}

func (e *CaseStatusEndpoint) RequiresInit() bool { return true }

func (e *CaseStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")

	if e.Tracker.Active(caseID) {
		writeJSON(w, http.StatusOK, CaseStatusResponse{CaseID: caseID, Status: StatusProcessing})
		return
	}

	store := svcctx.CaseStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "case store not initialized")
		return
	}

	record, err := store.Get(r.Context(), caseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load case: %v", err))
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("case %s not found", caseID))
		return
	}

	resp := CaseStatusResponse{CaseID: caseID, Status: StatusCompleted}
	if reason, ok := record.Results[pipeline.KeyError].(string); ok && reason != "" {
		resp.Status = StatusFailed
		resp.Error = reason
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *CaseStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <case-id>",
		Short: "Get case processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CaseStatusResponse
			if err := client.Get(cmd.Context(), "/api/cases/"+args[0]+"/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Case:   %s\n", resp.CaseID)
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Error != "" {
				fmt.Printf("Error:  %s\n", resp.Error)
			}
			return nil
		},
	}
}
