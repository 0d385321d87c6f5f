package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubBookletService struct {
	manifest   *JobManifest
	result     *Result
	prepareErr error
	runErr     error
	runCalled  bool
	discarded  []string
}

func (s *stubBookletService) PrepareBookletJob(ctx context.Context, file *multipart.FileHeader, opts BookletOptions) (*JobManifest, error) {
	if s.prepareErr != nil {
		return nil, s.prepareErr
	}
	return s.manifest, nil
}

func (s *stubBookletService) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	s.runCalled = true
	if s.runErr != nil {
		return nil, s.runErr
	}
	return s.result, nil
}

func (s *stubBookletService) DiscardJob(jobID string) error {
	s.discarded = append(s.discarded, jobID)
	return nil
}

type stubScheduler struct {
	scheduled []string
	err       error
}

func (s *stubScheduler) Schedule(ctx context.Context, op OperationType, jobID string) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, jobID)
	return nil
}

func bookletForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", "input.pdf")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader([]byte("dummy"))); err != nil {
		t.Fatalf("failed to write dummy file: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestParseBookletOptionsDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(""))
	ctx.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	opts, err := parseBookletOptions(ctx, HandlerOptions{
		DefaultCenterMarginMm: 10,
		DefaultOuterMarginMm:  5,
	})
	if err != nil {
		t.Fatalf("parseBookletOptions returned error: %v", err)
	}
	if opts.CenterMarginMm != 10 || opts.OuterMarginMm != 5 || !opts.AddBlanks {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestParseBookletOptionsValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodPost, "/",
		bytes.NewBufferString("centerMarginMm=12.5&outerMarginMm=0&addBlanks=false"))
	ctx.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	opts, err := parseBookletOptions(ctx, HandlerOptions{DefaultCenterMarginMm: 10, DefaultOuterMarginMm: 5})
	if err != nil {
		t.Fatalf("parseBookletOptions returned error: %v", err)
	}
	if opts.CenterMarginMm != 12.5 || opts.OuterMarginMm != 0 || opts.AddBlanks {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestParseBookletOptionsInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, form := range []string{
		"centerMarginMm=abc",
		"outerMarginMm=ten",
		"addBlanks=maybe",
		"centerMarginMm=-1",
	} {
		ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ctx.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(form))
		ctx.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		if _, err := parseBookletOptions(ctx, HandlerOptions{}); err == nil {
			t.Fatalf("expected error for form %q", form)
		}
	}
}

func TestBookletHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tempDir := t.TempDir()
	jobDir := filepath.Join(tempDir, "job")
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatalf("failed to create jobDir: %v", err)
	}

	outputPath := filepath.Join(jobDir, bookletFilename)
	pdfData := []byte("%PDF-1.4\n% dummy booklet\n")
	if err := os.WriteFile(outputPath, pdfData, 0o640); err != nil {
		t.Fatalf("failed to create output file: %v", err)
	}

	service := &stubBookletService{
		manifest: &JobManifest{JobID: "job-123", Operation: OperationBooklet},
		result: &Result{
			JobID:          "job-123",
			Operation:      OperationBooklet,
			OutputPath:     outputPath,
			OutputFilename: bookletFilename,
			OutputSize:     int64(len(pdfData)),
			ResultKind:     ResultKindPDF,
			jobDir:         jobDir,
		},
	}

	body, contentType := bookletForm(t, map[string]string{"centerMarginMm": "10", "outerMarginMm": "5"})
	req := httptest.NewRequest(http.MethodPost, "/api/pdf/booklet", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/booklet", BookletHandler(service, HandlerOptions{}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if rec.Header().Get("X-Job-Id") != "job-123" {
		t.Fatalf("unexpected X-Job-Id header: %s", rec.Header().Get("X-Job-Id"))
	}
	if !bytes.Equal(rec.Body.Bytes(), pdfData) {
		t.Fatalf("unexpected response body: %q", rec.Body.Bytes())
	}
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Fatalf("expected jobDir to be removed, stat err=%v", err)
	}
}

func TestBookletHandlerMarginTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubBookletService{
		manifest: &JobManifest{JobID: "job-1", Operation: OperationBooklet},
		runErr:   &Error{Code: "MARGIN_TOO_LARGE", Message: "余白が大きすぎます"},
	}

	body, contentType := bookletForm(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/pdf/booklet", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/booklet", BookletHandler(service, HandlerOptions{}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "MARGIN_TOO_LARGE" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestBookletHandlerLimitExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubBookletService{
		prepareErr: &Error{Code: "LIMIT_EXCEEDED", Message: "サイズ上限を超えています"},
	}

	body, contentType := bookletForm(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/pdf/booklet", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/booklet", BookletHandler(service, HandlerOptions{}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestBookletHandlerSchedulesAsync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubBookletService{
		manifest: &JobManifest{
			JobID:     "job-async",
			Operation: OperationBooklet,
			Files:     []JobFile{{Size: 10, Pages: 300}},
		},
	}
	scheduler := &stubScheduler{}

	body, contentType := bookletForm(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/pdf/booklet", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/booklet", BookletHandler(service, HandlerOptions{
		Scheduler:           scheduler,
		AsyncThresholdPages: 120,
	}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != "job-async" {
		t.Fatalf("unexpected scheduled jobs: %v", scheduler.scheduled)
	}
	if service.runCalled {
		t.Fatal("RunJob must not be called for async jobs")
	}
}
