package pdf

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// JobRunner はジョブを実行できるサービスが実装します。
type JobRunner interface {
	RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error)
	DiscardJob(jobID string) error
}

// BookletService は冊子生成ジョブの準備と実行を提供します。
type BookletService interface {
	JobRunner
	PrepareBookletJob(ctx context.Context, file *multipart.FileHeader, opts BookletOptions) (*JobManifest, error)
}

// InspectService はPDF検査を提供します。
type InspectService interface {
	InspectMultipart(ctx context.Context, file *multipart.FileHeader) (*InspectResult, error)
}

// JobScheduler はジョブを非同期キューに投入するためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, op OperationType, jobID string) error
}

// HandlerOptions は同期/非同期切り替えと既定余白の設定です。
type HandlerOptions struct {
	Scheduler             JobScheduler
	AsyncThresholdBytes   int64
	AsyncThresholdPages   int
	DefaultCenterMarginMm float64
	DefaultOuterMarginMm  float64
}

// BookletHandler は POST /api/pdf/booklet のハンドラーを返します。
func BookletHandler(svc BookletService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でPDFファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		file, err := extractSingleFile(form)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": err.Error(),
			})
			return
		}

		bookletOpts, err := parseBookletOptions(c, opts)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": err.Error(),
			})
			return
		}

		manifest, err := svc.PrepareBookletJob(c.Request.Context(), file, bookletOpts)
		if err != nil {
			respondWithError(c, err)
			return
		}

		if shouldProcessAsync(manifest, opts) {
			if err := opts.Scheduler.Schedule(c.Request.Context(), manifest.Operation, manifest.JobID); err != nil {
				if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
					err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
				}
				respondWithError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"jobId": manifest.JobID})
			return
		}

		result, err := svc.RunJob(c.Request.Context(), manifest.JobID, nil)
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer result.Cleanup()

		if err := streamResult(c, result, "冊子PDFの読み込みに失敗しました"); err != nil {
			respondWithError(c, err)
		}
	}
}

// InspectHandler は POST /api/pdf/inspect のハンドラーを返します。
func InspectHandler(svc InspectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でPDFファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		file, err := extractSingleFile(form)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": err.Error(),
			})
			return
		}

		result, err := svc.InspectMultipart(c.Request.Context(), file)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// parseBookletOptions はフォーム値から余白と空白ページ設定を読み取ります。
// 省略時は設定済みの既定値 (addBlanks は true) を使います。
func parseBookletOptions(c *gin.Context, opts HandlerOptions) (BookletOptions, error) {
	parsed := BookletOptions{
		CenterMarginMm: opts.DefaultCenterMarginMm,
		OuterMarginMm:  opts.DefaultOuterMarginMm,
		AddBlanks:      true,
	}

	if raw := strings.TrimSpace(c.PostForm("centerMarginMm")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return BookletOptions{}, errors.New("centerMarginMm には数値を指定してください。")
		}
		parsed.CenterMarginMm = v
	}
	if raw := strings.TrimSpace(c.PostForm("outerMarginMm")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return BookletOptions{}, errors.New("outerMarginMm には数値を指定してください。")
		}
		parsed.OuterMarginMm = v
	}
	if raw := strings.TrimSpace(c.PostForm("addBlanks")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return BookletOptions{}, errors.New("addBlanks には true または false を指定してください。")
		}
		parsed.AddBlanks = v
	}

	if parsed.CenterMarginMm < 0 || parsed.OuterMarginMm < 0 {
		return BookletOptions{}, errors.New("余白には0以上の値を指定してください。")
	}

	return parsed, nil
}

func shouldProcessAsync(manifest *JobManifest, opts HandlerOptions) bool {
	if manifest == nil || opts.Scheduler == nil {
		return false
	}

	if opts.AsyncThresholdBytes > 0 {
		var total int64
		for _, f := range manifest.Files {
			total += f.Size
		}
		if total > opts.AsyncThresholdBytes {
			return true
		}
	}

	if opts.AsyncThresholdPages > 0 {
		var total int
		for _, f := range manifest.Files {
			total += f.Pages
		}
		if total > opts.AsyncThresholdPages {
			return true
		}
	}

	return false
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "OUTPUT_WRITE_FAILURE":
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func extractSingleFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("PDFファイルを選択してください。")
	}
	if file := form.File["file"]; len(file) > 0 {
		return file[0], nil
	}
	if file := form.File["file[]"]; len(file) > 0 {
		return file[0], nil
	}
	files := form.File["files"]
	if len(files) > 0 {
		return files[0], nil
	}
	if alt := form.File["files[]"]; len(alt) > 0 {
		return alt[0], nil
	}
	return nil, errors.New("PDFファイルを選択してください。")
}

func streamResult(c *gin.Context, result *Result, readErrMsg string) error {
	file, err := os.Open(result.OutputPath)
	if err != nil {
		return fmt.Errorf("%s: %w", readErrMsg, err)
	}
	defer file.Close()

	contentType := "application/octet-stream"
	if result.ResultKind == ResultKindPDF {
		contentType = "application/pdf"
	}

	encodedName := url.PathEscape(result.OutputFilename)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", result.OutputFilename, encodedName))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Job-Id", result.JobID)
	c.DataFromReader(http.StatusOK, result.OutputSize, contentType, file, nil)
	return nil
}
