// Package pdf は冊子(中綴じ)PDF生成のサービス層を提供します。
package pdf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/imamwahyudime/pdf-booklet-creator/internal/config"
)

const defaultCleanupMin = 10

// Service は冊子生成・PDF検査のユースケースをまとめたサービスです。
type Service struct {
	cfg *config.Config
	now func() time.Time
}

// NewService は Service を作成します。
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg: cfg,
		now: time.Now,
	}
}

type storedFile struct {
	path         string
	originalName string
	size         int64
	pages        int
}

func (s *Service) baseDir() string {
	if s.cfg != nil && s.cfg.WorkDir != "" {
		return s.cfg.WorkDir
	}
	return filepath.Join(os.TempDir(), "booklet-creator")
}

func (s *Service) createWorkspace() (workspace, error) {
	jobID := uuid.NewString()
	ws := s.workspaceFor(jobID)
	for _, dir := range []string{ws.inDir, ws.outDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return workspace{}, fmt.Errorf("failed to create workspace: %w", err)
		}
	}
	return ws, nil
}

func (s *Service) workspaceFor(jobID string) workspace {
	dir := filepath.Join(s.baseDir(), jobID)
	return workspace{
		jobID:  jobID,
		dir:    dir,
		inDir:  filepath.Join(dir, "in"),
		outDir: filepath.Join(dir, "out"),
	}
}

// DiscardJob は準備済みジョブのワークスペースを破棄します。
func (s *Service) DiscardJob(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("jobID is required")
	}
	return removeDir(s.workspaceFor(jobID).dir)
}

// storeMultipartFile はアップロードを検証してワークスペースへ保存します。
// 拡張子・MIMEタイプ・サイズ・ページ数を確認し、暗号化PDFはここで拒否します。
func (s *Service) storeMultipartFile(ctx context.Context, file *multipart.FileHeader, destDir string, index int) (storedFile, error) {
	if err := ctx.Err(); err != nil {
		return storedFile{}, err
	}

	if s.cfg != nil && s.cfg.MaxFileSize > 0 && file.Size > s.cfg.MaxFileSize {
		return storedFile{}, newError("LIMIT_EXCEEDED",
			fmt.Sprintf("ファイルサイズが上限 (%dMB) を超えています。", s.cfg.MaxFileSize/(1024*1024)), nil)
	}
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
		return storedFile{}, newError("INVALID_INPUT", "PDFファイル (.pdf) のみアップロードできます。", nil)
	}

	src, err := file.Open()
	if err != nil {
		return storedFile{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(destDir, fmt.Sprintf("input-%02d.pdf", index+1))
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return storedFile{}, fmt.Errorf("failed to create input file: %w", err)
	}
	written, err := io.Copy(dest, src)
	if closeErr := dest.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return storedFile{}, fmt.Errorf("failed to store input file: %w", err)
	}

	mtype, err := mimetype.DetectFile(destPath)
	if err != nil || !mtype.Is("application/pdf") {
		return storedFile{}, newError("INVALID_INPUT", "PDFとして認識できないファイルです。", err)
	}

	pages, err := probeSource(destPath)
	if err != nil {
		return storedFile{}, err
	}
	if pages <= 0 {
		return storedFile{}, newError("INVALID_INPUT", "入力PDFにページがありません。", nil)
	}
	if s.cfg != nil && s.cfg.MaxPages > 0 && pages > s.cfg.MaxPages {
		return storedFile{}, newError("LIMIT_EXCEEDED",
			fmt.Sprintf("ページ数が上限 (%dページ) を超えています。", s.cfg.MaxPages), nil)
	}

	return storedFile{
		path:         destPath,
		originalName: filepath.Base(file.Filename),
		size:         written,
		pages:        pages,
	}, nil
}

func (s *Service) scheduleCleanup(dir string) {
	expireMinutes := defaultCleanupMin
	if s.cfg != nil && s.cfg.JobExpireMinutes > 0 {
		expireMinutes = s.cfg.JobExpireMinutes
	}
	time.AfterFunc(time.Duration(expireMinutes)*time.Minute, func() {
		_ = removeDir(dir)
	})
}

func removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func writeJSON(path string, payload any) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
