package pdf

import (
	"context"
	"mime/multipart"

	"github.com/imamwahyudime/pdf-booklet-creator/internal/booklet"
)

// InspectResult はアップロードされたPDFの基本メタデータを表します。
// Foldable が false の場合、Warning に理由が入ります。
type InspectResult struct {
	Source   SourceFileMeta `json:"source"`
	Foldable bool           `json:"foldable"`
	Warning  string         `json:"warning,omitempty"`
}

// InspectMultipart は単一PDFを受け取り、ページ数と冊子化可否を返します。
func (s *Service) InspectMultipart(ctx context.Context, file *multipart.FileHeader) (*InspectResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = removeDir(ws.dir)
	}()

	stored, err := s.storeMultipartFile(ctx, file, ws.inDir, 0)
	if err != nil {
		return nil, err
	}

	_, _, warning, err := booklet.Normalize(stored.pages, false)
	if err != nil {
		return nil, newError("INVALID_INPUT", "入力PDFにページがありません。", err)
	}

	return &InspectResult{
		Source: SourceFileMeta{
			Name:  stored.originalName,
			Size:  stored.size,
			Pages: stored.pages,
		},
		Foldable: warning == "",
		Warning:  warning,
	}, nil
}
