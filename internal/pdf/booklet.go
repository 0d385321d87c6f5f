package pdf

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/imamwahyudime/pdf-booklet-creator/internal/booklet"
)

const (
	bookletFilename    = "booklet.pdf"
	bookletRawFilename = "booklet-raw.pdf"
)

// BookletOptions は冊子生成のパラメータです。余白はミリメートル単位です。
type BookletOptions struct {
	CenterMarginMm float64 `json:"centerMarginMm"`
	OuterMarginMm  float64 `json:"outerMarginMm"`
	AddBlanks      bool    `json:"addBlanks"`
}

func (o BookletOptions) validate() error {
	if o.CenterMarginMm < 0 || o.OuterMarginMm < 0 {
		return newError("INVALID_INPUT", "余白には0以上の値を指定してください。", nil)
	}
	return nil
}

// BookletMultipart は単一PDFから中綴じ冊子PDFを同期生成します。
func (s *Service) BookletMultipart(ctx context.Context, file *multipart.FileHeader, opts BookletOptions) (_ *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, _, err := s.prepareBooklet(ctx, file, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = removeDir(state.ws.dir)
		}
	}()

	result, execErr := s.executeBooklet(ctx, state, nil)
	if execErr != nil {
		return nil, execErr
	}
	return result, nil
}

// PrepareBookletJob は非同期ジョブ用に入力を保存します。
func (s *Service) PrepareBookletJob(ctx context.Context, file *multipart.FileHeader, opts BookletOptions) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}
	_, manifest, err := s.prepareBooklet(ctx, file, opts)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

type bookletState struct {
	ws   workspace
	file storedFile
	opts BookletOptions
}

func (s *Service) prepareBooklet(ctx context.Context, file *multipart.FileHeader, opts BookletOptions) (*bookletState, *JobManifest, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.storeMultipartFile(ctx, file, ws.inDir, 0)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, nil, err
	}

	manifest := &JobManifest{
		JobID:          ws.jobID,
		Operation:      OperationBooklet,
		Files:          toJobFiles([]storedFile{stored}),
		CenterMarginMm: opts.CenterMarginMm,
		OuterMarginMm:  opts.OuterMarginMm,
		AddBlanks:      opts.AddBlanks,
		CreatedAt:      s.now().UTC(),
	}
	if err := writeManifest(ws.dir, manifest); err != nil {
		_ = removeDir(ws.dir)
		return nil, nil, fmt.Errorf("ジョブマニフェストの保存に失敗しました: %w", err)
	}

	return &bookletState{ws: ws, file: stored, opts: opts}, manifest, nil
}

func (s *Service) executeBooklet(ctx context.Context, state *bookletState, progress ProgressReporter) (*Result, error) {
	ws := state.ws
	stored := state.file
	opts := state.opts

	reportProgress(progress, "load", fmt.Sprintf("入力PDFを読み込みました: %dページ", stored.pages), 5)

	targetPages, blanksAdded, warning, err := booklet.Normalize(stored.pages, opts.AddBlanks)
	if err != nil {
		return nil, newError("INVALID_INPUT", "処理対象のページがありません。", err)
	}
	if warning != "" {
		reportProgress(progress, "plan", warning, 8)
	} else if blanksAdded > 0 {
		reportProgress(progress, "plan",
			fmt.Sprintf("空白ページを%d枚追加し、合計%dページとして処理します。", blanksAdded, targetPages), 8)
	}

	plan, err := booklet.BuildPlan(targetPages, stored.pages)
	if err != nil {
		return nil, newError("INVALID_INPUT", "面付け計画の生成に失敗しました。", err)
	}

	sheetWidth, sheetHeight := s.sheetSize()
	left, right, err := booklet.PlanGeometry(sheetWidth, sheetHeight,
		booklet.MMToPoints(opts.OuterMarginMm), booklet.MMToPoints(opts.CenterMarginMm))
	if err != nil {
		if errors.Is(err, booklet.ErrMarginTooLarge) {
			return nil, newError("MARGIN_TOO_LARGE",
				fmt.Sprintf("余白 (外側%.1fmm / 中央%.1fmm) が用紙に対して大きすぎます。",
					opts.OuterMarginMm, opts.CenterMarginMm), err)
		}
		return nil, err
	}

	builder := newSheetBuilder(sheetWidth, sheetHeight)
	importer := newPageImporter(builder, stored.path, stored.pages)

	// 組版フェーズの 0-100% を全体進捗の 10-90% に割り付ける
	stats, err := booklet.Assemble(ctx, booklet.Job{
		Plan:        plan,
		SheetWidth:  sheetWidth,
		SheetHeight: sheetHeight,
		Left:        left,
		Right:       right,
		Source:      importer,
		Sink:        builder,
		Progress: func(message string, percent int) {
			reportProgress(progress, "assemble", message, 10+(80*percent)/100)
		},
	})
	if err != nil {
		return nil, err
	}

	rawPath := filepath.Join(ws.outDir, bookletRawFilename)
	outputPath := filepath.Join(ws.outDir, bookletFilename)
	if err := builder.WriteFile(rawPath); err != nil {
		return nil, newError("OUTPUT_WRITE_FAILURE", "冊子PDFの書き出しに失敗しました。", err)
	}
	reportProgress(progress, "write", "冊子PDFを圧縮しています...", 92)

	// リファレンス実装の garbage=4, deflate 保存に相当する後処理
	if err := pdfapi.OptimizeFile(rawPath, outputPath, nil); err != nil {
		return nil, newError("OUTPUT_WRITE_FAILURE", "冊子PDFの最適化に失敗しました。", err)
	}
	_ = os.Remove(rawPath)

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return nil, newError("OUTPUT_WRITE_FAILURE", "出力ファイルの確認に失敗しました。", err)
	}

	sourceMeta := SourceFileMeta{
		Name:  stored.originalName,
		Size:  stored.size,
		Pages: stored.pages,
	}
	meta := &BookletMeta{
		Source:         sourceMeta,
		TargetPages:    targetPages,
		BlanksAdded:    blanksAdded,
		SheetSides:     stats.SheetsProcessed,
		SlotFailures:   stats.SlotFailures,
		CenterMarginMm: opts.CenterMarginMm,
		OuterMarginMm:  opts.OuterMarginMm,
		Warning:        warning,
	}

	metaPayload := struct {
		Type      OperationType `json:"type"`
		CreatedAt string        `json:"createdAt"`
		Booklet   *BookletMeta  `json:"booklet"`
	}{
		Type:      OperationBooklet,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Booklet:   meta,
	}
	metaPath := filepath.Join(ws.dir, "meta.json")
	if err := writeJSON(metaPath, metaPayload); err != nil {
		return nil, fmt.Errorf("メタデータの保存に失敗しました: %w", err)
	}

	s.scheduleCleanup(ws.dir)

	reportProgress(progress, "completed",
		fmt.Sprintf("冊子を作成しました。両面印刷で長辺綴じを指定してください。(シート面%d枚)", stats.SheetsProcessed), 100)

	return &Result{
		JobID:          ws.jobID,
		Operation:      OperationBooklet,
		OutputPath:     outputPath,
		OutputFilename: bookletFilename,
		OutputSize:     outInfo.Size(),
		ResultKind:     ResultKindPDF,
		Meta:           meta,
		jobDir:         ws.dir,
	}, nil
}

func (s *Service) sheetSize() (width, height float64) {
	width = booklet.A4LandscapeWidthPt
	height = booklet.A4LandscapeHeightPt
	if s.cfg != nil && s.cfg.SheetWidthPt > 0 && s.cfg.SheetHeightPt > 0 {
		width = s.cfg.SheetWidthPt
		height = s.cfg.SheetHeightPt
	}
	return width, height
}
