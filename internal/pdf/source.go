package pdf

import (
	"errors"
	"fmt"
	"math"

	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/gofpdi"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/imamwahyudime/pdf-booklet-creator/internal/booklet"
)

// probeSource は入力PDFを検証してページ数を返します。
// パスワードを要求するPDFは ENCRYPTED_SOURCE として拒否します。
func probeSource(path string) (int, error) {
	ctx, err := pdfapi.ReadContextFile(path)
	if err != nil {
		if errors.Is(err, pdfcpu.ErrWrongPassword) {
			return 0, newError("ENCRYPTED_SOURCE", "入力PDFは暗号化されています。パスワードを解除してから再度お試しください。", err)
		}
		return 0, newError("UNSUPPORTED_PDF", "入力PDFを読み込めませんでした。ファイルが破損していないか確認してください。", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, newError("UNSUPPORTED_PDF", "入力PDFのページ数を取得できませんでした。", err)
	}
	return ctx.PageCount, nil
}

// sheetBuilder は出力シートの生成とエラーマーカーの描画を gofpdf で行います。
// booklet.SheetSink を実装します。
type sheetBuilder struct {
	doc *gofpdf.Fpdf
}

func newSheetBuilder(sheetWidth, sheetHeight float64) *sheetBuilder {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: sheetWidth, Ht: sheetHeight},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	return &sheetBuilder{doc: doc}
}

func (b *sheetBuilder) NewSheet(width, height float64) error {
	b.doc.AddPageFormat("P", gofpdf.SizeType{Wd: width, Ht: height})
	return b.takeError()
}

// DrawSlotError は複写に失敗したスロットへ赤枠とページ番号を描画します。
func (b *sheetBuilder) DrawSlotError(rect booklet.Rect, page int) error {
	b.doc.SetDrawColor(255, 0, 0)
	b.doc.SetLineWidth(1)
	b.doc.Rect(rect.X0, rect.Y0, rect.Width(), rect.Height(), "D")

	inset := rect.Inset(5)
	b.doc.SetFont("Helvetica", "", 8)
	b.doc.SetTextColor(255, 0, 0)
	b.doc.SetXY(inset.X0, inset.Y0)
	b.doc.MultiCell(inset.Width(), 10, fmt.Sprintf("Error\nPage %d", page), "", "C", false)
	return b.takeError()
}

// WriteFile はドキュメントを書き出してビルダーを閉じます。
func (b *sheetBuilder) WriteFile(path string) error {
	return b.doc.OutputFileAndClose(path)
}

// takeError は gofpdf の持つ累積エラーを取り出してクリアします。
// エラーを残したままにすると以降の描画が全て無視されるため、
// スロット単位の失敗分離にはクリアが必須です。
func (b *sheetBuilder) takeError() error {
	if !b.doc.Err() {
		return nil
	}
	err := b.doc.Error()
	b.doc.ClearError()
	return err
}

// pageImporter は gofpdi で元PDFのページを現在のシート面へ取り込みます。
// booklet.SourceAccessor を実装します。
type pageImporter struct {
	builder *sheetBuilder
	imp     *gofpdi.Importer
	path    string
	pages   int
}

func newPageImporter(builder *sheetBuilder, path string, pages int) *pageImporter {
	return &pageImporter{
		builder: builder,
		imp:     gofpdi.NewImporter(),
		path:    path,
		pages:   pages,
	}
}

func (p *pageImporter) PageCount() int {
	return p.pages
}

// CopyPageInto は page の内容をアスペクト比を保ったまま rect に収めます。
// gofpdi は解析に失敗すると panic するため、ここで回収して
// 1スロット分のエラーに封じ込めます。
func (p *pageImporter) CopyPageInto(rect booklet.Rect, page int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("importing page %d: %v", page, r)
		}
	}()

	tpl := p.imp.ImportPage(p.builder.doc, p.path, page, "/MediaBox")

	x, y := rect.X0, rect.Y0
	w, h := rect.Width(), rect.Height()
	if sizes := p.imp.GetPageSizes(); sizes != nil {
		if mb, ok := sizes[page]["/MediaBox"]; ok && mb["w"] > 0 && mb["h"] > 0 {
			scale := math.Min(w/mb["w"], h/mb["h"])
			scaledW, scaledH := mb["w"]*scale, mb["h"]*scale
			x += (w - scaledW) / 2
			y += (h - scaledH) / 2
			w, h = scaledW, scaledH
		}
	}

	p.imp.UseImportedTemplate(p.builder.doc, tpl, x, y, w, h)
	return p.builder.takeError()
}
