package booklet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrEmptyPlan はスロットを持たない計画で Assemble を呼んだ場合に返されます。
var ErrEmptyPlan = errors.New("imposition plan has no slots")

// SourceAccessor は元ドキュメントからのページ複写を提供します。
// CopyPageInto は現在のシート面の rect に page（1-based）の内容を描画します。
type SourceAccessor interface {
	PageCount() int
	CopyPageInto(rect Rect, page int) error
}

// SheetSink は出力シートの生成とエラーマーカーの描画を提供します。
// NewSheet は次のシート面を開始し、以降の描画はその面を対象とします。
type SheetSink interface {
	NewSheet(width, height float64) error
	DrawSlotError(rect Rect, page int) error
}

// ProgressFunc は状態メッセージと進捗率(0-100)を受け取るコールバックです。
type ProgressFunc func(message string, percent int)

// Job は1回の組版処理に必要な入力一式です。
type Job struct {
	Plan        *Plan
	SheetWidth  float64
	SheetHeight float64
	Left        Rect
	Right       Rect
	Source      SourceAccessor
	Sink        SheetSink
	Progress    ProgressFunc
}

func (j Job) report(message string, percent int) {
	if j.Progress == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	j.Progress(message, percent)
}

// Stats は組版処理の実行結果です。
type Stats struct {
	SheetsProcessed int
	SlotFailures    int
}

// Assemble は計画を印刷順に消化し、シート面ごとに配置を実行します。
//
// 1ページの複写に失敗してもジョブは中断されません。失敗したスロットには
// エラーマーカーを描画し、警告メッセージを通知して次のスロットへ進みます。
// キャンセルはシート面単位の協調的チェックで、検出時点の Stats とともに
// ctx のエラーを返します。全面を消化した場合の進捗は単調増加で、最後の
// シート面の完了時にちょうど100になります。
func Assemble(ctx context.Context, job Job) (Stats, error) {
	var stats Stats

	if job.Plan == nil || len(job.Plan.Slots) == 0 {
		return stats, ErrEmptyPlan
	}
	if job.Source == nil || job.Sink == nil {
		return stats, errors.New("source accessor and sheet sink are required")
	}

	sides := job.Plan.SheetSides()
	total := len(sides)

	for i, side := range sides {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := job.Sink.NewSheet(job.SheetWidth, job.SheetHeight); err != nil {
			return stats, fmt.Errorf("failed to start sheet %d: %w", i+1, err)
		}

		for _, slot := range side {
			if slot.Blank() {
				continue
			}
			rect := job.Left
			if slot.Pos == PosRight {
				rect = job.Right
			}
			if err := job.Source.CopyPageInto(rect, slot.Page); err != nil {
				stats.SlotFailures++
				job.report(fmt.Sprintf("警告: ページ %d の配置に失敗しました: %v", slot.Page, err),
					100*stats.SheetsProcessed/total)
				// マーカー描画の失敗はスロットを空白のまま残すだけに留める
				_ = job.Sink.DrawSlotError(rect, slot.Page)
			}
		}

		stats.SheetsProcessed++
		job.report(fmt.Sprintf("出力シート %d/%d を処理しました (入力 %s | %s)",
			i+1, total, pageLabel(side[0].Page), pageLabel(side[1].Page)),
			100*stats.SheetsProcessed/total)
	}

	return stats, nil
}

func pageLabel(page int) string {
	if page == 0 {
		return "空白"
	}
	return strconv.Itoa(page)
}
