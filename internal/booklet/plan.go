// Package booklet は中綴じ(saddle-stitch)面付けの計算と組版の実行を提供します。
//
// ページ数の正規化(Normalize)、スロット割当の生成(BuildPlan)、配置矩形の計算
// (PlanGeometry)はいずれも純粋な計算で、PDFライブラリには依存しません。
// 実際の描画は Assemble がコラボレーター経由で行います。
package booklet

import (
	"errors"
	"fmt"
)

// ErrInvalidPageCount はページ数が正でない場合に返されます。
var ErrInvalidPageCount = errors.New("page count must be positive")

// Side は出力シートの面（表裏）を表します。
type Side int

const (
	SideFront Side = iota
	SideBack
)

func (s Side) String() string {
	if s == SideBack {
		return "back"
	}
	return "front"
}

// Position はシート面上の左右どちらのスロットかを表します。
type Position int

const (
	PosLeft Position = iota
	PosRight
)

// Slot は1つの出力スロットに対する配置指示です。
// Page は1-basedの元ページ番号で、0 は空白スロットを意味します。
type Slot struct {
	SheetIndex int
	Side       Side
	Pos        Position
	Page       int
}

// Blank はスロットに元ページが割り当てられていない場合に true を返します。
func (s Slot) Blank() bool {
	return s.Page == 0
}

// Plan は面付け計画全体です。Slots は物理的な印刷順に並んでおり、
// 生成後に並べ替えられることはありません。
type Plan struct {
	TargetPages int
	SourcePages int
	Slots       []Slot
}

// SheetSideCount は出力シート面の総数を返します。
func (p *Plan) SheetSideCount() int {
	return len(p.Slots) / 2
}

// SheetSides はスロットをシート面ごとの (左, 右) ペアにまとめて返します。
func (p *Plan) SheetSides() [][2]Slot {
	sides := make([][2]Slot, 0, p.SheetSideCount())
	for i := 0; i+1 < len(p.Slots); i += 2 {
		sides = append(sides, [2]Slot{p.Slots[i], p.Slots[i+1]})
	}
	return sides
}

// BuildPlan は targetPages ページ分の中綴じ面付け計画を生成します。
//
// シートはペア単位で生成されます。ペア i の表面は (左=targetPages-2i, 右=2i+1)、
// 裏面は (左=2i+2, 右=targetPages-2i-1) を配置します。シート面数が奇数の場合は
// 対応する裏面を持たない表面を最後に1枚だけ追加します。計算されたページ番号が
// [1, sourcePages] の範囲外になった場合（空白パディング領域）は空白スロットに
// なります。これはエラーではなく定義された挙動です。
func BuildPlan(targetPages, sourcePages int) (*Plan, error) {
	if targetPages <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageCount, targetPages)
	}
	if sourcePages < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageCount, sourcePages)
	}

	sides := targetPages / 2
	plan := &Plan{
		TargetPages: targetPages,
		SourcePages: sourcePages,
		Slots:       make([]Slot, 0, sides*2),
	}

	appendSide := func(idx int, side Side, left, right int) {
		plan.Slots = append(plan.Slots,
			Slot{SheetIndex: idx, Side: side, Pos: PosLeft, Page: clampPage(left, sourcePages)},
			Slot{SheetIndex: idx, Side: side, Pos: PosRight, Page: clampPage(right, sourcePages)},
		)
	}

	for i := 0; i < sides/2; i++ {
		front := 2 * i
		appendSide(front, SideFront, targetPages-front, front+1)

		back := 2*i + 1
		appendSide(back, SideBack, back+1, targetPages-back)
	}

	if sides%2 != 0 {
		front := (sides / 2) * 2
		appendSide(front, SideFront, targetPages-front, front+1)
	}

	return plan, nil
}

func clampPage(page, sourcePages int) int {
	if page < 1 || page > sourcePages {
		return 0
	}
	return page
}
