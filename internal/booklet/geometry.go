package booklet

import (
	"errors"
	"fmt"
)

// ポイント単位の用紙サイズ定数。出力はA4横置きが基準です。
const (
	A4WidthPt  = 595.276
	A4HeightPt = 841.890

	A4LandscapeWidthPt  = A4HeightPt
	A4LandscapeHeightPt = A4WidthPt

	// MMToPoint は 1mm をポイントに換算する係数です。
	MMToPoint = 2.83465

	// marginSlackPt はコンテンツ領域に最低限残すべき幅・高さです。
	marginSlackPt = 20.0
)

// ErrMarginTooLarge は余白が大きすぎてコンテンツ矩形を確保できない場合に返されます。
var ErrMarginTooLarge = errors.New("margins too large for sheet")

// MMToPoints はミリメートルをポイントに換算します。
func MMToPoints(mm float64) float64 {
	return mm * MMToPoint
}

// Rect は用紙左上原点・ポイント単位の矩形です。
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width は矩形の幅を返します。
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height は矩形の高さを返します。
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// Inset は四辺を margin だけ内側に狭めた矩形を返します。
func (r Rect) Inset(margin float64) Rect {
	return Rect{
		X0: r.X0 + margin,
		Y0: r.Y0 + margin,
		X1: r.X1 - margin,
		Y1: r.Y1 - margin,
	}
}

// PlanGeometry は1シート面上の左右コンテンツ矩形を計算します。
//
// 2つの矩形は同一ジョブ内のすべてのシートで共有されるため、ジョブ開始時に
// 一度だけ計算すれば十分です。余白はポイント単位で受け取ります。
func PlanGeometry(sheetWidth, sheetHeight, outerMarginPt, centralMarginPt float64) (left, right Rect, err error) {
	usableWidth := sheetWidth - 2*outerMarginPt
	usableHeight := sheetHeight - 2*outerMarginPt

	if usableWidth < centralMarginPt+marginSlackPt || usableHeight < marginSlackPt {
		return Rect{}, Rect{}, fmt.Errorf("%w: sheet %.1fx%.1fpt, outer %.1fpt, central %.1fpt",
			ErrMarginTooLarge, sheetWidth, sheetHeight, outerMarginPt, centralMarginPt)
	}

	contentWidth := (usableWidth - centralMarginPt) / 2
	contentHeight := usableHeight
	if contentWidth <= 0 || contentHeight <= 0 {
		return Rect{}, Rect{}, fmt.Errorf("%w: content area %.1fx%.1fpt",
			ErrMarginTooLarge, contentWidth, contentHeight)
	}

	left = Rect{
		X0: outerMarginPt,
		Y0: outerMarginPt,
		X1: outerMarginPt + contentWidth,
		Y1: outerMarginPt + contentHeight,
	}
	right = Rect{
		X0: left.X1 + centralMarginPt,
		Y0: outerMarginPt,
		X1: left.X1 + centralMarginPt + contentWidth,
		Y1: outerMarginPt + contentHeight,
	}
	return left, right, nil
}
