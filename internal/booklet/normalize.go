package booklet

import "fmt"

// Normalize は元のページ数から面付け対象のページ数を決定します。
//
// ページ数が4の倍数でなく padToMultiple が true の場合、4の倍数になるまで
// 空白ページを追加します。padToMultiple が false の場合はページ数をそのまま
// 採用し、折りたたんだときにページ順が崩れる可能性を warning として返します。
// warning は処理を止めるものではありません。
func Normalize(totalPages int, padToMultiple bool) (targetPages, blanksAdded int, warning string, err error) {
	if totalPages <= 0 {
		return 0, 0, "", fmt.Errorf("%w: %d", ErrInvalidPageCount, totalPages)
	}

	rem := totalPages % 4
	if rem == 0 {
		return totalPages, 0, "", nil
	}

	if padToMultiple {
		blanksAdded = 4 - rem
		return totalPages + blanksAdded, blanksAdded, "", nil
	}

	warning = fmt.Sprintf("総ページ数 (%d) が4の倍数ではないため、冊子が正しく折りたためない可能性があります。", totalPages)
	return totalPages, 0, warning, nil
}
