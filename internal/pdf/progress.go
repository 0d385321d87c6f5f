package pdf

// ProgressReporter は処理段階・状態メッセージ・進捗率(0-100)を受け取る
// コールバックです。組版フェーズではシート面単位で呼び出されます。
type ProgressReporter func(stage, message string, percent int)

func reportProgress(cb ProgressReporter, stage, message string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, message, percent)
}
