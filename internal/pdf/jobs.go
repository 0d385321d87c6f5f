package pdf

import (
	"context"
	"fmt"
)

// RunJob はジョブIDに対応する処理をマニフェストから復元して実行します。
// 同期リクエストと非同期ワーカーの両方がこの経路を通ります。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	ws := s.workspaceFor(jobID)
	manifest, err := loadManifest(ws.dir)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}
	if manifest.Operation == "" {
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("manifest missing operation")
	}

	stored := storedFilesFromManifest(ws.dir, manifest)
	if len(stored) == 0 {
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("manifest has no input files")
	}

	var (
		result *Result
		runErr error
	)

	switch manifest.Operation {
	case OperationBooklet:
		state := &bookletState{
			ws:   ws,
			file: stored[0],
			opts: BookletOptions{
				CenterMarginMm: manifest.CenterMarginMm,
				OuterMarginMm:  manifest.OuterMarginMm,
				AddBlanks:      manifest.AddBlanks,
			},
		}
		result, runErr = s.executeBooklet(ctx, state, reporter)
	default:
		_ = removeDir(ws.dir)
		return nil, fmt.Errorf("unsupported operation: %s", manifest.Operation)
	}

	if runErr != nil {
		// キャンセル・失敗時は中途半端な成果物を残さない
		if cleanupErr := removeDir(ws.dir); cleanupErr != nil {
			runErr = fmt.Errorf("%w (ワークスペースの削除にも失敗しました: %v)", runErr, cleanupErr)
		}
		return nil, runErr
	}

	return result, nil
}
