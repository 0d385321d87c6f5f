package pdf

import (
	"sync"
)

// OperationType はPDF処理の種別を表します。
type OperationType string

const (
	OperationBooklet OperationType = "booklet"
)

// ResultKind は生成される成果物の種別を表します。
type ResultKind string

const (
	ResultKindPDF ResultKind = "pdf"
)

// SourceFileMeta は入力PDFのメタデータです。
type SourceFileMeta struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}

// Result はPDF処理の成果を表します。
type Result struct {
	JobID          string        `json:"jobId"`
	Operation      OperationType `json:"operation"`
	OutputPath     string        `json:"outputPath"`
	OutputFilename string        `json:"outputFilename"`
	OutputSize     int64         `json:"outputSize"`
	ResultKind     ResultKind    `json:"resultKind"`
	Meta           any           `json:"meta,omitempty"`

	jobDir      string
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup は作業ディレクトリを削除します。
func (r *Result) Cleanup() error {
	if r == nil {
		return nil
	}
	r.cleanupOnce.Do(func() {
		r.cleanupErr = removeDir(r.jobDir)
	})
	return r.cleanupErr
}

// BookletMeta は冊子生成処理のメタデータです。
type BookletMeta struct {
	Source         SourceFileMeta `json:"source"`
	TargetPages    int            `json:"targetPages"`
	BlanksAdded    int            `json:"blanksAdded"`
	SheetSides     int            `json:"sheetSides"`
	SlotFailures   int            `json:"slotFailures"`
	CenterMarginMm float64        `json:"centerMarginMm"`
	OuterMarginMm  float64        `json:"outerMarginMm"`
	Warning        string         `json:"warning,omitempty"`
}
