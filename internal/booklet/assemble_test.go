package booklet

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type copyCall struct {
	rect Rect
	page int
}

type fakeSource struct {
	pages    int
	failPage int
	copies   []copyCall
}

func (f *fakeSource) PageCount() int {
	return f.pages
}

func (f *fakeSource) CopyPageInto(rect Rect, page int) error {
	if f.failPage != 0 && page == f.failPage {
		return errors.New("broken content stream")
	}
	f.copies = append(f.copies, copyCall{rect: rect, page: page})
	return nil
}

type fakeSink struct {
	sheets      int
	markers     []int
	newSheetErr error
}

func (f *fakeSink) NewSheet(width, height float64) error {
	if f.newSheetErr != nil {
		return f.newSheetErr
	}
	f.sheets++
	return nil
}

func (f *fakeSink) DrawSlotError(rect Rect, page int) error {
	f.markers = append(f.markers, page)
	return nil
}

func testJob(t *testing.T, target, source int, src *fakeSource, sink *fakeSink, progress ProgressFunc) Job {
	t.Helper()
	plan, err := BuildPlan(target, source)
	if err != nil {
		t.Fatalf("BuildPlan returned error: %v", err)
	}
	left, right, err := PlanGeometry(A4LandscapeWidthPt, A4LandscapeHeightPt, MMToPoints(5), MMToPoints(10))
	if err != nil {
		t.Fatalf("PlanGeometry returned error: %v", err)
	}
	return Job{
		Plan:        plan,
		SheetWidth:  A4LandscapeWidthPt,
		SheetHeight: A4LandscapeHeightPt,
		Left:        left,
		Right:       right,
		Source:      src,
		Sink:        sink,
		Progress:    progress,
	}
}

func TestAssembleEightPages(t *testing.T) {
	src := &fakeSource{pages: 8}
	sink := &fakeSink{}
	var percents []int
	var messages []string
	job := testJob(t, 8, 8, src, sink, func(message string, percent int) {
		messages = append(messages, message)
		percents = append(percents, percent)
	})

	stats, err := Assemble(context.Background(), job)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if stats.SheetsProcessed != 4 || stats.SlotFailures != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if sink.sheets != 4 {
		t.Fatalf("sheets created = %d, want 4", sink.sheets)
	}
	if len(src.copies) != 8 {
		t.Fatalf("pages copied = %d, want 8", len(src.copies))
	}

	want := []int{25, 50, 75, 100}
	if len(percents) != len(want) {
		t.Fatalf("progress events = %v, want %v", percents, want)
	}
	for i, p := range want {
		if percents[i] != p {
			t.Fatalf("progress[%d] = %d, want %d", i, percents[i], p)
		}
	}
	if !strings.Contains(messages[0], "1/4") {
		t.Fatalf("first status should name sheet 1/4: %q", messages[0])
	}
}

func TestAssembleSlotFailureIsIsolated(t *testing.T) {
	src := &fakeSource{pages: 8, failPage: 3}
	sink := &fakeSink{}
	warnings := 0
	job := testJob(t, 8, 8, src, sink, func(message string, percent int) {
		if strings.Contains(message, "警告") {
			warnings++
		}
	})

	stats, err := Assemble(context.Background(), job)
	if err != nil {
		t.Fatalf("a single bad page must not fail the job: %v", err)
	}
	if stats.SlotFailures != 1 {
		t.Fatalf("slot failures = %d, want 1", stats.SlotFailures)
	}
	if warnings != 1 {
		t.Fatalf("warning messages = %d, want 1", warnings)
	}
	if len(sink.markers) != 1 || sink.markers[0] != 3 {
		t.Fatalf("error markers = %v, want [3]", sink.markers)
	}
	if len(src.copies) != 7 {
		t.Fatalf("pages copied = %d, want 7", len(src.copies))
	}
	if stats.SheetsProcessed != 4 {
		t.Fatalf("sheets processed = %d, want 4", stats.SheetsProcessed)
	}
}

func TestAssembleSkipsBlankSlots(t *testing.T) {
	// 5ページを8ページに正規化: 空白3スロットには何も描画しない。
	src := &fakeSource{pages: 5}
	sink := &fakeSink{}
	job := testJob(t, 8, 5, src, sink, nil)

	stats, err := Assemble(context.Background(), job)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(src.copies) != 5 {
		t.Fatalf("pages copied = %d, want 5", len(src.copies))
	}
	if len(sink.markers) != 0 {
		t.Fatalf("blank slots must not produce error markers: %v", sink.markers)
	}
	if stats.SheetsProcessed != 4 {
		t.Fatalf("sheets processed = %d, want 4", stats.SheetsProcessed)
	}
}

func TestAssembleCancellation(t *testing.T) {
	const cancelAfter = 2

	src := &fakeSource{pages: 16}
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := 0
	job := testJob(t, 16, 16, src, sink, func(message string, percent int) {
		if strings.Contains(message, "警告") {
			return
		}
		events++
		if events == cancelAfter {
			cancel()
		}
	})

	stats, err := Assemble(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Assemble = %v, want context.Canceled", err)
	}
	if stats.SheetsProcessed != cancelAfter {
		t.Fatalf("sheets processed = %d, want %d", stats.SheetsProcessed, cancelAfter)
	}
	if events < cancelAfter || events > cancelAfter+1 {
		t.Fatalf("progress events = %d, want %d or %d", events, cancelAfter, cancelAfter+1)
	}
}

func TestAssembleEmptyPlan(t *testing.T) {
	job := Job{Plan: &Plan{}, Source: &fakeSource{}, Sink: &fakeSink{}}
	if _, err := Assemble(context.Background(), job); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestAssembleSheetCreationFailureAborts(t *testing.T) {
	src := &fakeSource{pages: 4}
	sink := &fakeSink{newSheetErr: errors.New("out of disk")}
	job := testJob(t, 4, 4, src, sink, nil)

	if _, err := Assemble(context.Background(), job); err == nil {
		t.Fatal("expected whole-job failure when a sheet cannot be created")
	}
	if len(src.copies) != 0 {
		t.Fatalf("no pages should be copied after sheet creation fails: %v", src.copies)
	}
}
