package booklet

import (
	"errors"
	"testing"
)

func TestNormalizeMultipleOfFour(t *testing.T) {
	for _, pages := range []int{4, 8, 12, 100} {
		target, blanks, warning, err := Normalize(pages, true)
		if err != nil {
			t.Fatalf("Normalize(%d) returned error: %v", pages, err)
		}
		if target != pages || blanks != 0 {
			t.Fatalf("Normalize(%d) = (%d, %d), want (%d, 0)", pages, target, blanks, pages)
		}
		if warning != "" {
			t.Fatalf("Normalize(%d) returned unexpected warning: %q", pages, warning)
		}
	}
}

func TestNormalizeWithPadding(t *testing.T) {
	for pages := 1; pages <= 50; pages++ {
		if pages%4 == 0 {
			continue
		}
		target, blanks, warning, err := Normalize(pages, true)
		if err != nil {
			t.Fatalf("Normalize(%d) returned error: %v", pages, err)
		}
		if target%4 != 0 {
			t.Fatalf("Normalize(%d): target %d is not a multiple of 4", pages, target)
		}
		if blanks < 1 || blanks > 3 || target-pages != blanks {
			t.Fatalf("Normalize(%d) = (%d, %d): inconsistent padding", pages, target, blanks)
		}
		if warning != "" {
			t.Fatalf("Normalize(%d) with padding returned warning: %q", pages, warning)
		}
	}
}

func TestNormalizeFivePages(t *testing.T) {
	target, blanks, _, err := Normalize(5, true)
	if err != nil {
		t.Fatalf("Normalize(5) returned error: %v", err)
	}
	if target != 8 || blanks != 3 {
		t.Fatalf("Normalize(5) = (%d, %d), want (8, 3)", target, blanks)
	}
}

func TestNormalizeWithoutPadding(t *testing.T) {
	target, blanks, warning, err := Normalize(7, false)
	if err != nil {
		t.Fatalf("Normalize(7) returned error: %v", err)
	}
	if target != 7 || blanks != 0 {
		t.Fatalf("Normalize(7) = (%d, %d), want (7, 0)", target, blanks)
	}
	if warning == "" {
		t.Fatal("expected foldability warning for 7 pages without padding")
	}
}

func TestNormalizeInvalidInput(t *testing.T) {
	for _, pages := range []int{0, -1, -100} {
		if _, _, _, err := Normalize(pages, true); !errors.Is(err, ErrInvalidPageCount) {
			t.Fatalf("Normalize(%d) = %v, want ErrInvalidPageCount", pages, err)
		}
	}
}
