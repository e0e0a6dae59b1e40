package rasterops

import "testing"

func TestConnectedComponentBoxesFindsTwoSeparateBlobs(t *testing.T) {
	b := NewBitmap(20, 10)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			b.Set(x, y, 255)
		}
	}
	for y := 0; y < 4; y++ {
		for x := 12; x < 18; x++ {
			b.Set(x, y, 255)
		}
	}

	boxes := ConnectedComponentBoxes(b)
	if len(boxes) != 2 {
		t.Fatalf("expected 2 components, got %d: %+v", len(boxes), boxes)
	}
}

func TestSegmentCentersCollapsesRuns(t *testing.T) {
	centers := SegmentCenters([]int{1, 2, 3, 10, 11, 20})
	want := []int{2, 10, 20}
	if len(centers) != len(want) {
		t.Fatalf("expected %v, got %v", want, centers)
	}
	for i := range want {
		if centers[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, centers)
		}
	}
}

func TestIndicesAtOrAboveFiltersThreshold(t *testing.T) {
	counts := []int{1, 5, 9, 2, 10}
	idx := IndicesAtOrAbove(counts, 5)
	want := []int{1, 2, 4}
	if len(idx) != len(want) {
		t.Fatalf("expected %v, got %v", want, idx)
	}
	for i := range want {
		if idx[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, idx)
		}
	}
}

func TestRowColCounts(t *testing.T) {
	b := NewBitmap(5, 3)
	b.Set(0, 1, 255)
	b.Set(1, 1, 255)
	b.Set(2, 1, 255)

	rows := RowCounts(b)
	if rows[1] != 3 {
		t.Fatalf("expected row 1 to have 3 foreground pixels, got %d", rows[1])
	}

	cols := ColCounts(b)
	if cols[0] != 1 || cols[1] != 1 || cols[2] != 1 {
		t.Fatalf("expected columns 0-2 to each have 1 foreground pixel, got %v", cols)
	}
}
