package table

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
)

func blankImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func TestExtractGridShapeAndNonEmptyCells(t *testing.T) {
	img := makeSyntheticTableImage(3, 3, 120, 60)
	detect, flags := Detect(img, time.Time{})
	if !detect.Detected {
		t.Fatalf("expected synthetic grid to be detected, flags=%v", flags)
	}

	patch, extractFlags := Extract(img, detect, nil, time.Time{}, func(cell image.Image) (string, map[string]any) {
		return "X", nil
	})

	tableOut, ok := patch["table"].(map[string]any)
	if !ok {
		t.Fatalf("expected a table key in the patch, got %v", patch)
	}
	if tableOut["method"] != "grid_lines_v1" {
		t.Fatalf("expected grid_lines_v1 method, got %v", tableOut["method"])
	}

	rows, ok := tableOut["rows"].([][]string)
	if !ok {
		t.Fatalf("expected rows to be [][]string, got %T", tableOut["rows"])
	}
	if len(rows) < 2 {
		t.Fatalf("expected at least 2 rows, got %d", len(rows))
	}
	if len(rows[0]) < 2 {
		t.Fatalf("expected at least 2 columns, got %d", len(rows[0]))
	}
	for _, row := range rows {
		for _, cell := range row {
			if cell == "" {
				t.Fatalf("expected non-empty cell from stub OCR, flags=%v", extractFlags)
			}
		}
	}
}

func TestExtractFallsBackToClusteringWithoutGrid(t *testing.T) {
	detect := model.TableDetectResult{Method: "grid_lines_v1"}
	blocks := []model.OcrBlock{
		{Text: "Name", BBox: model.BoundingBox{X: 0.05, Y: 0.1, W: 0.2, H: 0.08}},
		{Text: "Age", BBox: model.BoundingBox{X: 0.4, Y: 0.1, W: 0.1, H: 0.08}},
		{Text: "Alice", BBox: model.BoundingBox{X: 0.05, Y: 0.3, W: 0.2, H: 0.08}},
		{Text: "30", BBox: model.BoundingBox{X: 0.4, Y: 0.3, W: 0.1, H: 0.08}},
	}

	patch, flags := Extract(blankImage(200, 100), detect, blocks, time.Time{}, nil)
	tableOut := patch["table"].(map[string]any)
	if tableOut["method"] != "ocr_cluster_v1" {
		t.Fatalf("expected fallback clustering method, got %v flags=%v", tableOut["method"], flags)
	}
	if flags["used_fallback_clustering"] != true {
		t.Fatalf("expected used_fallback_clustering flag to be set")
	}
}

func TestExtractTimeBudgetExceeded(t *testing.T) {
	img := makeSyntheticTableImage(3, 3, 120, 60)
	detect, _ := Detect(img, time.Time{})

	patch, flags := Extract(img, detect, nil, time.Now().Add(-time.Second), nil)
	tableOut := patch["table"].(map[string]any)
	if tableOut["notes"] != "time_budget_exceeded" {
		t.Fatalf("expected time_budget_exceeded note, got %v flags=%v", tableOut["notes"], flags)
	}
}
