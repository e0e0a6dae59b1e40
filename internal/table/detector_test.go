package table

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"
)

// makeSyntheticTableImage draws a rows x cols grid of black ruling lines on a
// white background, mirroring the reference implementation's PIL-based
// synthetic fixture.
func makeSyntheticTableImage(rows, cols, cellW, cellH int) image.Image {
	width := cols*cellW + 2
	height := rows*cellH + 2
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	drawHLine := func(y, x0, x1 int) {
		for x := x0; x <= x1; x++ {
			img.Set(x, y, color.Black)
			img.Set(x, y+1, color.Black)
		}
	}
	drawVLine := func(x, y0, y1 int) {
		for y := y0; y <= y1; y++ {
			img.Set(x, y, color.Black)
			img.Set(x+1, y, color.Black)
		}
	}

	for r := 0; r <= rows; r++ {
		y := 1 + r*cellH
		drawHLine(y, 1, 1+cols*cellW)
	}
	for c := 0; c <= cols; c++ {
		x := 1 + c*cellW
		drawVLine(x, 1, 1+rows*cellH)
	}

	return img
}

func TestDetectTrueOnSyntheticGrid(t *testing.T) {
	img := makeSyntheticTableImage(4, 3, 120, 60)
	res, flags := Detect(img, time.Time{})
	if !res.GridDetected {
		t.Fatalf("expected grid_detected, flags=%v", flags)
	}
	if !res.Detected {
		t.Fatalf("expected detected, flags=%v res=%+v", flags, res)
	}
}

func TestDetectFalseOnBlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	res, _ := Detect(img, time.Time{})
	if res.Detected {
		t.Fatalf("expected no table on a blank image")
	}
}

func TestDetectRespectsDeadline(t *testing.T) {
	img := makeSyntheticTableImage(4, 3, 120, 60)
	past := time.Now().Add(-time.Second)
	res, flags := Detect(img, past)
	if res.Detected {
		t.Fatalf("expected detection to short-circuit past its deadline")
	}
	if flags["time_budget_exceeded"] != true {
		t.Fatalf("expected time_budget_exceeded flag, got %v", flags)
	}
}
