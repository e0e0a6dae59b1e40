// Package table implements ruled-table detection and extraction: ruling-line
// morphology, line-position recovery, grid-cell slicing, and an OCR-block
// clustering fallback when ruling lines are insufficient.
package table

import (
	"image"
	"time"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/rasterops"
)

const (
	minLinesRequired   = 3
	lineRatioThreshold = 0.008
	intersectionsMin   = 200
)

// Detect runs the ruling-line heuristic (spec §4.3). Never panics.
func Detect(img image.Image, deadline time.Time) (model.TableDetectResult, map[string]any) {
	flags := map[string]any{
		"table_detected": false,
		"grid_detected":  false,
	}
	empty := model.TableDetectResult{Method: "grid_lines_v1"}

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		return empty, flags
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	gray := rasterops.ToGray(img)
	blurred := rasterops.GaussianBlur3x3(gray)
	thresh := rasterops.OtsuThreshold(blurred)
	bw := rasterops.BinarizeInv(blurred, thresh)

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		return empty, flags
	}

	hKernel := maxInt(10, w/30)
	vKernel := maxInt(10, h/30)
	horizontal := rasterops.ExtractLineMask(bw, hKernel, true)
	vertical := rasterops.ExtractLineMask(bw, vKernel, false)

	combined := rasterops.Or(horizontal, vertical)
	intersections := rasterops.And(horizontal, vertical)

	totalPixels := float64(maxInt(1, w*h))
	lineRatio := float64(combined.CountNonZero()) / totalPixels
	intersectionsCount := intersections.CountNonZero()

	xLines := linePositions(vertical, false, w, h)
	yLines := linePositions(horizontal, true, w, h)

	minLinesOK := len(xLines) >= minLinesRequired && len(yLines) >= minLinesRequired
	ratioOK := lineRatio >= lineRatioThreshold
	intersectionsOK := intersectionsCount >= intersectionsMin

	detected := minLinesOK && (ratioOK || intersectionsOK)
	gridDetected := minLinesOK

	flags["table_detected"] = detected
	flags["grid_detected"] = gridDetected

	return model.TableDetectResult{
		Detected:           detected,
		GridDetected:       gridDetected,
		Method:             "grid_lines_v1",
		LinePixelRatio:     lineRatio,
		IntersectionsCount: intersectionsCount,
		XLines:             xLines,
		YLines:             yLines,
	}, flags
}

// linePositions projects the mask onto the axis perpendicular to the lines:
// horizontal lines are recovered from per-row counts, vertical lines from
// per-column counts.
func linePositions(mask *rasterops.Bitmap, horizontalLines bool, w, h int) []int {
	var counts []int
	var threshold int
	if horizontalLines {
		counts = rasterops.RowCounts(mask)
		threshold = maxInt(10, int(float64(w)*0.35))
	} else {
		counts = rasterops.ColCounts(mask)
		threshold = maxInt(10, int(float64(h)*0.35))
	}
	active := rasterops.IndicesAtOrAbove(counts, threshold)
	return rasterops.SegmentCenters(active)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
