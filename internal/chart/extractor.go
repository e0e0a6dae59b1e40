package chart

import (
	"context"
	"image"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/ocr"
	"github.com/toricodesthings/visual-extraction-worker/internal/rasterops"
)

// numericToken matches the axis-label shapes calibration looks for: an
// optionally signed, thousands-grouped, optionally decimal number, with an
// optional trailing percent or currency mark.
var numericToken = regexp.MustCompile(`[-+]?\d{1,3}(,\d{3})*(\.\d+)?%?\$?`)

const minCalibrationSpacingPx = 12
const maxCalibrationPoints = 6

// Extract runs the bar-chart value/label extraction algorithm (spec §4.6).
// Returns a {"chart": {...}} patch plus diagnostic flags. Never panics.
func Extract(ctx context.Context, img image.Image, detect model.BarChartDetectResult, bodyOCR []model.OcrBlock, deadline time.Time, adapter ocr.Adapter) (map[string]any, map[string]any) {
	started := time.Now()
	flags := map[string]any{
		"chart_detected":         detect.Detected,
		"chart_type_bar":         true,
		"axis_mapping_succeeded": false,
		"axis_mapping_failed":    false,
		"x_labels_missing":       false,
		"values_normalized":      true,
	}

	chartOut := map[string]any{
		"type":     "bar",
		"title":    nil,
		"x_labels": []string{},
		"series": []map[string]any{
			{
				"name":                  "Series 1",
				"values":                []float64{},
				"unit":                  nil,
				"values_are_normalized": true,
			},
		},
		"y_unit":     nil,
		"confidence": 0.0,
		"method":     "bar_pixels_v1",
	}

	defer func() {
		flags["chart_elapsed_ms"] = int(time.Since(started).Milliseconds())
	}()

	if !detect.Detected || detect.BarCount < 3 {
		chartOut["notes"] = "not_detected"
		return map[string]any{"chart": chartOut}, flags
	}

	b := img.Bounds()
	imgW, imgH := b.Dx(), b.Dy()

	bars := make([]model.BarRect, len(detect.Bars))
	copy(bars, detect.Bars)
	sort.Slice(bars, func(i, j int) bool { return bars[i].X < bars[j].X })

	heightsPx := make([]float64, len(bars))
	maxH := 1.0
	for i, r := range bars {
		h := float64(detect.BaselineY - r.Y)
		if h < 0 {
			h = 0
		}
		heightsPx[i] = h
		if h > maxH {
			maxH = h
		}
	}

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		chartOut["notes"] = "time_budget_exceeded"
		return map[string]any{"chart": chartOut}, flags
	}

	axisPoints := calibrationPoints(ctx, img, bars, imgW, imgH, detect.BaselineY, deadline, adapter, flags)

	var values []float64
	valuesNormalized := true
	if slope, intercept, ok := fitLinearYMap(axisPoints); ok {
		vBase := slope*float64(detect.BaselineY) + intercept
		values = make([]float64, len(heightsPx))
		for i, hpx := range heightsPx {
			yTop := float64(detect.BaselineY) - hpx
			vTop := slope*yTop + intercept
			values[i] = vTop - vBase
		}
		valuesNormalized = false
		flags["axis_mapping_succeeded"] = true
		flags["values_normalized"] = false
	} else {
		values = make([]float64, len(heightsPx))
		for i, hpx := range heightsPx {
			values[i] = hpx / maxH
		}
		flags["axis_mapping_failed"] = true
	}

	series := chartOut["series"].([]map[string]any)[0]
	series["values"] = values
	series["values_are_normalized"] = valuesNormalized

	labels := labelsForBars(bars, bodyOCR, imgW, imgH, float64(detect.BaselineY))
	anyLabel := false
	for _, l := range labels {
		if l != "" {
			anyLabel = true
			break
		}
	}
	if anyLabel {
		chartOut["x_labels"] = labels
	} else {
		flags["x_labels_missing"] = true
	}

	conf := rasterops.Clamp01(0.45 + 0.45*detect.Score)
	if b, ok := flags["axis_mapping_succeeded"].(bool); ok && b {
		conf = rasterops.Clamp01(conf + 0.18)
	}
	if b, ok := flags["x_labels_missing"].(bool); ok && b {
		conf = rasterops.Clamp01(conf - 0.10)
	}
	if valuesNormalized {
		conf = rasterops.Clamp01(conf - 0.08)
	}
	chartOut["confidence"] = conf
	chartOut["notes"] = "mvp_single_series"

	return map[string]any{"chart": chartOut}, flags
}

type calibPoint struct {
	pixelY float64
	value  float64
}

// calibrationPoints OCRs a strip to the left of the bars looking for
// y-axis tick labels, then thins them to up to maxCalibrationPoints entries
// spaced at least minCalibrationSpacingPx apart.
func calibrationPoints(ctx context.Context, img image.Image, bars []model.BarRect, imgW, imgH, baselineY int, deadline time.Time, adapter ocr.Adapter, flags map[string]any) []calibPoint {
	if adapter == nil || len(bars) == 0 {
		return nil
	}

	minX := bars[0].X
	for _, r := range bars {
		if r.X < minX {
			minX = r.X
		}
	}

	stripL := clampInt(minX-int(float64(imgW)*0.22), 0, imgW)
	stripR := clampInt(minX-int(float64(imgW)*0.02), 0, imgW)
	stripT := clampInt(int(float64(imgH)*0.05), 0, imgH)
	stripB := clampInt(int(float64(baselineY)+float64(imgH)*0.02), 0, imgH)

	if stripR <= stripL+4 || stripB <= stripT+4 {
		return nil
	}

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		return nil
	}

	strip := rasterops.CropClamped(img, stripL, stripT, stripR, stripB)
	raw, stripFlags := adapter.Run(ctx, strip)
	for k, v := range stripFlags {
		flags["axis_"+k] = v
	}

	var pts []calibPoint
	for _, rb := range raw {
		text := strings.TrimSpace(rb.Text)
		m := numericToken.FindString(text)
		if m == "" {
			continue
		}
		v, ok := parseNumber(m)
		if !ok {
			continue
		}
		yCenter := float64(stripT + rb.Top + rb.Height/2)
		pts = append(pts, calibPoint{pixelY: yCenter, value: v})
	}

	sort.Slice(pts, func(i, j int) bool { return pts[i].pixelY < pts[j].pixelY })

	var out []calibPoint
	for _, p := range pts {
		if len(out) > 0 && p.pixelY-out[len(out)-1].pixelY < minCalibrationSpacingPx {
			continue
		}
		out = append(out, p)
		if len(out) >= maxCalibrationPoints {
			break
		}
	}
	return out
}

// parseNumber parses an axis-label token, stripping thousands separators
// and any currency mark, and dividing by 100 for a trailing percent.
func parseNumber(s string) (float64, bool) {
	isPercent := strings.HasSuffix(s, "%")
	cleaned := strings.TrimSuffix(s, "%")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if isPercent {
		d = d.Div(decimal.NewFromInt(100))
	}
	f, _ := d.Float64()
	return f, true
}

// fitLinearYMap computes a least-squares line value = slope*pixelY + intercept.
func fitLinearYMap(pts []calibPoint) (slope, intercept float64, ok bool) {
	if len(pts) < 2 {
		return 0, 0, false
	}
	n := float64(len(pts))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range pts {
		sumX += p.pixelY
		sumY += p.value
		sumXY += p.pixelY * p.value
		sumXX += p.pixelY * p.pixelY
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

// labelsForBars assigns every OCR block whose y-center lies at or below
// baseline+3% of the image height to the bar nearest it by x-position,
// joining multiple words per bar. Labels are aligned with bars (sorted by x).
func labelsForBars(bars []model.BarRect, blocks []model.OcrBlock, imgW, imgH int, baselineY float64) []string {
	labels := make([]string, len(bars))
	if len(blocks) == 0 {
		return labels
	}

	xCenters := make([]float64, len(bars))
	for i, r := range bars {
		xCenters[i] = float64(r.X) + float64(r.W)/2.0
	}
	labelY := baselineY + 0.03*float64(imgH)

	for _, blk := range blocks {
		text := strings.TrimSpace(blk.Text)
		if text == "" {
			continue
		}
		cy := (blk.BBox.Y + blk.BBox.H/2.0) * float64(imgH)
		if cy < labelY {
			continue
		}
		cx := (blk.BBox.X + blk.BBox.W/2.0) * float64(imgW)

		j := 0
		best := diff(cx, xCenters[0])
		for i, xc := range xCenters[1:] {
			d := diff(cx, xc)
			if d < best {
				best = d
				j = i + 1
			}
		}
		labels[j] = strings.TrimSpace(labels[j] + " " + text)
	}
	return labels
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
