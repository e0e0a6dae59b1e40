// Package chart implements bar-chart detection and extraction: thin-line
// subtraction that preserves filled bars, contour filtering, x-centroid
// clustering, baseline-alignment scoring, axis-label OCR, and linear
// pixel-to-value calibration.
package chart

import (
	"image"
	"math"
	"sort"
	"time"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/rasterops"
)

// Detect runs the bar-chart heuristic (spec §4.5). Never panics.
func Detect(img image.Image, deadline time.Time) (model.BarChartDetectResult, map[string]any) {
	flags := map[string]any{
		"chart_detected":  false,
		"chart_type_bar":  false,
	}
	empty := model.BarChartDetectResult{}

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

	bw, removed := subtractThinAxisLines(bw, w, h)
	flags["axis_line_components_removed"] = removed

	denoiseKernel := 3
	if minInt(w, h) >= 300 {
		denoiseKernel = 5
	}
	bw = rasterops.Open(bw, denoiseKernel, denoiseKernel)
	flags["denoise_open_kernel"] = denoiseKernel

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		return empty, flags
	}

	rects := rasterops.ConnectedComponentBoxes(bw)
	candidates := filterBarCandidates(rects, w, h)
	if len(candidates) == 0 {
		return empty, flags
	}

	mergePx := maxInt(6, int(float64(w)*0.02))
	bars := clusterByX(candidates, mergePx)

	if len(bars) < 3 {
		return model.BarChartDetectResult{BarCount: len(bars), Bars: sortedByX(bars)}, flags
	}

	bottoms := make([]float64, len(bars))
	widths := make([]float64, len(bars))
	for i, r := range bars {
		bottoms[i] = float64(r.Y + r.H)
		widths[i] = float64(r.W)
	}

	baselineY := int(median(bottoms))
	baselineStd := stddev(bottoms)

	widthMean := mean(widths)
	widthCV := 0.0
	if widthMean > 1e-6 {
		widthCV = stddev(widths) / widthMean
	}

	baselineTol := math.Max(6.0, float64(h)*0.015)
	aligned := 0
	for _, bo := range bottoms {
		if math.Abs(bo-float64(baselineY)) <= baselineTol {
			aligned++
		}
	}
	alignedRatio := float64(aligned) / float64(len(bars))

	detected := alignedRatio >= 0.7 && widthCV <= 0.4
	if !detected {
		return model.BarChartDetectResult{BarCount: len(bars), Bars: sortedByX(bars), BaselineY: baselineY}, flags
	}

	barCountScore := rasterops.Clamp01(float64(len(bars)-2) / 6.0)
	widthScore := rasterops.Clamp01(1.0 - widthCV)
	baselineScore := rasterops.Clamp01(1.0 - baselineStd/(2.0*baselineTol))
	score := rasterops.Clamp01(0.15 + 0.45*barCountScore + 0.25*widthScore + 0.15*baselineScore)

	flags["chart_detected"] = true
	flags["chart_type_bar"] = true

	return model.BarChartDetectResult{
		Detected:  true,
		BarCount:  len(bars),
		Bars:      sortedByX(bars),
		BaselineY: baselineY,
		Score:     score,
	}, flags
}

func sortedByX(rects []model.BarRect) []model.BarRect {
	out := make([]model.BarRect, len(rects))
	copy(out, rects)
	sort.Slice(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// subtractThinAxisLines removes only long-and-thin components so filled
// bars (which contain long horizontal runs too) survive. See spec §9's
// design note: dropping either the length or thinness gate destroys bars or
// leaves axes in the mask.
func subtractThinAxisLines(bw *rasterops.Bitmap, w, h int) (*rasterops.Bitmap, int) {
	kx := maxInt(35, w/14)
	horiz := rasterops.Open(bw, kx, 1)
	hMask := rasterops.NewBitmap(w, h)
	keptH := 0
	minLineW := int(float64(w) * 0.35)
	maxLineH := maxInt(6, int(float64(h)*0.03))
	for _, r := range rasterops.ConnectedComponentBoxes(horiz) {
		if r.W >= minLineW && r.H <= maxLineH {
			fillRect(hMask, r)
			keptH++
		}
	}

	ky := maxInt(45, h/10)
	vert := rasterops.Open(bw, 1, ky)
	vMask := rasterops.NewBitmap(w, h)
	keptV := 0
	minLineH := int(float64(h) * 0.35)
	maxLineW := maxInt(6, int(float64(w)*0.02))
	for _, r := range rasterops.ConnectedComponentBoxes(vert) {
		if r.H >= minLineH && r.W <= maxLineW {
			fillRect(vMask, r)
			keptV++
		}
	}

	lineMask := rasterops.Or(hMask, vMask)
	cleaned := rasterops.Subtract(bw, lineMask)
	return cleaned, keptH + keptV
}

func fillRect(b *rasterops.Bitmap, r model.BarRect) {
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			b.Set(x, y, 255)
		}
	}
}

func filterBarCandidates(rects []model.BarRect, imgW, imgH int) []model.BarRect {
	minArea := maxInt(80, int(float64(imgW*imgH)*0.00008))
	minH := maxInt(18, int(float64(imgH)*0.06))
	minW := maxInt(5, int(float64(imgW)*0.008))

	var out []model.BarRect
	for _, r := range rects {
		if r.W <= 0 || r.H <= 0 {
			continue
		}
		if r.W*r.H < minArea {
			continue
		}
		if float64(r.H)/float64(maxInt(1, r.W)) < 0.55 {
			continue
		}
		if r.H < minH {
			continue
		}
		if r.W < minW {
			continue
		}
		if r.W > int(float64(imgW)*0.6) || r.H > int(float64(imgH)*0.9) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func clusterByX(rects []model.BarRect, mergePx int) []model.BarRect {
	if len(rects) == 0 {
		return nil
	}
	rs := make([]model.BarRect, len(rects))
	copy(rs, rects)
	sort.Slice(rs, func(i, j int) bool {
		return centerX(rs[i]) < centerX(rs[j])
	})

	var clusters [][]model.BarRect
	cur := []model.BarRect{rs[0]}
	curCx := centerX(rs[0])
	for _, r := range rs[1:] {
		cx := centerX(r)
		if math.Abs(cx-curCx) <= float64(mergePx) {
			cur = append(cur, r)
			sum := 0.0
			for _, c := range cur {
				sum += centerX(c)
			}
			curCx = sum / float64(len(cur))
		} else {
			clusters = append(clusters, cur)
			cur = []model.BarRect{r}
			curCx = cx
		}
	}
	clusters = append(clusters, cur)

	merged := make([]model.BarRect, 0, len(clusters))
	for _, c := range clusters {
		best := c[0]
		for _, r := range c[1:] {
			if r.W*r.H > best.W*best.H {
				best = r
			}
		}
		merged = append(merged, best)
	}
	return merged
}

func centerX(r model.BarRect) float64 {
	return float64(r.X) + float64(r.W)/2.0
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stddev(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := mean(vs)
	sum := 0.0
	for _, v := range vs {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vs)))
}

func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
