package chart

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
)

func TestExtractNormalizedValuesWithoutOCR(t *testing.T) {
	heights := []int{80, 160, 120, 40}
	img := makeSyntheticBarChart(heights)

	detect, dflags := Detect(img, time.Time{})
	if !detect.Detected {
		t.Fatalf("expected detection to succeed, flags=%v", dflags)
	}

	patch, flags := Extract(context.Background(), img, detect, nil, time.Time{}, nil)

	chartOut, ok := patch["chart"].(map[string]any)
	if !ok {
		t.Fatalf("expected a chart key in the patch, got %v", patch)
	}
	if chartOut["type"] != "bar" {
		t.Fatalf("expected type=bar, got %v", chartOut["type"])
	}
	if chartOut["method"] != "bar_pixels_v1" {
		t.Fatalf("expected method=bar_pixels_v1, got %v", chartOut["method"])
	}

	series, ok := chartOut["series"].([]map[string]any)
	if !ok || len(series) == 0 {
		t.Fatalf("expected a non-empty series slice, got %v", chartOut["series"])
	}
	s0 := series[0]
	if s0["values_are_normalized"] != true {
		t.Fatalf("expected values_are_normalized=true without an OCR adapter, flags=%v", flags)
	}

	values, ok := s0["values"].([]float64)
	if !ok {
		t.Fatalf("expected values to be []float64, got %T", s0["values"])
	}
	if len(values) != len(heights) {
		t.Fatalf("expected %d values, got %d", len(heights), len(values))
	}

	// Ordering: heights[1] highest, then heights[2], then heights[0], then heights[3].
	if !(values[1] > values[2] && values[2] > values[0] && values[0] > values[3]) {
		t.Fatalf("expected values to preserve the input height ordering, got %v", values)
	}

	approxEqual := func(got, want, delta float64) {
		if math.Abs(got-want) > delta {
			t.Fatalf("expected ~%v (delta %v), got %v", want, delta, got)
		}
	}
	approxEqual(values[1], 1.0, 0.08)
	approxEqual(values[2]/values[1], 0.75, 0.12)
	approxEqual(values[0]/values[1], 0.5, 0.12)
	approxEqual(values[3]/values[1], 0.25, 0.12)
}

func TestExtractNotDetectedReturnsEmptyChart(t *testing.T) {
	patch, flags := Extract(context.Background(), makeSyntheticBarChart(nil), model.BarChartDetectResult{}, nil, time.Time{}, nil)
	chartOut := patch["chart"].(map[string]any)
	if chartOut["notes"] != "not_detected" {
		t.Fatalf("expected not_detected note, got %v flags=%v", chartOut["notes"], flags)
	}
}

func TestParseNumberHandlesPercentAndCurrencyAndCommas(t *testing.T) {
	cases := map[string]float64{
		"50%":     0.5,
		"$1,200":  1200,
		"-3.5":    -3.5,
		"1,000.5": 1000.5,
	}
	for in, want := range cases {
		got, ok := parseNumber(in)
		if !ok {
			t.Fatalf("expected %q to parse", in)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("parseNumber(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFitLinearYMapRecoversExactLine(t *testing.T) {
	pts := []calibPoint{
		{pixelY: 100, value: 0},
		{pixelY: 50, value: 50},
		{pixelY: 0, value: 100},
	}
	slope, intercept, ok := fitLinearYMap(pts)
	if !ok {
		t.Fatalf("expected fit to succeed with 3 colinear points")
	}
	if math.Abs(slope-(-1)) > 1e-9 || math.Abs(intercept-100) > 1e-9 {
		t.Fatalf("expected slope=-1 intercept=100, got slope=%v intercept=%v", slope, intercept)
	}
}

func TestFitLinearYMapNeedsAtLeastTwoPoints(t *testing.T) {
	if _, _, ok := fitLinearYMap(nil); ok {
		t.Fatalf("expected fit to fail with zero points")
	}
	if _, _, ok := fitLinearYMap([]calibPoint{{pixelY: 1, value: 1}}); ok {
		t.Fatalf("expected fit to fail with a single point")
	}
}
