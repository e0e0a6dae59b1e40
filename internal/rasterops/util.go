package rasterops

import (
	"image"
	"image/draw"
	"time"
)

// DeadlineExceeded reports whether the absolute deadline has passed. A zero
// deadline never expires. Callers check this at coarse stage boundaries —
// never inside pixel loops — per the pipeline's cooperative cancellation
// discipline.
func DeadlineExceeded(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

// Clamp01 restricts v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CropClamped crops img to [left,top)-[right,bottom), clamping the rectangle
// to image bounds. If the resulting rectangle is degenerate, a 1x1 image is
// returned rather than panicking.
func CropClamped(img image.Image, left, top, right, bottom int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	l := clampInt(left, 0, w)
	t := clampInt(top, 0, h)
	r := clampInt(right, 0, w)
	bo := clampInt(bottom, 0, h)

	if r <= l+1 || bo <= t+1 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	dst := image.NewRGBA(image.Rect(0, 0, r-l, bo-t))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(b.Min.X+l, b.Min.Y+t), draw.Src)
	return dst
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

// NormalizeBBox converts a pixel rectangle into a unit bbox against image
// dimensions, clamping every component into [0,1].
func NormalizeBBox(x, y, w, h, imgW, imgH int) (nx, ny, nw, nh float64) {
	if imgW <= 0 || imgH <= 0 {
		return 0, 0, 1, 1
	}
	fw, fh := float64(imgW), float64(imgH)
	return Clamp01(float64(x) / fw), Clamp01(float64(y) / fh), Clamp01(float64(w) / fw), Clamp01(float64(h) / fh)
}
