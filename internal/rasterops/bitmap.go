// Package rasterops implements the pixel-level primitives the table and
// bar-chart detectors are built on: grayscale conversion, Otsu thresholding,
// rectangular morphological open/erode/dilate, connected-component bounding
// boxes, and row/column projections. No third-party computer-vision binding
// is available anywhere in the retrieval corpus, so this is a direct,
// from-scratch port of the cv2 calls the reference implementation uses.
package rasterops

import (
	"image"
	"image/color"
)

// Bitmap is a binary raster: every pixel is 0 or 255. Row-major, origin
// top-left, matching image.Image conventions.
type Bitmap struct {
	W, H int
	Pix  []uint8
}

// NewBitmap returns an all-zero bitmap of the given size.
func NewBitmap(w, h int) *Bitmap {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Bitmap{W: w, H: h, Pix: make([]uint8, w*h)}
}

func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return 0
	}
	return b.Pix[y*b.W+x]
}

func (b *Bitmap) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return
	}
	b.Pix[y*b.W+x] = v
}

// CountNonZero returns the number of 255-valued pixels.
func (b *Bitmap) CountNonZero() int {
	n := 0
	for _, v := range b.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Or returns the elementwise logical OR of two same-size bitmaps.
func Or(a, b *Bitmap) *Bitmap {
	out := NewBitmap(a.W, a.H)
	for i := range out.Pix {
		if a.Pix[i] != 0 || b.Pix[i] != 0 {
			out.Pix[i] = 255
		}
	}
	return out
}

// And returns the elementwise logical AND of two same-size bitmaps.
func And(a, b *Bitmap) *Bitmap {
	out := NewBitmap(a.W, a.H)
	for i := range out.Pix {
		if a.Pix[i] != 0 && b.Pix[i] != 0 {
			out.Pix[i] = 255
		}
	}
	return out
}

// Subtract clears every pixel in a that is set in b.
func Subtract(a, b *Bitmap) *Bitmap {
	out := NewBitmap(a.W, a.H)
	for i := range out.Pix {
		if a.Pix[i] != 0 && b.Pix[i] == 0 {
			out.Pix[i] = 255
		}
	}
	return out
}

// ToGray converts an arbitrary image to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// GaussianBlur3x3 applies a 3x3 Gaussian kernel ([1 2 1; 2 4 2; 1 2 1]/16)
// with replicated borders.
func GaussianBlur3x3(gray *image.Gray) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	at := func(x, y int) int {
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return int(gray.GrayAt(x, y).Y)
	}

	weights := [3][3]int{{1, 2, 1}, {2, 4, 2}, {1, 2, 1}}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += at(x+kx, y+ky) * weights[ky+1][kx+1]
				}
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum / 16)})
		}
	}
	return out
}

// OtsuThreshold computes the intensity threshold maximizing inter-class
// variance over the grayscale histogram.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	total := w * h
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumB, wB, wF float64
	var best float64
	bestThresh := 0

	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF = float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestThresh = t
		}
	}
	return uint8(bestThresh)
}

// BinarizeInv returns a bitmap where pixels at or below thresh (dark pixels)
// become foreground (255), matching cv2.THRESH_BINARY_INV + THRESH_OTSU: it
// makes ink/rules/bars foreground against a light background.
func BinarizeInv(gray *image.Gray, thresh uint8) *Bitmap {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if gray.GrayAt(x, y).Y <= thresh {
				out.Set(x, y, 255)
			}
		}
	}
	return out
}
