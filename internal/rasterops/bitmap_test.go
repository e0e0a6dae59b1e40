package rasterops

import (
	"image"
	"image/color"
	"testing"
)

func TestOtsuThresholdSeparatesBlackAndWhite(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 5 {
				gray.SetGray(x, y, color.Gray{Y: 10})
			} else {
				gray.SetGray(x, y, color.Gray{Y: 240})
			}
		}
	}

	thresh := OtsuThreshold(gray)
	if thresh < 10 || thresh > 240 {
		t.Fatalf("expected threshold between the two populations, got %d", thresh)
	}
}

func TestBinarizeInvMarksDarkPixelsAsForeground(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 1))
	gray.SetGray(0, 0, color.Gray{Y: 0})
	gray.SetGray(1, 0, color.Gray{Y: 255})
	gray.SetGray(2, 0, color.Gray{Y: 0})
	gray.SetGray(3, 0, color.Gray{Y: 255})

	bw := BinarizeInv(gray, 128)
	if bw.At(0, 0) == 0 {
		t.Fatalf("expected dark pixel to become foreground")
	}
	if bw.At(1, 0) != 0 {
		t.Fatalf("expected light pixel to stay background")
	}
}

func TestOrAndSubtract(t *testing.T) {
	a := NewBitmap(2, 1)
	a.Set(0, 0, 255)
	b := NewBitmap(2, 1)
	b.Set(1, 0, 255)

	or := Or(a, b)
	if or.CountNonZero() != 2 {
		t.Fatalf("expected OR to set both pixels, got %d", or.CountNonZero())
	}

	and := And(a, b)
	if and.CountNonZero() != 0 {
		t.Fatalf("expected AND of disjoint bitmaps to be empty, got %d", and.CountNonZero())
	}

	sub := Subtract(or, b)
	if sub.At(0, 0) == 0 || sub.At(1, 0) != 0 {
		t.Fatalf("expected subtract to remove only b's pixel")
	}
}

func TestToGrayConvertsRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	gray := ToGray(img)
	if gray.GrayAt(0, 0).Y != 255 {
		t.Fatalf("expected white pixel to convert to max gray, got %d", gray.GrayAt(0, 0).Y)
	}
}
