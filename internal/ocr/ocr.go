// Package ocr defines the OCR capability the pipeline is built against and
// normalizes whatever an adapter returns into the pipeline's OcrBlock shape.
// The core never imports a concrete OCR engine directly — per spec §9, this
// is explicit interface injection instead of a runtime optional dependency.
package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/rasterops"
)

// RawBlock is what an adapter returns for one recognized word/phrase: pixel
// bbox plus optional engine confidence (native domain, typically 0-100;
// negative means "no confidence reported").
type RawBlock struct {
	Text   string
	Left   int
	Top    int
	Width  int
	Height int
	Conf   *float64
}

// Adapter is the pluggable raster-OCR capability: image in, ordered raw
// blocks plus diagnostic flags out. Implementations must never panic or
// return an error — unavailability is reported through flags so the
// pipeline can continue with an empty extraction.
type Adapter interface {
	Run(ctx context.Context, img image.Image) ([]RawBlock, map[string]any)
}

// CellFunc is the cell-level OCR contract used by the table extractor's
// grid-slice path: a cropped cell image in, trimmed text plus flags out.
type CellFunc func(cell image.Image) (string, map[string]any)

// DefaultCellFunc adapts a full Adapter into a CellFunc by running it over
// the cell crop and concatenating any recognized words.
func DefaultCellFunc(ctx context.Context, adapter Adapter) CellFunc {
	return func(cell image.Image) (string, map[string]any) {
		raw, flags := adapter.Run(ctx, cell)
		var words []string
		for _, b := range raw {
			t := strings.TrimSpace(b.Text)
			if t != "" {
				words = append(words, t)
			}
		}
		return strings.Join(words, " "), flags
	}
}

// RunLite executes the OCR adapter over the full image and assembles a
// VisualExtraction per §4.2: normalized blocks, concatenated text, and
// aggregate confidence.
func RunLite(ctx context.Context, adapter Adapter, img image.Image) (model.VisualExtraction, map[string]any) {
	extraction := model.NewVisualExtraction()
	flags := map[string]any{}

	if adapter == nil {
		flags["ocr"] = "missing"
		return extraction, flags
	}

	raw, adapterFlags := adapter.Run(ctx, img)
	for k, v := range adapterFlags {
		flags[k] = v
	}

	b := img.Bounds()
	imgW, imgH := b.Dx(), b.Dy()

	var textItems []string
	var confSum float64
	var confCount int

	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		nx, ny, nw, nh := rasterops.NormalizeBBox(r.Left, r.Top, r.Width, r.Height, imgW, imgH)

		var conf *float64
		if r.Conf != nil && *r.Conf >= 0 {
			c := rasterops.Clamp01(*r.Conf / 100.0)
			conf = &c
			confSum += c
			confCount++
		}

		extraction.OCRBlocks = append(extraction.OCRBlocks, model.OcrBlock{
			Text:       text,
			BBox:       model.BoundingBox{X: nx, Y: ny, W: nw, H: nh},
			Confidence: conf,
		})
		textItems = append(textItems, text)
	}

	if len(textItems) == 0 {
		if _, set := flags["ocr"]; !set {
			flags["ocr"] = "no_text_detected"
		}
		extraction.Confidence = 0
		return extraction, flags
	}

	joined := strings.Join(textItems, " ")
	extraction.OCRText = &joined

	if confCount > 0 {
		extraction.Confidence = rasterops.Clamp01(confSum / float64(confCount))
	} else {
		extraction.Confidence = 0.5
	}

	return extraction, flags
}
