// Package model defines the request/response shapes and intermediate detector
// results shared across the extraction pipeline.
package model

// BoundingBox is a normalized box relative to page/image dimensions.
// x,y is the top-left corner; w,h are width/height. All fields lie in [0,1]
// and x+w, y+h must not exceed 1.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FullPage returns the bbox covering the entire image.
func FullPage() BoundingBox {
	return BoundingBox{X: 0, Y: 0, W: 1, H: 1}
}

// OcrBlock is a single recognized text span with its location and optional
// engine confidence. Order in a slice of OcrBlock is not semantic.
type OcrBlock struct {
	Text       string   `json:"text"`
	BBox       BoundingBox `json:"bbox"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// VisualExtraction is the per-region OCR + structured output.
type VisualExtraction struct {
	OCRText        *string                `json:"ocr_text"`
	OCRBlocks      []OcrBlock             `json:"ocr_blocks"`
	StructuredJSON map[string]any         `json:"structured_json"`
	Units          *string                `json:"units,omitempty"`
	Labels         map[string]any         `json:"labels,omitempty"`
	ModelVersion   *string                `json:"model_version,omitempty"`
	Confidence     float64                `json:"confidence"`
}

// NewVisualExtraction returns a zero-value extraction with initialized maps.
func NewVisualExtraction() VisualExtraction {
	return VisualExtraction{
		OCRBlocks:      []OcrBlock{},
		StructuredJSON: map[string]any{},
	}
}

// AssetType enumerates the kinds of visual region the pipeline can detect.
type AssetType string

const (
	AssetTable     AssetType = "table"
	AssetChart     AssetType = "chart"
	AssetMap       AssetType = "map"
	AssetDiagram   AssetType = "diagram"
	AssetImageText AssetType = "image_text"
	AssetUnknown   AssetType = "unknown"
)

// VisualAsset is one detected region of a page.
type VisualAsset struct {
	AssetType    AssetType        `json:"asset_type"`
	BBox         BoundingBox      `json:"bbox"`
	Confidence   float64          `json:"confidence"`
	QualityFlags map[string]any   `json:"quality_flags"`
	ImageURI     *string          `json:"image_uri"`
	ImageHash    *string          `json:"image_hash"`
	Extraction   VisualExtraction `json:"extraction"`
}

// NewVisualAsset returns an image_text asset covering the full page, the
// initial state every layout region starts in before stage promotion.
func NewVisualAsset() VisualAsset {
	return VisualAsset{
		AssetType:    AssetImageText,
		BBox:         FullPage(),
		Confidence:   0.5,
		QualityFlags: map[string]any{},
		Extraction:   NewVisualExtraction(),
	}
}

// SetFlag records a diagnostic flag. Flags are append-only by convention;
// callers must not delete keys set by earlier stages.
func (a *VisualAsset) SetFlag(key string, value any) {
	if a.QualityFlags == nil {
		a.QualityFlags = map[string]any{}
	}
	a.QualityFlags[key] = value
}

// MergeFlags copies every key in src into the asset's flag map, overwriting
// on conflict (last writer wins).
func (a *VisualAsset) MergeFlags(src map[string]any) {
	for k, v := range src {
		a.SetFlag(k, v)
	}
}

// ExtractVisualsRequest is the POST /extract-visuals request body.
type ExtractVisualsRequest struct {
	DocumentID       string `json:"document_id" validate:"required"`
	PageIndex        int    `json:"page_index" validate:"gte=0"`
	ImageURI         string `json:"image_uri" validate:"required"`
	ExtractorVersion string `json:"extractor_version"`
}

// ExtractVisualsResponse is the POST /extract-visuals response body.
type ExtractVisualsResponse struct {
	DocumentID       string        `json:"document_id"`
	PageIndex        int           `json:"page_index"`
	ExtractorVersion string        `json:"extractor_version"`
	Assets           []VisualAsset `json:"assets"`
}

// TableDetectResult is the output of the table detector.
type TableDetectResult struct {
	Detected            bool
	GridDetected        bool
	Method              string
	LinePixelRatio      float64
	IntersectionsCount  int
	XLines              []int
	YLines              []int
}

// BarRect is a pixel-space bounding rectangle (x, y, w, h).
type BarRect struct {
	X, Y, W, H int
}

// BarChartDetectResult is the output of the bar-chart detector.
type BarChartDetectResult struct {
	Detected  bool
	BarCount  int
	Bars      []BarRect
	BaselineY int
	Score     float64
}

// ClampUnit clamps v to [0,1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
