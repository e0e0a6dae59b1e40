package layout

import (
	"testing"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
)

func TestDetectAssetsReturnsSingleFullPageRegion(t *testing.T) {
	assets := DetectAssets()
	if len(assets) != 1 {
		t.Fatalf("expected exactly 1 region, got %d", len(assets))
	}
	a := assets[0]
	if a.AssetType != model.AssetImageText {
		t.Fatalf("expected image_text asset type, got %v", a.AssetType)
	}
	if a.BBox != model.FullPage() {
		t.Fatalf("expected a full-page bbox, got %v", a.BBox)
	}
	if a.QualityFlags["layout"] != "fallback_full_page" {
		t.Fatalf("expected fallback_full_page layout flag, got %v", a.QualityFlags)
	}
}
