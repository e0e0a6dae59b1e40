// Package layout provides the page-region segmentation stage that precedes
// table/chart detection. v1 is deliberately minimal: it does not attempt
// multi-region layout analysis, it hands the table and chart detectors the
// whole page and lets them decide what's inside it.
package layout

import "github.com/toricodesthings/visual-extraction-worker/internal/model"

// DetectAssets returns the starting set of regions for a page. v1 always
// returns a single full-page image_text region; the table and chart
// detectors run against that region and may promote it.
func DetectAssets() []model.VisualAsset {
	asset := model.NewVisualAsset()
	asset.SetFlag("layout", "fallback_full_page")
	return []model.VisualAsset{asset}
}
