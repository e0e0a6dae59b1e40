// Package orchestrator wires layout, OCR, table, and chart detection into
// the single ExtractVisuals pipeline the HTTP handler calls. It owns the
// fail-soft contract: whatever goes wrong, a response with at least one
// synthesized "unknown" asset comes back, never an error.
package orchestrator

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/visual-extraction-worker/internal/chart"
	"github.com/toricodesthings/visual-extraction-worker/internal/config"
	"github.com/toricodesthings/visual-extraction-worker/internal/fetch"
	"github.com/toricodesthings/visual-extraction-worker/internal/layout"
	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/ocr"
	"github.com/toricodesthings/visual-extraction-worker/internal/table"
)

const extractorVersionDefault = "vision_v1"

// Pipeline runs the end-to-end per-page visual extraction.
type Pipeline struct {
	cfg     config.Config
	log     *zap.Logger
	adapter ocr.Adapter
	cellOCR table.CellOCRFunc
}

// New builds a Pipeline. adapter may be nil — RunLite/DefaultCellFunc degrade
// to "ocr=missing" flags rather than requiring a concrete engine.
func New(cfg config.Config, log *zap.Logger, adapter ocr.Adapter) *Pipeline {
	p := &Pipeline{cfg: cfg, log: log, adapter: adapter}
	if adapter != nil {
		p.cellOCR = ocr.DefaultCellFunc(context.Background(), adapter)
	}
	return p
}

// ExtractVisuals implements the request/response contract. It never returns
// an error; failures are folded into the returned response's assets.
func (p *Pipeline) ExtractVisuals(ctx context.Context, req model.ExtractVisualsRequest, requestID string) model.ExtractVisualsResponse {
	started := time.Now()
	extractorVersion := req.ExtractorVersion
	if extractorVersion == "" {
		extractorVersion = extractorVersionDefault
	}

	resp := model.ExtractVisualsResponse{
		DocumentID:       req.DocumentID,
		PageIndex:        req.PageIndex,
		ExtractorVersion: extractorVersion,
		Assets:           []model.VisualAsset{},
	}

	defer func() {
		if r := recover(); r != nil {
			resp.Assets = []model.VisualAsset{unknownAsset("internal_error")}
			p.log.Error("extract_visuals panic recovered",
				zap.String("request_id", requestID),
				zap.String("document_id", req.DocumentID),
				zap.Any("panic", r))
		}
	}()

	resp.Assets = p.run(ctx, req)

	tableSummary := map[string]any{"table_detected": false, "table_method": nil, "table_rows": 0, "table_cols": 0}
	for _, a := range resp.Assets {
		tbl, ok := a.Extraction.StructuredJSON["table"].(map[string]any)
		if !ok {
			continue
		}
		tableSummary["table_detected"] = true
		tableSummary["table_method"] = tbl["method"]
		if rows, ok := tbl["rows"].([][]string); ok && len(rows) > 0 {
			tableSummary["table_rows"] = len(rows)
			tableSummary["table_cols"] = len(rows[0])
		}
		break
	}

	p.log.Info("extract_visuals",
		zap.String("request_id", requestID),
		zap.String("document_id", req.DocumentID),
		zap.Int("page_index", req.PageIndex),
		zap.Int("asset_count", len(resp.Assets)),
		zap.Int64("elapsed_ms", time.Since(started).Milliseconds()),
		zap.Any("table", tableSummary))

	return resp
}

func (p *Pipeline) run(ctx context.Context, req model.ExtractVisualsRequest) []model.VisualAsset {
	fetched, flag := fetch.Image(ctx, req.ImageURI, fetch.Options{
		Timeout:      p.cfg.FetchTimeout,
		MaxBytes:     p.cfg.MaxImageFetchBytes,
		AllowPrivate: p.cfg.AllowPrivateFetchURLs,
	})
	if flag != "" {
		asset := unknownAsset(flag)
		if fetched.SHA256Hex != "" {
			hash := fetched.SHA256Hex
			asset.ImageHash = &hash
		}
		if fetched.MimeFlag != "" {
			asset.SetFlag("mime", fetched.MimeFlag)
		}
		return []model.VisualAsset{asset}
	}

	tableDeadline := time.Now().Add(p.cfg.TableTimeBudget)

	assets := layout.DetectAssets()
	for i := range assets {
		p.processAsset(ctx, &assets[i], fetched.Image, tableDeadline)
		if fetched.MimeFlag != "" {
			assets[i].SetFlag("mime", fetched.MimeFlag)
		}
	}
	return assets
}

// processAsset runs OCR, then table detection, then chart detection, and
// runs the table extractor if a table was detected, otherwise the chart
// extractor if a chart was, promoting the asset's type and structured_json
// on success. Both detectors always run so a both-positive page can be
// flagged even though table detection takes precedence for asset_type.
func (p *Pipeline) processAsset(ctx context.Context, asset *model.VisualAsset, img image.Image, deadline time.Time) {
	extraction, ocrFlags := ocr.RunLite(ctx, p.adapter, img)
	asset.MergeFlags(ocrFlags)
	asset.Extraction = extraction

	tableDetect, tableFlags := table.Detect(img, deadline)
	asset.MergeFlags(tableFlags)

	chartDetect, chartFlags := chart.Detect(img, deadline)
	for k, v := range chartFlags {
		if k == "chart_detected" || k == "chart_type_bar" {
			continue
		}
		asset.SetFlag(k, v)
	}

	switch {
	case tableDetect.Detected:
		if chartDetect.Detected {
			asset.SetFlag("chart_also_possible", true)
		}
		patch, extractFlags := table.Extract(img, tableDetect, extraction.OCRBlocks, deadline, p.cellOCR)
		asset.MergeFlags(extractFlags)
		applyStructuredPatch(asset, model.AssetTable, patch["table"])

	case chartDetect.Detected:
		patch, extractFlags := chart.Extract(ctx, img, chartDetect, extraction.OCRBlocks, deadline, p.adapter)
		asset.MergeFlags(extractFlags)
		applyStructuredPatch(asset, model.AssetChart, patch["chart"])

	default:
		// Stays image_text; extraction already holds whatever OCR recovered.
	}

	applyOCRConfidenceRule(asset)
}

// applyStructuredPatch promotes the asset's type and attaches the detector's
// structured output under the "table" or "chart" key, bumping both the
// extraction-level and asset-level confidence up to whatever the detector
// reported.
func applyStructuredPatch(asset *model.VisualAsset, assetType model.AssetType, structured any) {
	patchMap, ok := structured.(map[string]any)
	if !ok {
		return
	}
	structuredConf, _ := patchMap["confidence"].(float64)

	asset.AssetType = assetType
	asset.Extraction.StructuredJSON = map[string]any{string(assetType): patchMap}

	if structuredConf > asset.Extraction.Confidence {
		asset.Extraction.Confidence = structuredConf
	}
	if structuredConf > asset.Confidence {
		asset.Confidence = structuredConf
	}
}

// applyOCRConfidenceRule runs once per asset regardless of which branch of
// processAsset's switch fired: residual OCR text lets confidence rise to
// match extraction quality; its absence caps confidence low since nothing
// backs up the detector's guess.
func applyOCRConfidenceRule(asset *model.VisualAsset) {
	if asset.Extraction.OCRText != nil {
		if asset.Extraction.Confidence > asset.Confidence {
			asset.Confidence = asset.Extraction.Confidence
		}
	} else if asset.Confidence > 0.25 {
		asset.Confidence = 0.25
	}
}

func unknownAsset(flag string) model.VisualAsset {
	asset := model.NewVisualAsset()
	asset.AssetType = model.AssetUnknown
	asset.Confidence = 0
	asset.SetFlag("error", flag)
	return asset
}
