package table

import (
	"image"
	"sort"
	"time"

	"github.com/toricodesthings/visual-extraction-worker/internal/model"
	"github.com/toricodesthings/visual-extraction-worker/internal/ocr"
	"github.com/toricodesthings/visual-extraction-worker/internal/rasterops"
)

const (
	maxXLines  = 60
	maxYLines  = 80
	maxRows    = 40
	maxCols    = 20
	cellPad    = 2
)

// CellOCRFunc is the per-cell OCR contract the grid-slice path calls.
type CellOCRFunc = ocr.CellFunc

// Extract runs the table extraction algorithm (spec §4.4). Returns a
// {"table": {...}} patch plus diagnostic flags. Never panics.
func Extract(img image.Image, detect model.TableDetectResult, ocrBlocks []model.OcrBlock, deadline time.Time, cellOCR CellOCRFunc) (map[string]any, map[string]any) {
	started := time.Now()
	flags := map[string]any{
		"table_detected":          detect.Detected,
		"grid_detected":           detect.GridDetected,
		"used_fallback_clustering": false,
	}

	table := map[string]any{
		"rows":       [][]string{},
		"confidence": 0.0,
		"method":     "grid_lines_v1",
	}

	defer func() {
		flags["table_elapsed_ms"] = int(time.Since(started).Milliseconds())
	}()

	b := img.Bounds()
	imgW, imgH := b.Dx(), b.Dy()

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		table["notes"] = "time_budget_exceeded"
		return map[string]any{"table": table}, flags
	}

	xLines := capLines(detect.XLines, maxXLines)
	yLines := capLines(detect.YLines, maxYLines)

	if detect.GridDetected && len(xLines) >= 3 && len(yLines) >= 3 {
		return extractGrid(img, detect, xLines, yLines, deadline, cellOCR, table, flags)
	}

	flags["used_fallback_clustering"] = true
	table["method"] = "ocr_cluster_v1"

	if rasterops.DeadlineExceeded(deadline) {
		flags["time_budget_exceeded"] = true
		table["notes"] = "time_budget_exceeded"
		return map[string]any{"table": table}, flags
	}

	grid, rows, cols := clusterBlocksToGrid(ocrBlocks, imgW, imgH)
	table["rows"] = grid
	if rows > 0 && cols > 0 {
		table["confidence"] = 0.35
	} else {
		table["confidence"] = 0.15
		table["notes"] = "no_ocr_blocks_for_clustering"
	}
	return map[string]any{"table": table}, flags
}

func extractGrid(img image.Image, detect model.TableDetectResult, xLines, yLines []int, deadline time.Time, cellOCR CellOCRFunc, table map[string]any, flags map[string]any) (map[string]any, map[string]any) {
	rowCount := minInt(len(yLines)-1, maxRows)
	colCount := minInt(len(xLines)-1, maxCols)

	rowsOut := make([][]string, 0, rowCount)
	timeBudgetExceeded := false

outer:
	for ri := 0; ri < rowCount; ri++ {
		if rasterops.DeadlineExceeded(deadline) {
			timeBudgetExceeded = true
			break outer
		}

		top := yLines[ri]
		bottom := yLines[ri+1]
		rowCells := make([]string, 0, colCount)

		for ci := 0; ci < colCount; ci++ {
			if rasterops.DeadlineExceeded(deadline) {
				timeBudgetExceeded = true
				break outer
			}

			left := xLines[ci]
			right := xLines[ci+1]

			cell := rasterops.CropClamped(img, left+cellPad, top+cellPad, right-cellPad, bottom-cellPad)
			text := ""
			if cellOCR != nil {
				var cellFlags map[string]any
				text, cellFlags = cellOCR(cell)
				for k, v := range cellFlags {
					flags[k] = v
				}
			}
			rowCells = append(rowCells, text)
		}
		rowsOut = append(rowsOut, rowCells)
	}

	if timeBudgetExceeded {
		flags["time_budget_exceeded"] = true
	}

	table["rows"] = rowsOut

	gridStrength := rasterops.Clamp01(float64(detect.IntersectionsCount) / 4000.0)
	base := 0.65
	if timeBudgetExceeded {
		base = 0.45
	}
	table["confidence"] = rasterops.Clamp01(base + 0.25*gridStrength)
	table["method"] = "grid_lines_v1"
	if timeBudgetExceeded {
		table["notes"] = "time_budget_exceeded"
	}

	return map[string]any{"table": table}, flags
}

func capLines(lines []int, cap int) []int {
	xs := dedupSorted(lines)
	if len(xs) <= cap {
		return xs
	}
	out := make([]int, cap)
	for i := 0; i < cap; i++ {
		idx := i * (len(xs) - 1) / (cap - 1)
		out[i] = xs[idx]
	}
	return out
}

func dedupSorted(in []int) []int {
	seen := map[int]struct{}{}
	for _, v := range in {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

type blockCentroid struct {
	x, y int
	text string
}

func clusterBlocksToGrid(blocks []model.OcrBlock, imgW, imgH int) ([][]string, int, int) {
	if len(blocks) == 0 || imgW <= 0 || imgH <= 0 {
		return nil, 0, 0
	}

	items := make([]blockCentroid, 0, len(blocks))
	for _, blk := range blocks {
		if blk.Text == "" {
			continue
		}
		x := int((blk.BBox.X + blk.BBox.W/2.0) * float64(imgW))
		y := int((blk.BBox.Y + blk.BBox.H/2.0) * float64(imgH))
		items = append(items, blockCentroid{x: x, y: y, text: blk.Text})
	}
	if len(items) == 0 {
		return nil, 0, 0
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].y != items[j].y {
			return items[i].y < items[j].y
		}
		return items[i].x < items[j].x
	})

	yTol := maxInt(8, int(float64(imgH)*0.02))

	var rows [][]blockCentroid
	var cur []blockCentroid
	curY := 0
	haveCurY := false

	flushRow := func() {
		if len(cur) == 0 {
			return
		}
		sort.Slice(cur, func(i, j int) bool { return cur[i].x < cur[j].x })
		rows = append(rows, cur)
		cur = nil
	}

	for _, it := range items {
		if !haveCurY {
			curY = it.y
			haveCurY = true
			cur = []blockCentroid{it}
			continue
		}
		if abs(it.y-curY) <= yTol {
			cur = append(cur, it)
			curY = (curY*(len(cur)-1) + it.y) / len(cur)
		} else {
			flushRow()
			curY = it.y
			cur = []blockCentroid{it}
		}
	}
	flushRow()

	var xs []int
	for _, r := range rows {
		for _, it := range r {
			xs = append(xs, it.x)
		}
	}
	if len(xs) == 0 {
		return nil, 0, 0
	}
	sort.Ints(xs)

	xGap := maxInt(12, int(float64(imgW)*0.04))
	centers := []int{xs[0]}
	for _, x := range xs[1:] {
		last := centers[len(centers)-1]
		if abs(x-last) > xGap {
			centers = append(centers, x)
		} else {
			centers[len(centers)-1] = (last + x) / 2
		}
	}
	colCount := len(centers)

	grid := make([][]string, 0, len(rows))
	for _, r := range rows {
		cellWords := make([][]string, colCount)
		for _, it := range r {
			j := nearestCenterIndex(it.x, centers)
			cellWords[j] = append(cellWords[j], it.text)
		}
		row := make([]string, colCount)
		for i, words := range cellWords {
			row[i] = joinWords(words)
		}
		grid = append(grid, row)
	}

	return grid, len(grid), colCount
}

func nearestCenterIndex(x int, centers []int) int {
	best := 0
	bestDist := abs(x - centers[0])
	for i, c := range centers[1:] {
		d := abs(x - c)
		if d < bestDist {
			bestDist = d
			best = i + 1
		}
	}
	return best
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
