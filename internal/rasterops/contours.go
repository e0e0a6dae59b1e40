package rasterops

import "github.com/toricodesthings/visual-extraction-worker/internal/model"

// ConnectedComponentBoxes returns the bounding rectangle of every
// 8-connected foreground component, in the same role as
// cv2.findContours(..., RETR_EXTERNAL) + boundingRect for solid filled
// shapes: it gives an outer bounding box per blob.
func ConnectedComponentBoxes(b *Bitmap) []model.BarRect {
	visited := make([]bool, len(b.Pix))
	var boxes []model.BarRect

	stack := make([]int, 0, 256)
	for start := 0; start < len(b.Pix); start++ {
		if b.Pix[start] == 0 || visited[start] {
			continue
		}

		minX, minY := b.W, b.H
		maxX, maxY := -1, -1

		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			x := idx % b.W
			y := idx / b.W
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= b.W || ny >= b.H {
						continue
					}
					nIdx := ny*b.W + nx
					if b.Pix[nIdx] == 0 || visited[nIdx] {
						continue
					}
					visited[nIdx] = true
					stack = append(stack, nIdx)
				}
			}
		}

		if maxX >= minX && maxY >= minY {
			boxes = append(boxes, model.BarRect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1})
		}
	}

	return boxes
}

// RowCounts returns, for each row, the count of foreground pixels across
// columns — the projection used to recover horizontal ruling-line y
// positions.
func RowCounts(b *Bitmap) []int {
	counts := make([]int, b.H)
	for y := 0; y < b.H; y++ {
		c := 0
		base := y * b.W
		for x := 0; x < b.W; x++ {
			if b.Pix[base+x] != 0 {
				c++
			}
		}
		counts[y] = c
	}
	return counts
}

// ColCounts returns, for each column, the count of foreground pixels across
// rows — the projection used to recover vertical ruling-line x positions.
func ColCounts(b *Bitmap) []int {
	counts := make([]int, b.W)
	for x := 0; x < b.W; x++ {
		c := 0
		for y := 0; y < b.H; y++ {
			if b.Pix[y*b.W+x] != 0 {
				c++
			}
		}
		counts[x] = c
	}
	return counts
}

// SegmentCenters collapses runs of consecutive integers in a sorted,
// strictly-increasing slice of indices into their midpoints — turning a
// thick projected line band into a single representative coordinate.
func SegmentCenters(indices []int) []int {
	if len(indices) == 0 {
		return nil
	}
	var centers []int
	start := indices[0]
	prev := indices[0]
	for _, idx := range indices[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		centers = append(centers, (start+prev)/2)
		start = idx
		prev = idx
	}
	centers = append(centers, (start+prev)/2)
	return centers
}

// IndicesAtOrAbove returns the indices i where counts[i] >= threshold.
func IndicesAtOrAbove(counts []int, threshold int) []int {
	var out []int
	for i, c := range counts {
		if c >= threshold {
			out = append(out, i)
		}
	}
	return out
}
