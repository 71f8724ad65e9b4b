package scanfieldcal

import (
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/rdk/logging"
)

const (
	maxSquareWidth = 200
	mergeTolerance = 10
)

// Corner is one chessboard intersection with its grid indices and links to
// the adjacent intersections. Missing neighbours are nil.
type Corner struct {
	Position    r2.Point
	Row, Column int

	Left, Right, Up, Down *Corner
}

// cornerRow holds one detected row, with the y extent of its corners.
type cornerRow struct {
	key        int
	yMin, yMax int
	corners    []Corner
}

// CornerGrid is the lattice of recognized corners, top row first, each row
// ordered left to right.
type CornerGrid struct {
	area    image.Rectangle
	rows    []cornerRow
	columns int
}

func newCornerGrid(area image.Rectangle) *CornerGrid {
	return &CornerGrid{area: area}
}

func (g *CornerGrid) Empty() bool {
	return g == nil || len(g.rows) == 0
}

func (g *CornerGrid) NumRows() int {
	if g == nil {
		return 0
	}
	return len(g.rows)
}

// NumColumns is the number of distinct columns seen over all rows.
func (g *CornerGrid) NumColumns() int {
	if g == nil {
		return 0
	}
	return g.columns
}

// Row returns the corners of row i, left to right.
func (g *CornerGrid) Row(i int) []Corner {
	return g.rows[i].corners
}

// Corners returns all corners, row by row.
func (g *CornerGrid) Corners() []*Corner {
	if g == nil {
		return nil
	}
	var all []*Corner
	for i := range g.rows {
		for j := range g.rows[i].corners {
			all = append(all, &g.rows[i].corners[j])
		}
	}
	return all
}

// At returns the corner at the given grid indices.
func (g *CornerGrid) At(row, column int) (*Corner, bool) {
	if g == nil || row < 0 || row >= len(g.rows) {
		return nil, false
	}
	corners := g.rows[row].corners
	j := sort.Search(len(corners), func(k int) bool { return corners[k].Column >= column })
	if j == len(corners) || corners[j].Column != column {
		return nil, false
	}
	return &corners[j], true
}

// cornerLine is a run of raw corners sharing a y band, keyed by its rounded
// mean y.
type cornerLine struct {
	key    int
	points []image.Point
}

// buildLines splits the ordered raw corners into lines. A line continues while
// the next corner is at most minSquareSize lower and strictly to the right.
// Two lines with the same key, or a y jump inside a line, make the whole set
// unusable.
func buildLines(points []image.Point, minSquareSize int, logger logging.Logger) ([]cornerLine, bool) {
	if len(points) == 0 {
		return nil, false
	}

	byKey := map[int]cornerLine{}
	var current []image.Point
	ySum := 0
	overlaps, deformed, wideSquares := 0, 0, 0

	for i, p := range points {
		if i > 0 && len(current) > 0 && abs(p.Y-points[i-1].Y) > minSquareSize {
			logger.Debugf("unexpected y distance %d between %v and %v", p.Y-points[i-1].Y, points[i-1], p)
			return nil, false
		}

		if len(current) > 0 {
			for _, stored := range current {
				if p.Y-stored.Y > minSquareSize {
					deformed++
				}
			}
			width := p.X - current[len(current)-1].X
			if width > maxSquareWidth || width == 0 {
				wideSquares++
			}
		}

		current = append(current, p)
		ySum += p.Y

		endOfLine := i == len(points)-1
		if !endOfLine {
			next := points[i+1]
			aligned := next.Y-p.Y <= minSquareSize
			growing := next.X > p.X
			if aligned && !growing {
				overlaps++
			}
			endOfLine = !(aligned && growing)
		}
		if !endOfLine {
			continue
		}

		key := int(math.Round(float64(ySum) / float64(len(current))))
		if _, ok := byKey[key]; ok {
			logger.Debugf("line at y=%d found twice", key)
			return nil, false
		}
		byKey[key] = cornerLine{key: key, points: current}
		current = nil
		ySum = 0
	}

	if overlaps+deformed+wideSquares > 0 {
		logger.Warnf("grid lines: %d overlapping, %d deformed, %d unexpected square widths", overlaps, deformed, wideSquares)
	}

	lines := make([]cornerLine, 0, len(byKey))
	for _, l := range byKey {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].key < lines[j].key })
	return lines, true
}

// buildCornerGrid assigns column indices row by row. A corner belongs to the
// column whose last x is within maxXDelta; columns found left of all known
// columns are prepended. Gaps inside a row invalidate the grid.
func buildCornerGrid(lines []cornerLine, maxXDelta int, area image.Rectangle, logger logging.Logger) (*CornerGrid, bool) {
	g := newCornerGrid(area)
	var lastX []int
	indexRow := 0

	for _, line := range lines {
		row := cornerRow{key: line.key, yMin: line.key + 1, yMax: line.key - 1}
		xOld := line.points[0].X - maxXDelta - 1
		expected := 0

		for k, p := range line.points {
			row.yMin = min(row.yMin, p.Y)
			row.yMax = max(row.yMax, p.Y)

			if p.X <= xOld+maxXDelta {
				logger.Debugf("line %d: x=%d too close to x=%d", line.key, p.X, xOld)
				return g, false
			}

			col := 0
			for col < len(lastX) && p.X > lastX[col]+maxXDelta {
				col++
			}
			if expected != 0 && col > expected {
				logger.Debugf("line %d: column %d missing before x=%d", line.key, expected, p.X)
				return g, false
			}

			if col == len(lastX) {
				for _, rest := range line.points[k:] {
					lastX = append(lastX, rest.X)
				}
			}

			if p.X < lastX[col]-maxXDelta {
				if col > 0 {
					logger.Debugf("line %d: x=%d falls between columns %d and %d", line.key, p.X, col-1, col)
					return g, false
				}
				offset := 0
				limit := lastX[col] - maxXDelta
				for _, rest := range line.points[k:] {
					if rest.X >= limit {
						break
					}
					lastX = append(lastX, 0)
					copy(lastX[col+offset+1:], lastX[col+offset:])
					lastX[col+offset] = rest.X
					offset++
				}
				g.shiftColumns(col, offset)
			}

			row.corners = append(row.corners, Corner{
				Position: r2.Point{X: float64(p.X), Y: float64(p.Y)},
				Row:      indexRow,
				Column:   col,
			})
			lastX[col] = p.X
			expected = col + 1
			xOld = p.X
		}

		if target := g.mergeCandidate(row); target >= 0 {
			if !g.mergeRow(target, row, lastX, maxXDelta) {
				logger.Debugf("line %d cannot be merged into line %d", row.key, g.rows[target].key)
				return g, false
			}
			continue
		}
		g.rows = append(g.rows, row)
		indexRow++
	}

	if n := len(g.rows); n > 0 && len(g.rows[n-1].corners) < 2 {
		g.rows = g.rows[:n-1]
	}
	g.columns = len(lastX)
	return g, true
}

func (g *CornerGrid) shiftColumns(from, offset int) {
	for i := range g.rows {
		for j := range g.rows[i].corners {
			if g.rows[i].corners[j].Column >= from {
				g.rows[i].corners[j].Column += offset
			}
		}
	}
}

// mergeCandidate returns the stored row whose y extent touches row, or -1.
func (g *CornerGrid) mergeCandidate(row cornerRow) int {
	for i, stored := range g.rows {
		if abs(row.yMin-stored.yMax) < mergeTolerance || abs(row.yMax-stored.yMin) < mergeTolerance {
			return i
		}
	}
	return -1
}

// mergeRow inserts the corners of row into the stored row target, keeping
// both x order and column order.
func (g *CornerGrid) mergeRow(target int, row cornerRow, lastX []int, maxXDelta int) bool {
	stored := &g.rows[target]
	stored.yMin = min(stored.yMin, row.yMin)
	stored.yMax = max(stored.yMax, row.yMax)

	for _, c := range row.corners {
		col := 0
		for col < len(lastX) && float64(lastX[col]+maxXDelta) < c.Position.X {
			col++
		}
		pos := 0
		for pos < len(stored.corners) && stored.corners[pos].Position.X < c.Position.X {
			pos++
		}
		if pos < len(stored.corners) && stored.corners[pos].Column <= col {
			return false
		}
		if pos > 0 && stored.corners[pos-1].Column >= col {
			return false
		}

		c.Column = col
		c.Row = target
		stored.corners = append(stored.corners, Corner{})
		copy(stored.corners[pos+1:], stored.corners[pos:])
		stored.corners[pos] = c
	}
	return true
}

// fittedLine is a least squares line b = alpha + beta*a.
type fittedLine struct {
	alpha, beta float64
	valid       bool
}

func fitLine(a, b []float64) fittedLine {
	if len(a) < 2 {
		return fittedLine{}
	}
	if stat.Variance(a, nil) == 0 {
		return fittedLine{}
	}
	alpha, beta := stat.LinearRegression(a, b, nil, false)
	return fittedLine{alpha: alpha, beta: beta, valid: true}
}

// intersect returns the crossing of a horizontal line y = h(x) and a
// vertical line x = v(y).
func intersect(h, v fittedLine) (r2.Point, bool) {
	if !h.valid || !v.valid {
		return r2.Point{}, false
	}
	den := 1 - h.beta*v.beta
	if math.Abs(den) < 1e-12 {
		return r2.Point{}, false
	}
	x := (v.alpha + v.beta*h.alpha) / den
	return r2.Point{X: x, Y: h.alpha + h.beta*x}, true
}

// linearize moves every corner onto the intersection of the lines fitted
// through its row and its column. Corners whose intersection is missing or
// outside the image keep their detected position.
func (g *CornerGrid) linearize() int {
	colX := make([][]float64, g.columns)
	colY := make([][]float64, g.columns)
	horizontal := make([]fittedLine, len(g.rows))
	for i, row := range g.rows {
		xs := make([]float64, 0, len(row.corners))
		ys := make([]float64, 0, len(row.corners))
		for _, c := range row.corners {
			xs = append(xs, c.Position.X)
			ys = append(ys, c.Position.Y)
			colX[c.Column] = append(colX[c.Column], c.Position.X)
			colY[c.Column] = append(colY[c.Column], c.Position.Y)
		}
		horizontal[i] = fitLine(xs, ys)
	}
	vertical := make([]fittedLine, g.columns)
	for j := range g.columns {
		vertical[j] = fitLine(colY[j], colX[j])
	}

	moved := 0
	for i := range g.rows {
		for k := range g.rows[i].corners {
			c := &g.rows[i].corners[k]
			p, ok := intersect(horizontal[i], vertical[c.Column])
			if !ok || p.X < float64(g.area.Min.X) || p.X >= float64(g.area.Max.X) ||
				p.Y < float64(g.area.Min.Y) || p.Y >= float64(g.area.Max.Y) {
				continue
			}
			c.Position = p
			moved++
		}
	}
	return moved
}

// link connects every corner to its direct grid neighbours.
func (g *CornerGrid) link() {
	for i := range g.rows {
		corners := g.rows[i].corners
		for k := range corners {
			c := &corners[k]
			c.Row = i
			c.Left, c.Right, c.Up, c.Down = nil, nil, nil, nil
			if k > 0 && corners[k-1].Column == c.Column-1 {
				c.Left = &corners[k-1]
			}
			if k+1 < len(corners) && corners[k+1].Column == c.Column+1 {
				c.Right = &corners[k+1]
			}
		}
	}
	for i := range g.rows {
		for k := range g.rows[i].corners {
			c := &g.rows[i].corners[k]
			if up, ok := g.At(i-1, c.Column); ok {
				c.Up = up
			}
			if down, ok := g.At(i+1, c.Column); ok {
				c.Down = down
			}
		}
	}
}

// cellAt reports whether both rows hold the corners of the square whose
// top-left corner is at column col of the top row.
func (g *CornerGrid) cellAt(top, col int) (tl, tr, bl, br *Corner, ok bool) {
	var ok1, ok2, ok3, ok4 bool
	tl, ok1 = g.At(top, col)
	tr, ok2 = g.At(top, col+1)
	bl, ok3 = g.At(top+1, col)
	br, ok4 = g.At(top+1, col+1)
	return tl, tr, bl, br, ok1 && ok2 && ok3 && ok4
}

// ScaleFactor is the mean side of a chessboard square in pixels. For every
// pair of adjacent rows it spans the two diagonals from the leftmost to the
// rightmost complete square and divides their pixel length by their length in
// squares. It is 0 when no row pair holds a complete square.
func (g *CornerGrid) ScaleFactor() float64 {
	if g == nil || len(g.rows) < 2 {
		return 0
	}

	var perRow []float64
	for top := 0; top+1 < len(g.rows); top++ {
		if len(g.rows[top].corners) < 2 || len(g.rows[top+1].corners) < 2 {
			break
		}
		left, right := -1, -1
		var tl, bl, tr, br *Corner
		for _, c := range g.rows[top].corners {
			ctl, ctr, cbl, cbr, ok := g.cellAt(top, c.Column)
			if !ok {
				continue
			}
			if left < 0 {
				left = c.Column
				tl, bl = ctl, cbl
			}
			right = c.Column + 1
			tr, br = ctr, cbr
		}
		if left < 0 {
			break
		}

		squares := float64(right - left)
		diag1 := br.Position.Sub(tl.Position).Norm() / math.Hypot(squares, 1)
		diag2 := tr.Position.Sub(bl.Position).Norm() / math.Hypot(squares, 1)
		perRow = append(perRow, (diag1+diag2)/2)
	}
	if len(perRow) == 0 {
		return 0
	}
	return stat.Mean(perRow, nil)
}

// PixelPerMM converts ScaleFactor with the printed square side in mm.
func (g *CornerGrid) PixelPerMM(squareSideMM float64) float64 {
	if squareSideMM == 0 {
		return 0
	}
	return g.ScaleFactor() / squareSideMM
}
