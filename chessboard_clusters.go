package scanfieldcal

import (
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

const (
	defaultClusterRadius = 15
	defaultMinSquareSize = 20
)

// pointCluster groups candidate pixels around the first pixel that opened it.
type pointCluster struct {
	key     image.Point
	members []image.Point
}

func (c pointCluster) centroid() r2.Point {
	sumX, sumY := 0, 0
	for _, p := range c.members {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(c.members))
	return r2.Point{X: float64(sumX) / n, Y: float64(sumY) / n}
}

func clusterKeyLess(a, b image.Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// clusterPoints assigns each point to the first cluster, in key order, whose
// key lies closer than radius on both axes. The result depends on the order
// of points.
func clusterPoints(points []image.Point, radius int) []pointCluster {
	var clusters []pointCluster
	for _, p := range points {
		added := false
		for i := range clusters {
			k := clusters[i].key
			if abs(p.X-k.X) < radius && abs(p.Y-k.Y) < radius {
				clusters[i].members = append(clusters[i].members, p)
				added = true
				break
			}
		}
		if added {
			continue
		}

		pos := sort.Search(len(clusters), func(i int) bool {
			return !clusterKeyLess(clusters[i].key, p)
		})
		clusters = append(clusters, pointCluster{})
		copy(clusters[pos+1:], clusters[pos:])
		clusters[pos] = pointCluster{key: p, members: []image.Point{p}}
	}
	return clusters
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// cornerList keeps raw corners ordered by row (y within tolerance), then x.
type cornerList struct {
	tolerance int
	points    []image.Point
	invalid   []r2.Point
}

func newCornerList(minSquareSize int) *cornerList {
	return &cornerList{tolerance: minSquareSize / 2}
}

// insert stores (x, y), truncated to whole pixels, at its ordered position
// and returns the index used. A point that would break the ordering is
// recorded as invalid and -1 is returned.
func (l *cornerList) insert(x, y float64) int {
	px, py := int(x), int(y)
	tol := l.tolerance

	pos := len(l.points)
	for i, p := range l.points {
		if p.Y >= py-tol {
			pos = i
			break
		}
	}

	if pos < len(l.points) {
		rowX := l.points[pos].X
		rowY := l.points[pos].Y
		for ; pos < len(l.points); pos++ {
			p := l.points[pos]
			outside := abs(p.Y-py) > tol ||
				p.Y > rowY+tol ||
				p.X < rowX ||
				p.X >= px
			if outside {
				break
			}
			rowX = p.X
		}
	}

	next := image.Point{math.MaxInt32, math.MaxInt32}
	if pos < len(l.points) {
		next = l.points[pos]
	}
	prev := image.Point{-1, -1}
	if pos > 0 {
		prev = l.points[pos-1]
	}

	valid := py >= prev.Y-tol && py <= next.Y+2*tol
	if abs(py-prev.Y) <= tol && px < prev.X {
		valid = false
	}
	if abs(py-next.Y) <= tol && px > next.X {
		valid = false
	}
	if !valid {
		l.invalid = append(l.invalid, r2.Point{X: x, Y: y})
		return -1
	}

	l.points = append(l.points, image.Point{})
	copy(l.points[pos+1:], l.points[pos:])
	l.points[pos] = image.Point{px, py}
	return pos
}

// rawCorners clusters the candidate pixels and orders the cluster centroids.
func rawCorners(candidates []image.Point, clusterRadius, minSquareSize int) *cornerList {
	list := newCornerList(minSquareSize)
	for _, c := range clusterPoints(candidates, clusterRadius) {
		center := c.centroid()
		list.insert(center.X, center.Y)
	}
	return list
}
