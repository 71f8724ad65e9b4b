package scanfieldcal

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

func TestClusterPointsFirstFit(t *testing.T) {
	clusters := clusterPoints([]image.Point{{0, 0}, {10, 10}, {20, 20}, {100, 5}}, 15)
	test.That(t, len(clusters), test.ShouldEqual, 3)
	test.That(t, clusters[0].key, test.ShouldResemble, image.Point{0, 0})
	test.That(t, len(clusters[0].members), test.ShouldEqual, 2)
	test.That(t, clusters[0].centroid(), test.ShouldResemble, r2.Point{X: 5, Y: 5})
	test.That(t, clusters[1].key, test.ShouldResemble, image.Point{20, 20})
	test.That(t, clusters[2].key, test.ShouldResemble, image.Point{100, 5})

	// same points, reversed arrival
	clusters = clusterPoints([]image.Point{{20, 20}, {10, 10}, {0, 0}}, 15)
	test.That(t, len(clusters), test.ShouldEqual, 2)
	test.That(t, clusters[0].key, test.ShouldResemble, image.Point{0, 0})
	test.That(t, len(clusters[0].members), test.ShouldEqual, 1)
	test.That(t, len(clusters[1].members), test.ShouldEqual, 2)
}

func TestCornerListInsert(t *testing.T) {
	l := newCornerList(20)
	test.That(t, l.insert(50, 10), test.ShouldEqual, 0)
	test.That(t, l.insert(10.7, 12.2), test.ShouldEqual, 0)
	test.That(t, l.insert(10, 50), test.ShouldEqual, 2)
	test.That(t, l.insert(50, 48), test.ShouldEqual, 3)
	test.That(t, l.points, test.ShouldResemble, []image.Point{{10, 12}, {50, 10}, {10, 50}, {50, 48}})
	test.That(t, len(l.invalid), test.ShouldEqual, 0)
}

func TestCornerListRejects(t *testing.T) {
	l := newCornerList(20)
	l.insert(40, 10)
	l.insert(10, 21)
	test.That(t, l.insert(50, 19), test.ShouldEqual, -1)
	test.That(t, l.points, test.ShouldResemble, []image.Point{{40, 10}, {10, 21}})
	test.That(t, l.invalid, test.ShouldResemble, []r2.Point{{X: 50, Y: 19}})
}

func gridPoints(xs, ys []int) []image.Point {
	var points []image.Point
	for _, y := range ys {
		for _, x := range xs {
			points = append(points, image.Point{x, y})
		}
	}
	return points
}

func TestBuildLines(t *testing.T) {
	logger := logging.NewTestLogger(t)
	points := []image.Point{{0, 0}, {40, 1}, {80, 2}, {0, 40}, {40, 41}}
	lines, ok := buildLines(points, 20, logger)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(lines), test.ShouldEqual, 2)
	test.That(t, lines[0].key, test.ShouldEqual, 1)
	test.That(t, len(lines[0].points), test.ShouldEqual, 3)
	test.That(t, lines[1].key, test.ShouldEqual, 41)

	_, ok = buildLines(nil, 20, logger)
	test.That(t, ok, test.ShouldBeFalse)

	// an x that does not grow ends the line; the next one lands on the same key
	_, ok = buildLines([]image.Point{{10, 10}, {50, 10}, {30, 10}}, 20, logger)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestBuildCornerGrid(t *testing.T) {
	logger := logging.NewTestLogger(t)
	area := image.Rect(0, 0, 200, 200)

	lines, ok := buildLines(gridPoints([]int{0, 40, 80}, []int{0, 40}), 20, logger)
	test.That(t, ok, test.ShouldBeTrue)
	g, ok := buildCornerGrid(lines, 20, area, logger)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.NumRows(), test.ShouldEqual, 2)
	test.That(t, g.NumColumns(), test.ShouldEqual, 3)
	test.That(t, g.ScaleFactor(), test.ShouldAlmostEqual, 40, 1e-9)
	test.That(t, g.PixelPerMM(4), test.ShouldAlmostEqual, 10, 1e-9)

	// second row starts one column to the left
	points := append(gridPoints([]int{40, 80}, []int{0}), gridPoints([]int{0, 40, 80}, []int{40})...)
	lines, ok = buildLines(points, 20, logger)
	test.That(t, ok, test.ShouldBeTrue)
	g, ok = buildCornerGrid(lines, 20, area, logger)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.NumColumns(), test.ShouldEqual, 3)
	test.That(t, g.Row(0)[0].Column, test.ShouldEqual, 1)
	test.That(t, g.Row(1)[0].Column, test.ShouldEqual, 0)

	// a missing corner inside a row
	points = append(gridPoints([]int{10, 50, 90}, []int{0}), gridPoints([]int{10, 90}, []int{40})...)
	lines, ok = buildLines(points, 20, logger)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = buildCornerGrid(lines, 20, area, logger)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestBuildCornerGridTrimsShortLastRow(t *testing.T) {
	logger := logging.NewTestLogger(t)
	points := append(gridPoints([]int{0, 40, 80}, []int{0, 40}), image.Point{0, 80})
	lines, ok := buildLines(points, 20, logger)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(lines), test.ShouldEqual, 3)

	g, ok := buildCornerGrid(lines, 20, image.Rect(0, 0, 200, 200), logger)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.NumRows(), test.ShouldEqual, 2)
}

func TestCornerGridLinks(t *testing.T) {
	logger := logging.NewTestLogger(t)
	lines, _ := buildLines(gridPoints([]int{0, 40, 80}, []int{0, 40}), 20, logger)
	g, ok := buildCornerGrid(lines, 20, image.Rect(0, 0, 200, 200), logger)
	test.That(t, ok, test.ShouldBeTrue)
	g.link()

	c, ok := g.At(0, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c.Left.Position, test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, c.Right.Position, test.ShouldResemble, r2.Point{X: 80, Y: 0})
	test.That(t, c.Down.Position, test.ShouldResemble, r2.Point{X: 40, Y: 40})
	test.That(t, c.Up, test.ShouldBeNil)

	_, ok = g.At(2, 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestLinearize(t *testing.T) {
	logger := logging.NewTestLogger(t)
	// the middle corner of the top row is one pixel low
	points := []image.Point{{0, 0}, {40, 1}, {80, 0}, {0, 40}, {40, 40}, {80, 40}}
	lines, _ := buildLines(points, 20, logger)
	g, ok := buildCornerGrid(lines, 20, image.Rect(0, 0, 200, 200), logger)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.linearize(), test.ShouldEqual, 6)

	c, _ := g.At(0, 1)
	test.That(t, c.Position.X, test.ShouldAlmostEqual, 40, 1e-9)
	test.That(t, c.Position.Y, test.ShouldAlmostEqual, 1.0/3, 1e-9)

	p, ok := intersect(fittedLine{alpha: 1, valid: true}, fittedLine{alpha: 2, valid: true})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, r2.Point{X: 2, Y: 1})

	_, ok = intersect(fittedLine{alpha: 1, valid: true}, fittedLine{})
	test.That(t, ok, test.ShouldBeFalse)
}
