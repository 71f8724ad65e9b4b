package scanfieldcal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Blendable is implemented by correction values that can be interpolated.
type Blendable[T any] interface {
	// WeightedAverage returns k1*v + k2*other.
	WeightedAverage(k1, k2 float64, other T) T
}

// Sample is one measured value at a scanner position (mm).
type Sample[T any] struct {
	X, Y  float64
	Value T
}

const (
	axisX = 0
	axisY = 1
)

// gridHeader is the fixed part of the binary record, in wire order.
type gridHeader struct {
	Width  uint32
	Height uint32
	MinX   float64
	MinY   float64
	DeltaX float64
	DeltaY float64
}

// RegularGrid stores values on a uniformly spaced rectangular grid of scanner
// positions and interpolates between them.
// A grid that could not be inferred from its samples is empty and Get returns
// the zero value everywhere.
type RegularGrid[T Blendable[T]] struct {
	width  int
	height int
	min    [2]float64
	delta  [2]float64
	values []T
}

// NewRegularGrid infers the grid from scattered samples.
// Positions are compared with exact float equality: every row must start at the
// same x, hold the same number of columns and be spaced by the same delta.
func NewRegularGrid[T Blendable[T]](samples []Sample[T]) *RegularGrid[T] {
	g := &RegularGrid[T]{delta: [2]float64{1, 1}}
	if !g.inferShape(samples) {
		g.width, g.height = 0, 0
		g.min = [2]float64{}
		g.delta = [2]float64{1, 1}
		return g
	}

	g.values = make([]T, g.width*g.height)
	for _, s := range samples {
		i := int(math.Round(g.toIndex(axisX, s.X)))
		j := int(math.Round(g.toIndex(axisY, s.Y)))
		g.values[g.index(i, j)] = s.Value
	}
	return g
}

func (g *RegularGrid[T]) inferShape(samples []Sample[T]) bool {
	rows := map[float64]map[float64]struct{}{}
	for _, s := range samples {
		if rows[s.Y] == nil {
			rows[s.Y] = map[float64]struct{}{}
		}
		rows[s.Y][s.X] = struct{}{}
	}

	ys := make([]float64, 0, len(rows))
	for y := range rows {
		ys = append(ys, y)
	}
	sort.Float64s(ys)

	g.height = len(ys)
	for rowIndex, y := range ys {
		xs := sortedKeys(rows[y])
		if rowIndex == 0 {
			g.min[axisY] = y
			g.width = len(xs)
			g.min[axisX] = xs[0]
			if len(xs) > 1 {
				g.delta[axisX] = xs[1] - xs[0]
			}
		}

		if len(xs) != g.width {
			return false
		}
		if xs[0] != g.min[axisX] {
			return false
		}
		for k := 1; k < len(xs); k++ {
			if xs[k]-xs[k-1] != g.delta[axisX] {
				return false
			}
		}

		switch {
		case rowIndex == 1:
			g.delta[axisY] = y - ys[0]
		case rowIndex > 1:
			if y-ys[rowIndex-1] != g.delta[axisY] {
				return false
			}
		}
	}
	return true
}

func sortedKeys(m map[float64]struct{}) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

func (g *RegularGrid[T]) toIndex(axis int, v float64) float64 {
	return (v - g.min[axis]) / g.delta[axis]
}

func (g *RegularGrid[T]) fromIndex(axis int, index float64) float64 {
	return index*g.delta[axis] + g.min[axis]
}

func (g *RegularGrid[T]) index(i, j int) int {
	return j*g.width + i
}

// Len is the number of stored measurements.
func (g *RegularGrid[T]) Len() int {
	return len(g.values)
}

func (g *RegularGrid[T]) Empty() bool {
	return len(g.values) == 0
}

func (g *RegularGrid[T]) Width() int {
	return g.width
}

func (g *RegularGrid[T]) Height() int {
	return g.height
}

// Min returns the grid origin (x, y) in mm.
func (g *RegularGrid[T]) Min() (float64, float64) {
	return g.min[axisX], g.min[axisY]
}

// Delta returns the grid spacing (x, y) in mm.
func (g *RegularGrid[T]) Delta() (float64, float64) {
	return g.delta[axisX], g.delta[axisY]
}

// SamplePosition returns the scanner position of the index-th stored value,
// row-major.
func (g *RegularGrid[T]) SamplePosition(index int) (float64, float64) {
	j := index / g.width
	i := index % g.width
	return g.fromIndex(axisX, float64(i)), g.fromIndex(axisY, float64(j))
}

// Value returns the index-th stored value, row-major.
func (g *RegularGrid[T]) Value(index int) T {
	return g.values[index]
}

// Get returns the value at (x, y), bilinearly interpolated between the
// surrounding samples. Positions outside the grid are clamped to its border.
func (g *RegularGrid[T]) Get(x, y float64) T {
	var zero T
	switch len(g.values) {
	case 0:
		return zero
	case 1:
		return g.values[0]
	}

	i := clampFloat(g.toIndex(axisX, x), 0, float64(g.width-1))
	j := clampFloat(g.toIndex(axisY, y), 0, float64(g.height-1))

	if isIntegral(i) && isIntegral(j) {
		return g.values[g.index(int(i), int(j))]
	}
	if isIntegral(j) {
		return g.interpolateRow(i, int(j))
	}

	j1 := math.Floor(j)
	j2 := math.Ceil(j)
	top := g.interpolateRow(i, int(j1))
	bottom := g.interpolateRow(i, int(j2))
	return top.WeightedAverage(j2-j, j-j1, bottom)
}

func (g *RegularGrid[T]) interpolateRow(i float64, j int) T {
	if isIntegral(i) {
		return g.values[g.index(int(i), j)]
	}
	i1 := math.Floor(i)
	i2 := math.Ceil(i)
	left := g.values[g.index(int(i1), j)]
	right := g.values[g.index(int(i2), j)]
	return left.WeightedAverage(i2-i, i-i1, right)
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v)
}

// clampFloat maps NaN to lo.
func clampFloat(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarshalBinary writes width, height, min, delta and the row-major values,
// little-endian.
func (g *RegularGrid[T]) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	header := gridHeader{
		Width:  uint32(g.width),
		Height: uint32(g.height),
		MinX:   g.min[axisX],
		MinY:   g.min[axisY],
		DeltaX: g.delta[axisX],
		DeltaY: g.delta[axisY],
	}
	err := binary.Write(&buf, binary.LittleEndian, header)
	if err != nil {
		return nil, err
	}
	if len(g.values) > 0 {
		err = binary.Write(&buf, binary.LittleEndian, g.values)
		if err != nil {
			return nil, fmt.Errorf("cannot encode grid values: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary reads the layout written by MarshalBinary.
func (g *RegularGrid[T]) UnmarshalBinary(data []byte) error {
	if len(data) < gridHeaderSize {
		return fmt.Errorf("grid record too short: %d bytes", len(data))
	}

	var header gridHeader
	r := bytes.NewReader(data)
	err := binary.Read(r, binary.LittleEndian, &header)
	if err != nil {
		return err
	}

	var zero T
	elemSize := binary.Size(zero)
	if elemSize <= 0 {
		return errors.New("grid value type has no fixed binary size")
	}

	payload := uint64(r.Len())
	want := uint64(header.Width) * uint64(header.Height)
	if payload%uint64(elemSize) != 0 || payload/uint64(elemSize) != want {
		return fmt.Errorf("grid record holds %d value bytes for a %dx%d grid of %d byte values",
			payload, header.Width, header.Height, elemSize)
	}
	count := int(want)

	values := make([]T, count)
	if count > 0 {
		err = binary.Read(r, binary.LittleEndian, values)
		if err != nil {
			return err
		}
	}

	g.width = int(header.Width)
	g.height = int(header.Height)
	g.min = [2]float64{header.MinX, header.MinY}
	g.delta = [2]float64{header.DeltaX, header.DeltaY}
	g.values = values
	return nil
}

var gridHeaderSize = binary.Size(gridHeader{})
