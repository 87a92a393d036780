// Package world provides the bounded 2D grid and the foragable resource field.
package world

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// Point is an integer grid coordinate.
type Point struct {
	X, Y int
}

// MarshalJSON encodes a point as [x, y], the shape observers already consume.
func (p Point) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", p.X, p.Y)), nil
}

// UnmarshalJSON decodes the [x, y] form written by MarshalJSON.
func (p *Point) UnmarshalJSON(b []byte) error {
	var xy [2]int
	if err := json.Unmarshal(b, &xy); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Bounds is the grid extent. Valid coordinates lie in [0, Width) × [0, Height).
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p lies inside the grid.
func (b Bounds) Contains(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// EdgePolicy decides what happens to a step that leaves the grid.
// One engine instance uses a single policy for its whole lifetime.
type EdgePolicy uint8

const (
	EdgeWrap  EdgePolicy = iota // Toroidal: leaving one edge re-enters at the opposite one
	EdgeClamp                   // Positions stick to the border
)

// ParseEdgePolicy maps a config name onto a policy.
func ParseEdgePolicy(name string) (EdgePolicy, error) {
	switch name {
	case "wrap", "":
		return EdgeWrap, nil
	case "clamp":
		return EdgeClamp, nil
	}
	return EdgeWrap, fmt.Errorf("unknown edge policy %q", name)
}

func (e EdgePolicy) String() string {
	if e == EdgeClamp {
		return "clamp"
	}
	return "wrap"
}

// Distance returns the Euclidean distance between two coordinates.
func Distance(a, b Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// Step displaces p by -1, 0 or +1 on each axis independently and brings the
// result back inside b according to policy.
func Step(p Point, b Bounds, policy EdgePolicy, rng *rand.Rand) Point {
	next := Point{
		X: p.X + rng.Intn(3) - 1,
		Y: p.Y + rng.Intn(3) - 1,
	}
	return Confine(next, b, policy)
}

// Confine maps an arbitrary coordinate into b.
func Confine(p Point, b Bounds, policy EdgePolicy) Point {
	if policy == EdgeClamp {
		return Point{X: clamp(p.X, b.Width), Y: clamp(p.Y, b.Height)}
	}
	return Point{X: wrap(p.X, b.Width), Y: wrap(p.Y, b.Height)}
}

// RandomPoint returns a uniformly distributed coordinate inside b.
func RandomPoint(b Bounds, rng *rand.Rand) Point {
	return Point{X: rng.Intn(b.Width), Y: rng.Intn(b.Height)}
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
