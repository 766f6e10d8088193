package scene

import "math"

// Vec2 is a point or offset in scene space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Transform places a node relative to its parent: scale, then rotate
// (radians), then translate.
type Transform struct {
	Position Vec2    `json:"position"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// Identity is the transform that leaves points in place.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Apply maps a point from the transform's local space into its parent's.
func (t Transform) Apply(p Vec2) Vec2 {
	sin, cos := math.Sincos(t.Rotation)
	x, y := p.X*t.Scale, p.Y*t.Scale
	return Vec2{
		X: x*cos - y*sin + t.Position.X,
		Y: x*sin + y*cos + t.Position.Y,
	}
}

// Compose returns the transform equivalent to applying local and then t.
func (t Transform) Compose(local Transform) Transform {
	return Transform{
		Position: t.Apply(local.Position),
		Rotation: t.Rotation + local.Rotation,
		Scale:    t.Scale * local.Scale,
	}
}
