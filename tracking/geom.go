package tracking

import (
	"math"
	"sort"
)

// Point is a 2D point in pixel units
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// RotatedRect is a rectangle of given size rotated around its center.
// Angle is in degrees and gives the direction of the Width side.
type RotatedRect struct {
	Center Point
	Width  float64
	Height float64
	Angle  float64
}

// LongSide returns max(Width, Height)
func (rect RotatedRect) LongSide() float64 {
	return math.Max(rect.Width, rect.Height)
}

// ShortSide returns min(Width, Height)
func (rect RotatedRect) ShortSide() float64 {
	return math.Min(rect.Width, rect.Height)
}

// Homography is a 3x3 projective transform in row-major order
type Homography [3][3]float64

// Apply maps p through the homography. False is returned for points mapped to infinity.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (h[0][0]*p.X + h[0][1]*p.Y + h[0][2]) / w,
		Y: (h[1][0]*p.X + h[1][1]*p.Y + h[1][2]) / w,
	}, true
}

// Rotation returns -atan2(h01, h00) in degrees
func (h Homography) Rotation() float64 {
	return -math.Atan2(h[0][1], h[0][0]) * 180.0 / math.Pi
}

// PerspectiveTransform maps every point through h
func PerspectiveTransform(points []Point, h Homography) ([]Point, bool) {
	out := make([]Point, len(points))
	for i, p := range points {
		q, ok := h.Apply(p)
		if !ok {
			return nil, false
		}
		out[i] = q
	}
	return out, true
}

// CornerPoints returns corners of a width x height image in the order
// top-left, bottom-left, bottom-right, top-right
func CornerPoints(width, height int) []Point {
	w := float64(width - 1)
	h := float64(height - 1)
	return []Point{
		{X: 0, Y: 0},
		{X: 0, Y: h},
		{X: w, Y: h},
		{X: w, Y: 0},
	}
}

// ConvexHull returns the hull of points in counter-clockwise order (monotone chain).
// Collinear points on the hull edges are dropped.
func ConvexHull(points []Point) []Point {
	if len(points) < 3 {
		out := make([]Point, len(points))
		copy(out, points)
		if len(out) == 2 && out[0] == out[1] {
			out = out[:1]
		}
		return out
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	hull := make([]Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// MinAreaRect returns the minimum-area rectangle enclosing points (rotating calipers over the hull).
func MinAreaRect(points []Point) RotatedRect {
	hull := ConvexHull(points)
	switch len(hull) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{Center: hull[0]}
	case 2:
		return RotatedRect{
			Center: Point{X: (hull[0].X + hull[1].X) / 2, Y: (hull[0].Y + hull[1].Y) / 2},
			Width:  euclideanDistance(hull[0], hull[1]),
			Angle:  math.Atan2(hull[1].Y-hull[0].Y, hull[1].X-hull[0].X) * 180.0 / math.Pi,
		}
	}
	best := RotatedRect{}
	bestArea := math.Inf(1)
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		length := euclideanDistance(a, b)
		if length == 0 {
			continue
		}
		ux, uy := (b.X-a.X)/length, (b.Y-a.Y)/length
		// normal of the edge
		nx, ny := -uy, ux
		minU, maxU := math.Inf(1), math.Inf(-1)
		minN, maxN := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			du := p.X*ux + p.Y*uy
			dn := p.X*nx + p.Y*ny
			minU, maxU = math.Min(minU, du), math.Max(maxU, du)
			minN, maxN = math.Min(minN, dn), math.Max(maxN, dn)
		}
		area := (maxU - minU) * (maxN - minN)
		if area < bestArea {
			bestArea = area
			cu, cn := (minU+maxU)/2, (minN+maxN)/2
			best = RotatedRect{
				Center: Point{X: cu*ux + cn*nx, Y: cu*uy + cn*ny},
				Width:  maxU - minU,
				Height: maxN - minN,
				Angle:  math.Atan2(uy, ux) * 180.0 / math.Pi,
			}
		}
	}
	return best
}
