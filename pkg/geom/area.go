package geom

import "math"

// SignedArea is the shoelace area of a closed ring; counter-clockwise rings are positive.
func SignedArea(ring []Point) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// SegmentIntersection reports where segments a1-a2 and b1-b2 meet, endpoints included.
// Parallel segments never intersect.
func SegmentIntersection(a1, a2, b1, b2 Point) (Point, bool) {
	rx, ry := a2.X-a1.X, a2.Y-a1.Y
	sx, sy := b2.X-b1.X, b2.Y-b1.Y
	denominator := rx*sy - ry*sx
	if math.Abs(denominator) < 1e-12 {
		return Point{}, false
	}
	qx, qy := b1.X-a1.X, b1.Y-a1.Y
	t := (qx*sy - qy*sx) / denominator
	u := (qx*ry - qy*rx) / denominator
	const eps = 1e-9
	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return Point{}, false
	}
	return a1.Interpolate(a2, t), true
}

// SelfIntersection finds the first pair of non-adjacent edges of a closed ring that
// cross. Edge i runs from ring[i] to ring[(i+1)%len(ring)].
func SelfIntersection(ring []Point) (i, j int, at Point, ok bool) {
	n := len(ring)
	if n < 4 {
		return 0, 0, Point{}, false
	}
	for i = 0; i < n; i++ {
		for j = i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			at, ok = SegmentIntersection(ring[i], ring[(i+1)%n], ring[j], ring[(j+1)%n])
			if ok {
				return i, j, at, true
			}
		}
	}
	return 0, 0, Point{}, false
}
