// Package geom holds the small amount of 2D geometry the planning core needs:
// polyline paths with arc-length lookups, point projection and ring helpers.
package geom

import (
	"errors"
	"math"
	"sort"

	"github.com/fogleman/gg"
)

// Point is a 2D position in plan space.
type Point = gg.Point

// ErrDegeneratePath is returned when a point sequence does not span any length.
var ErrDegeneratePath = errors.New("degenerate path")

// projectionTolerance lets a point sitting exactly on a segment end still count as
// projecting onto that segment.
const projectionTolerance = 1e-9

// Path is a polyline with cumulative distances aligned to the input point indices.
type Path struct {
	points    []Point
	distances []float64
}

func NewPath(points []Point) (*Path, error) {
	if len(points) < 2 {
		return nil, ErrDegeneratePath
	}
	distances := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		distances[i] = distances[i-1] + points[i-1].Distance(points[i])
	}
	if distances[len(distances)-1] == 0 {
		return nil, ErrDegeneratePath
	}
	return &Path{
		points:    append([]Point(nil), points...),
		distances: distances,
	}, nil
}

// Distances returns the distance along the path of every input point.
func (p *Path) Distances() []float64 {
	return append([]float64(nil), p.distances...)
}

func (p *Path) Length() float64 {
	return p.distances[len(p.distances)-1]
}

// Project finds the closest point of the path to q. It fails when q lies beyond
// either end of the path.
func (p *Path) Project(q Point) (along float64, closest Point, ok bool) {
	best := math.Inf(1)
	for i := 0; i+1 < len(p.points); i++ {
		t, segment := p.segmentParam(i, q)
		if segment == 0 || t < -projectionTolerance || t > 1+projectionTolerance {
			continue
		}
		t = math.Max(0, math.Min(1, t))
		foot := p.points[i].Interpolate(p.points[i+1], t)
		if d := foot.Distance(q); d < best {
			best = d
			along = p.distances[i] + t*segment
			closest = foot
			ok = true
		}
	}
	// points in the outer corner of a bend only project onto the vertex itself
	for i := 1; i+1 < len(p.points); i++ {
		before, _ := p.segmentParam(i-1, q)
		after, _ := p.segmentParam(i, q)
		if before <= 1 || after >= 0 {
			continue
		}
		if d := p.points[i].Distance(q); d < best {
			best = d
			along = p.distances[i]
			closest = p.points[i]
			ok = true
		}
	}
	return along, closest, ok
}

// segmentParam returns where q projects onto the line through segment i, as a
// fraction of the segment, along with the segment length.
func (p *Path) segmentParam(i int, q Point) (float64, float64) {
	a, b := p.points[i], p.points[i+1]
	segment := p.distances[i+1] - p.distances[i]
	if segment == 0 {
		return 0, 0
	}
	return ((q.X-a.X)*(b.X-a.X) + (q.Y-a.Y)*(b.Y-a.Y)) / (segment * segment), segment
}

// Along returns the point at distance d along the path, clamped to its ends.
func (p *Path) Along(d float64) Point {
	if d <= 0 {
		return p.points[0]
	}
	if d >= p.Length() {
		return p.points[len(p.points)-1]
	}
	i := sort.SearchFloat64s(p.distances, d)
	a, b := p.points[i-1], p.points[i]
	segment := p.distances[i] - p.distances[i-1]
	if segment == 0 {
		return b
	}
	return a.Interpolate(b, (d-p.distances[i-1])/segment)
}
