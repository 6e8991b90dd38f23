package planning

import (
	"fmt"
	"slices"

	"github.com/astromechza/plansync/pkg/geom"
)

// splitGap is the distance kept free on either side of a split point.
const splitGap = 5.0

type IntentKind string

const (
	IntentRoad IntentKind = "road"
	IntentZone IntentKind = "zone"
)

type LandUse string

const (
	LandUseResidential  LandUse = "residential"
	LandUseCommercial   LandUse = "commercial"
	LandUseIndustrial   LandUse = "industrial"
	LandUseAgricultural LandUse = "agricultural"
	LandUseRecreational LandUse = "recreational"
)

type RoadIntent struct {
	LanesForward  uint8 `json:"lanes_forward"`
	LanesBackward uint8 `json:"lanes_backward"`
}

type ZoneIntent struct {
	LandUse LandUse `json:"land_use"`
}

// GestureIntent says what kind of feature a gesture describes. Only the field
// matching Kind is meaningful.
type GestureIntent struct {
	Kind IntentKind `json:"kind"`
	Road RoadIntent `json:"road"`
	Zone ZoneIntent `json:"zone"`
}

func NewRoadIntent(lanesForward, lanesBackward uint8) GestureIntent {
	return GestureIntent{Kind: IntentRoad, Road: RoadIntent{LanesForward: lanesForward, LanesBackward: lanesBackward}}
}

func NewZoneIntent(landUse LandUse) GestureIntent {
	return GestureIntent{Kind: IntentZone, Zone: ZoneIntent{LandUse: landUse}}
}

func (i GestureIntent) String() string {
	switch i.Kind {
	case IntentRoad:
		return fmt.Sprintf("road(%d/%d)", i.Road.LanesForward, i.Road.LanesBackward)
	case IntentZone:
		return fmt.Sprintf("zone(%s)", i.Zone.LandUse)
	default:
		return string(i.Kind)
	}
}

// Gesture is an immutable value. Every edit method returns a new Gesture and
// leaves the receiver's points untouched.
type Gesture struct {
	Points []geom.Point  `json:"points"`
	Intent GestureIntent `json:"intent"`
}

func NewGesture(points []geom.Point, intent GestureIntent) Gesture {
	return Gesture{Points: slices.Clone(points), Intent: intent}
}

func (g Gesture) Equal(other Gesture) bool {
	return g.Intent == other.Intent && slices.Equal(g.Points, other.Points)
}

func (g Gesture) WithIntent(intent GestureIntent) Gesture {
	return Gesture{Points: slices.Clone(g.Points), Intent: intent}
}

// WithPointAdded appends p, or prepends it when toEnd is false.
func (g Gesture) WithPointAdded(p geom.Point, toEnd bool) Gesture {
	points := make([]geom.Point, 0, len(g.Points)+1)
	if toEnd {
		points = append(append(points, g.Points...), p)
	} else {
		points = append(append(points, p), g.Points...)
	}
	return Gesture{Points: points, Intent: g.Intent}
}

// WithPointInserted places p before the first point whose distance along the
// gesture is at least p's projected distance, or at the end if p does not project.
func (g Gesture) WithPointInserted(p geom.Point) Gesture {
	index := len(g.Points)
	if path, err := geom.NewPath(g.Points); err == nil {
		if along, _, ok := path.Project(p); ok {
			if i := firstAtOrBeyond(path.Distances(), along); i >= 0 {
				index = i
			}
		}
	}
	points := make([]geom.Point, 0, len(g.Points)+1)
	points = append(points, g.Points[:index]...)
	points = append(points, p)
	points = append(points, g.Points[index:]...)
	return Gesture{Points: points, Intent: g.Intent}
}

// WithPointMoved replaces the point at index. ok is false when index is out of range.
func (g Gesture) WithPointMoved(index int, p geom.Point) (Gesture, bool) {
	if index < 0 || index >= len(g.Points) {
		return Gesture{}, false
	}
	points := slices.Clone(g.Points)
	points[index] = p
	return Gesture{Points: points, Intent: g.Intent}, true
}

// SplitAt cuts the gesture where at projects onto it, leaving a gap of splitGap on
// each side. ok is false when at does not project onto the gesture.
func (g Gesture) SplitAt(at geom.Point) (first, second Gesture, ok bool) {
	path, err := geom.NewPath(g.Points)
	if err != nil {
		return Gesture{}, Gesture{}, false
	}
	along, _, projected := path.Project(at)
	if !projected {
		return Gesture{}, Gesture{}, false
	}
	index := firstAtOrBeyond(path.Distances(), along)
	if index < 0 {
		return Gesture{}, Gesture{}, false
	}
	before := path.Along(along - splitGap)
	after := path.Along(along + splitGap)

	firstPoints := append(slices.Clone(g.Points[:index]), before)
	secondPoints := append([]geom.Point{after}, g.Points[index:]...)
	return Gesture{Points: firstPoints, Intent: g.Intent}, Gesture{Points: secondPoints, Intent: g.Intent}, true
}

func firstAtOrBeyond(distances []float64, along float64) int {
	for i, d := range distances {
		if d >= along {
			return i
		}
	}
	return -1
}
