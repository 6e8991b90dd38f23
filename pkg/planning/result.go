package planning

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/astromechza/plansync/pkg/geom"
)

// minLotArea is the smallest zone area that still produces a lot.
const minLotArea = 1.0

var (
	ErrLeftOver       = errors.New("leftover geometry")
	ErrDegenerateArea = errors.New("degenerate area")
)

// AreaError reports why a plan's area geometry cannot produce a result. Err is
// ErrLeftOver or ErrDegenerateArea; Detail describes the offending piece.
type AreaError struct {
	Gesture GestureID
	Err     error
	Detail  string
}

func (e *AreaError) Error() string {
	return fmt.Sprintf("gesture %s: %s: %s", e.Gesture, e.Err, e.Detail)
}

func (e *AreaError) Unwrap() error {
	return e.Err
}

type PrototypeID uint64

type PrototypeKind string

const (
	PrototypeRoad         PrototypeKind = "road"
	PrototypeIntersection PrototypeKind = "intersection"
	PrototypeLot          PrototypeKind = "lot"
)

// Prototype is one constructible piece of the network derived from gestures. Path is
// the road centre line or the lot ring; Center is set for intersections.
type Prototype struct {
	ID            PrototypeID   `json:"id"`
	Kind          PrototypeKind `json:"kind"`
	Origin        []GestureID   `json:"origin"`
	Path          []geom.Point  `json:"path,omitempty"`
	Center        geom.Point    `json:"center"`
	LanesForward  uint8         `json:"lanes_forward,omitempty"`
	LanesBackward uint8         `json:"lanes_backward,omitempty"`
	LandUse       LandUse       `json:"land_use,omitempty"`
	Area          float64       `json:"area,omitempty"`
}

type prototypeKey struct {
	Kind          string
	Origin        []string
	Path          []geom.Point
	Center        geom.Point
	LanesForward  uint8
	LanesBackward uint8
	LandUse       string
}

func (p Prototype) withID() (Prototype, error) {
	key := prototypeKey{
		Kind:          string(p.Kind),
		Path:          p.Path,
		Center:        p.Center,
		LanesForward:  p.LanesForward,
		LanesBackward: p.LanesBackward,
		LandUse:       string(p.LandUse),
	}
	for _, id := range p.Origin {
		key.Origin = append(key.Origin, id.String())
	}
	hash, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		return Prototype{}, fmt.Errorf("failed to hash %s prototype: %w", p.Kind, err)
	}
	p.ID = PrototypeID(hash)
	return p, nil
}

// morphableFrom reports whether p replaces other in place rather than by
// destroying and constructing.
func (p Prototype) morphableFrom(other Prototype) bool {
	return p.Kind == other.Kind && slices.Equal(p.Origin, other.Origin)
}

// PlanResult is the network derived from a resolved plan.
type PlanResult struct {
	Prototypes map[PrototypeID]Prototype `json:"prototypes"`
}

func NewPlanResult() *PlanResult {
	return &PlanResult{Prototypes: map[PrototypeID]Prototype{}}
}

func (r *PlanResult) add(p Prototype) error {
	p, err := p.withID()
	if err != nil {
		return err
	}
	r.Prototypes[p.ID] = p
	return nil
}

func (r *PlanResult) Clone() *PlanResult {
	return &PlanResult{Prototypes: maps.Clone(r.Prototypes)}
}

func (r *PlanResult) SortedIDs() []PrototypeID {
	ids := slices.Collect(maps.Keys(r.Prototypes))
	slices.Sort(ids)
	return ids
}

type roadLine struct {
	gesture GestureID
	points  []geom.Point
}

// CalculateResult derives roads, their intersections and zone lots from plan.
// Gestures that are still being drawn contribute nothing.
func CalculateResult(plan Plan) (*PlanResult, error) {
	result := NewPlanResult()
	var roads []roadLine

	for _, id := range plan.SortedIDs() {
		gesture := plan.Gestures[id]
		switch gesture.Intent.Kind {
		case IntentRoad:
			if _, err := geom.NewPath(gesture.Points); err != nil {
				continue
			}
			if err := result.add(Prototype{
				Kind:          PrototypeRoad,
				Origin:        []GestureID{id},
				Path:          slices.Clone(gesture.Points),
				LanesForward:  gesture.Intent.Road.LanesForward,
				LanesBackward: gesture.Intent.Road.LanesBackward,
			}); err != nil {
				return nil, err
			}
			roads = append(roads, roadLine{gesture: id, points: gesture.Points})
		case IntentZone:
			if len(gesture.Points) < 3 {
				continue
			}
			if i, j, at, crossed := geom.SelfIntersection(gesture.Points); crossed {
				return nil, &AreaError{
					Gesture: id,
					Err:     ErrLeftOver,
					Detail:  fmt.Sprintf("edges %d and %d cross at (%.2f, %.2f) and leave an unassigned piece", i, j, at.X, at.Y),
				}
			}
			area := math.Abs(geom.SignedArea(gesture.Points))
			if area < minLotArea {
				return nil, &AreaError{
					Gesture: id,
					Err:     ErrDegenerateArea,
					Detail:  fmt.Sprintf("area %.3f is below %.1f", area, minLotArea),
				}
			}
			if err := result.add(Prototype{
				Kind:    PrototypeLot,
				Origin:  []GestureID{id},
				Path:    slices.Clone(gesture.Points),
				LandUse: gesture.Intent.Zone.LandUse,
				Area:    area,
			}); err != nil {
				return nil, err
			}
		}
	}

	for a := 0; a < len(roads); a++ {
		for b := a + 1; b < len(roads); b++ {
			for _, center := range crossings(roads[a].points, roads[b].points) {
				if err := result.add(Prototype{
					Kind:   PrototypeIntersection,
					Origin: []GestureID{roads[a].gesture, roads[b].gesture},
					Center: center,
				}); err != nil {
					return nil, err
				}
			}
		}
	}
	return result, nil
}

func crossings(a, b []geom.Point) []geom.Point {
	var out []geom.Point
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if at, ok := geom.SegmentIntersection(a[i], a[i+1], b[j], b[j+1]); ok {
				out = append(out, geom.Point{X: roundCoord(at.X), Y: roundCoord(at.Y)})
			}
		}
	}
	return out
}

func roundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// KnownPlanResultState lists the prototypes an observer holds. Synced is false when
// the observer has never received a result for the project.
type KnownPlanResultState struct {
	Synced     bool          `json:"synced"`
	Prototypes []PrototypeID `json:"prototypes"`
}

func (r *PlanResult) KnownState() KnownPlanResultState {
	return KnownPlanResultState{Synced: true, Prototypes: r.SortedIDs()}
}

type PlanResultUpdate struct {
	Kind             UpdateKind    `json:"kind"`
	Result           *PlanResult   `json:"result,omitempty"`
	PrototypesToDrop []PrototypeID `json:"prototypes_to_drop,omitempty"`
	NewPrototypes    []Prototype   `json:"new_prototypes,omitempty"`
}

func (r *PlanResult) UpdateFor(known KnownPlanResultState) PlanResultUpdate {
	if !known.Synced {
		return PlanResultUpdate{Kind: UpdateChangedCompletely, Result: r.Clone()}
	}
	held := make(map[PrototypeID]struct{}, len(known.Prototypes))
	var update PlanResultUpdate
	for _, id := range known.Prototypes {
		held[id] = struct{}{}
		if _, ok := r.Prototypes[id]; !ok {
			update.PrototypesToDrop = append(update.PrototypesToDrop, id)
		}
	}
	for _, id := range r.SortedIDs() {
		if _, ok := held[id]; !ok {
			update.NewPrototypes = append(update.NewPrototypes, r.Prototypes[id])
		}
	}
	if len(update.PrototypesToDrop) == 0 && len(update.NewPrototypes) == 0 {
		return PlanResultUpdate{Kind: UpdateUnchanged}
	}
	update.Kind = UpdateDelta
	return update
}
