package planning

import (
	"bytes"
	"maps"
	"slices"
)

// Plan maps gesture ids to gestures. It is either a full state or a sparse delta
// holding only the gestures touched by one edit. Plans are never mutated after
// construction; merging returns a new Plan.
type Plan struct {
	Gestures map[GestureID]Gesture `json:"gestures"`
}

func NewPlan() Plan {
	return Plan{Gestures: map[GestureID]Gesture{}}
}

func PlanFromGestures(gestures map[GestureID]Gesture) Plan {
	plan := Plan{Gestures: make(map[GestureID]Gesture, len(gestures))}
	for id, gesture := range gestures {
		plan.Gestures[id] = gesture
	}
	return plan
}

func singleGesturePlan(id GestureID, gesture Gesture) Plan {
	return Plan{Gestures: map[GestureID]Gesture{id: gesture}}
}

func (p Plan) IsEmpty() bool {
	return len(p.Gestures) == 0
}

func (p Plan) Len() int {
	return len(p.Gestures)
}

func (p Plan) Get(id GestureID) (Gesture, bool) {
	g, ok := p.Gestures[id]
	return g, ok
}

// Merged returns a new plan with other's gestures written over p's.
func (p Plan) Merged(other Plan) Plan {
	out := Plan{Gestures: make(map[GestureID]Gesture, len(p.Gestures)+len(other.Gestures))}
	maps.Copy(out.Gestures, p.Gestures)
	maps.Copy(out.Gestures, other.Gestures)
	return out
}

func (p Plan) Clone() Plan {
	return p.Merged(Plan{})
}

func (p Plan) Equal(other Plan) bool {
	if len(p.Gestures) != len(other.Gestures) {
		return false
	}
	for id, g := range p.Gestures {
		o, ok := other.Gestures[id]
		if !ok || !g.Equal(o) {
			return false
		}
	}
	return true
}

// DeltaFrom returns the gestures of p that are new or different compared to base.
func (p Plan) DeltaFrom(base Plan) Plan {
	out := NewPlan()
	for id, g := range p.Gestures {
		if b, ok := base.Gestures[id]; !ok || !b.Equal(g) {
			out.Gestures[id] = g
		}
	}
	return out
}

// SortedIDs lists the plan's gesture ids in a stable order.
func (p Plan) SortedIDs() []GestureID {
	ids := slices.Collect(maps.Keys(p.Gestures))
	slices.SortFunc(ids, func(a, b GestureID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}
