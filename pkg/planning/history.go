package planning

import (
	"slices"
)

// UpdateKind tags the variant carried by HistoryUpdate, ProjectUpdate and
// PlanResultUpdate.
type UpdateKind string

const (
	UpdateUnchanged         UpdateKind = "unchanged"
	UpdateDelta             UpdateKind = "delta"
	UpdateChangedCompletely UpdateKind = "changed_completely"
	UpdateRemoved           UpdateKind = "removed"
)

// Step is one committed plan delta together with the history version it was
// committed at.
type Step struct {
	Version uint64 `json:"version"`
	Plan    Plan   `json:"plan"`
}

// PlanHistory is the master timeline: committed steps plus one ongoing step.
type PlanHistory struct {
	Steps       []Step `json:"steps"`
	OngoingStep *Step  `json:"ongoing,omitempty"`
	Version     uint64 `json:"version"`
}

func NewPlanHistory() *PlanHistory {
	return &PlanHistory{}
}

// CommitStep appends plan as a committed step. Empty plans do not change the history.
func (h *PlanHistory) CommitStep(plan Plan) {
	if plan.IsEmpty() {
		return
	}
	h.Version++
	h.Steps = append(h.Steps, Step{Version: h.Version, Plan: plan.Clone()})
}

func (h *PlanHistory) SetOngoing(plan Plan) {
	h.Version++
	h.OngoingStep = &Step{Version: h.Version, Plan: plan.Clone()}
}

func (h *PlanHistory) ClearOngoing() {
	if h.OngoingStep == nil {
		return
	}
	h.Version++
	h.OngoingStep = nil
}

// CommitOngoing moves the ongoing step into the committed sequence.
func (h *PlanHistory) CommitOngoing() {
	if h.OngoingStep == nil {
		return
	}
	ongoing := h.OngoingStep.Plan
	h.OngoingStep = nil
	if ongoing.IsEmpty() {
		h.Version++
		return
	}
	h.CommitStep(ongoing)
}

// Resolve folds the committed steps in order, last write wins per gesture.
func (h *PlanHistory) Resolve() Plan {
	resolved := NewPlan()
	for _, step := range h.Steps {
		for id, gesture := range step.Plan.Gestures {
			resolved.Gestures[id] = gesture
		}
	}
	return resolved
}

func (h *PlanHistory) ResolveWithOngoing() Plan {
	resolved := h.Resolve()
	if h.OngoingStep != nil {
		for id, gesture := range h.OngoingStep.Plan.Gestures {
			resolved.Gestures[id] = gesture
		}
	}
	return resolved
}

// StampedGesture is a resolved gesture with the version of the step that last wrote it.
type StampedGesture struct {
	Gesture Gesture `json:"gesture"`
	Stamp   uint64  `json:"stamp"`
}

func (h *PlanHistory) stamped() map[GestureID]StampedGesture {
	out := make(map[GestureID]StampedGesture)
	steps := h.Steps
	if h.OngoingStep != nil {
		steps = append(slices.Clone(steps), *h.OngoingStep)
	}
	for _, step := range steps {
		for id, gesture := range step.Plan.Gestures {
			out[id] = StampedGesture{Gesture: gesture, Stamp: step.Version}
		}
	}
	return out
}

// Clone deep-copies the step list so the copy can be handed to another goroutine.
func (h *PlanHistory) Clone() *PlanHistory {
	out := &PlanHistory{Version: h.Version, Steps: make([]Step, len(h.Steps))}
	for i, step := range h.Steps {
		out.Steps[i] = Step{Version: step.Version, Plan: step.Plan.Clone()}
	}
	if h.OngoingStep != nil {
		out.OngoingStep = &Step{Version: h.OngoingStep.Version, Plan: h.OngoingStep.Plan.Clone()}
	}
	return out
}

// KnownHistoryState is what an observer last received of the master history. A zero
// Version means the observer has never synced.
type KnownHistoryState struct {
	Version  uint64               `json:"version"`
	Gestures map[GestureID]uint64 `json:"gestures"`
}

func (h *PlanHistory) KnownState() KnownHistoryState {
	known := KnownHistoryState{Version: h.Version, Gestures: map[GestureID]uint64{}}
	for id, stamped := range h.stamped() {
		known.Gestures[id] = stamped.Stamp
	}
	return known
}

// HistoryUpdate brings an observer from a KnownHistoryState to the current history.
type HistoryUpdate struct {
	Kind           UpdateKind                   `json:"kind"`
	Version        uint64                       `json:"version"`
	History        *PlanHistory                 `json:"history,omitempty"`
	GesturesToDrop []GestureID                  `json:"gestures_to_drop,omitempty"`
	NewGestures    map[GestureID]StampedGesture `json:"new_gestures,omitempty"`
}

// UpdateFor compares known against the current history. Observers that never synced
// get the whole history; others get the gestures whose stamps differ.
func (h *PlanHistory) UpdateFor(known KnownHistoryState) HistoryUpdate {
	if known.Version == h.Version {
		return HistoryUpdate{Kind: UpdateUnchanged, Version: h.Version}
	}
	if known.Version == 0 {
		return HistoryUpdate{Kind: UpdateChangedCompletely, Version: h.Version, History: h.Clone()}
	}
	current := h.stamped()
	update := HistoryUpdate{Kind: UpdateDelta, Version: h.Version, NewGestures: map[GestureID]StampedGesture{}}
	for id, stamped := range current {
		if stamp, ok := known.Gestures[id]; !ok || stamp != stamped.Stamp {
			update.NewGestures[id] = stamped
		}
	}
	for id := range known.Gestures {
		if _, ok := current[id]; !ok {
			update.GesturesToDrop = append(update.GesturesToDrop, id)
		}
	}
	return update
}
