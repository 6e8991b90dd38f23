package planning

import (
	"errors"
	"fmt"
)

var ErrInvalidProject = errors.New("invalid project")

// Project is a branch layered on top of the current master history. Steps before
// Position are active; steps from Position on are the redo tail.
type Project struct {
	Steps          []Plan `json:"steps"`
	Position       int    `json:"position"`
	Ongoing        Plan   `json:"ongoing"`
	StepsVersion   uint64 `json:"steps_version"`
	OngoingVersion uint64 `json:"ongoing_version"`
}

func NewProject() *Project {
	return &Project{Ongoing: NewPlan()}
}

// SetOngoingStep replaces the uncommitted step. Ongoing steps are never composed.
func (p *Project) SetOngoingStep(plan Plan) {
	p.Ongoing = plan.Clone()
	p.OngoingVersion++
}

// StartNewStep commits the ongoing step and drops any redo tail.
func (p *Project) StartNewStep() {
	if p.Ongoing.IsEmpty() {
		return
	}
	p.Steps = append(p.Steps[:p.Position:p.Position], p.Ongoing)
	p.Position = len(p.Steps)
	p.Ongoing = NewPlan()
	p.StepsVersion++
	p.OngoingVersion++
}

// Validate checks that Position falls within the committed steps.
func (p *Project) Validate() error {
	if p.Position < 0 || p.Position > len(p.Steps) {
		return fmt.Errorf("%w: position %d outside [0, %d]", ErrInvalidProject, p.Position, len(p.Steps))
	}
	return nil
}

func (p *Project) CanUndo() bool {
	return p.Position > 0
}

func (p *Project) CanRedo() bool {
	return p.Position < len(p.Steps)
}

// Undo discards the ongoing step and steps back once, stopping at the first step.
func (p *Project) Undo() bool {
	p.discardOngoing()
	if !p.CanUndo() {
		return false
	}
	p.Position--
	p.StepsVersion++
	return true
}

// Redo discards the ongoing step and re-applies the next step of the redo tail.
func (p *Project) Redo() bool {
	p.discardOngoing()
	if !p.CanRedo() {
		return false
	}
	p.Position++
	p.StepsVersion++
	return true
}

func (p *Project) discardOngoing() {
	if p.Ongoing.IsEmpty() {
		return
	}
	p.Ongoing = NewPlan()
	p.OngoingVersion++
}

func (p *Project) CurrentHistory() []Plan {
	return p.Steps[:p.Position]
}

// ApplyTo resolves the project's active steps on top of master.
func (p *Project) ApplyTo(master *PlanHistory) Plan {
	resolved := master.ResolveWithOngoing()
	for _, step := range p.CurrentHistory() {
		for id, gesture := range step.Gestures {
			resolved.Gestures[id] = gesture
		}
	}
	return resolved
}

func (p *Project) ApplyToWithOngoing(master *PlanHistory) Plan {
	resolved := p.ApplyTo(master)
	for id, gesture := range p.Ongoing.Gestures {
		resolved.Gestures[id] = gesture
	}
	return resolved
}

func (p *Project) Clone() *Project {
	out := &Project{
		Steps:          make([]Plan, len(p.Steps)),
		Position:       p.Position,
		Ongoing:        p.Ongoing.Clone(),
		StepsVersion:   p.StepsVersion,
		OngoingVersion: p.OngoingVersion,
	}
	for i, step := range p.Steps {
		out.Steps[i] = step.Clone()
	}
	return out
}

type KnownProjectState struct {
	StepsVersion   uint64 `json:"steps_version"`
	OngoingVersion uint64 `json:"ongoing_version"`
}

func (p *Project) KnownState() KnownProjectState {
	return KnownProjectState{StepsVersion: p.StepsVersion, OngoingVersion: p.OngoingVersion}
}

// ProjectUpdate brings an observer's copy of one project up to date. A Delta carries
// only the ongoing step.
type ProjectUpdate struct {
	Kind           UpdateKind `json:"kind"`
	Project        *Project   `json:"project,omitempty"`
	Ongoing        *Plan      `json:"ongoing,omitempty"`
	OngoingVersion uint64     `json:"ongoing_version,omitempty"`
}

func (p *Project) UpdateFor(known KnownProjectState) ProjectUpdate {
	switch {
	case known == p.KnownState():
		return ProjectUpdate{Kind: UpdateUnchanged}
	case known.StepsVersion == p.StepsVersion:
		ongoing := p.Ongoing.Clone()
		return ProjectUpdate{Kind: UpdateDelta, Ongoing: &ongoing, OngoingVersion: p.OngoingVersion}
	default:
		return ProjectUpdate{Kind: UpdateChangedCompletely, Project: p.Clone()}
	}
}
