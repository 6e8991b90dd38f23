package planning

import (
	"github.com/astromechza/plansync/pkg/geom"
)

// currentVersionOf looks a gesture up in the project's committed history on top of
// master. The ongoing step is skipped: it is about to be replaced by the caller.
func (m *PlanManager) currentVersionOf(gestureID GestureID, projectID ProjectID) (Gesture, *Project, bool) {
	project, ok := m.projects[projectID]
	if !ok {
		return Gesture{}, nil, false
	}
	history := project.CurrentHistory()
	for i := len(history) - 1; i >= 0; i-- {
		if gesture, ok := history[i].Get(gestureID); ok {
			return gesture, project, true
		}
	}
	gesture, ok := m.master.ResolveWithOngoing().Get(gestureID)
	return gesture, project, ok
}

func (m *PlanManager) installStep(operation string, projectID ProjectID, project *Project, step Plan, commit bool) {
	project.SetOngoingStep(step)
	if commit {
		project.StartNewStep()
	}
	m.clearPreviews(projectID)
	recordEdit(operation)
}

// StartNewGesture creates a one-point gesture and commits it straight away so that
// the uncommitted edits of the ongoing drag can find it.
func (m *PlanManager) StartNewGesture(projectID ProjectID, machine MachineID, gestureID GestureID, intent GestureIntent, start geom.Point) {
	project, ok := m.projects[projectID]
	if !ok {
		return
	}
	gesture := NewGesture([]geom.Point{start}, intent)
	m.installStep("start_new_gesture", projectID, project, singleGesturePlan(gestureID, gesture), true)
	m.uiStateFor(machine, projectID).gestureOngoing = true
}

func (m *PlanManager) FinishGesture(machine MachineID) {
	if state, ok := m.uiStates[machine]; ok {
		state.gestureOngoing = false
	}
}

func (m *PlanManager) AddControlPoint(projectID ProjectID, gestureID GestureID, point geom.Point, addToEnd, commit bool) {
	current, project, ok := m.currentVersionOf(gestureID, projectID)
	if !ok {
		return
	}
	changed := current.WithPointAdded(point, addToEnd)
	m.installStep("add_control_point", projectID, project, singleGesturePlan(gestureID, changed), commit)
}

func (m *PlanManager) InsertControlPoint(projectID ProjectID, gestureID GestureID, point geom.Point, commit bool) {
	current, project, ok := m.currentVersionOf(gestureID, projectID)
	if !ok {
		return
	}
	changed := current.WithPointInserted(point)
	m.installStep("insert_control_point", projectID, project, singleGesturePlan(gestureID, changed), commit)
}

// MoveControlPoint is called repeatedly while dragging and once more with finished
// set. An index the gesture does not have is ignored.
func (m *PlanManager) MoveControlPoint(projectID ProjectID, gestureID GestureID, index int, position geom.Point, finished bool) {
	current, project, ok := m.currentVersionOf(gestureID, projectID)
	if !ok {
		return
	}
	changed, ok := current.WithPointMoved(index, position)
	if !ok {
		return
	}
	m.installStep("move_control_point", projectID, project, singleGesturePlan(gestureID, changed), finished)
}

// SplitGesture cuts a gesture in two. The second half gets a new id, which is
// returned; ok is false if splitAt does not project onto the gesture.
func (m *PlanManager) SplitGesture(projectID ProjectID, gestureID GestureID, splitAt geom.Point, commit bool) (GestureID, bool) {
	current, project, ok := m.currentVersionOf(gestureID, projectID)
	if !ok {
		return GestureID{}, false
	}
	first, second, ok := current.SplitAt(splitAt)
	if !ok {
		return GestureID{}, false
	}
	secondID := NewGestureID()
	step := PlanFromGestures(map[GestureID]Gesture{gestureID: first, secondID: second})
	m.installStep("split_gesture", projectID, project, step, commit)
	return secondID, true
}

func (m *PlanManager) SetIntent(projectID ProjectID, gestureID GestureID, intent GestureIntent, finished bool) {
	current, project, ok := m.currentVersionOf(gestureID, projectID)
	if !ok {
		return
	}
	m.installStep("set_intent", projectID, project, singleGesturePlan(gestureID, current.WithIntent(intent)), finished)
}

func (m *PlanManager) Undo(projectID ProjectID) {
	project, ok := m.projects[projectID]
	if !ok {
		return
	}
	project.Undo()
	m.clearPreviews(projectID)
	recordEdit("undo")
}

func (m *PlanManager) Redo(projectID ProjectID) {
	project, ok := m.projects[projectID]
	if !ok {
		return
	}
	project.Redo()
	m.clearPreviews(projectID)
	recordEdit("redo")
}
