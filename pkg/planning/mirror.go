package planning

// Mirror is an observer's replica of the state it has been sent. It applies the
// pushes of the query protocol and produces the digests for the next query.
type Mirror struct {
	MasterVersion uint64
	Master        map[GestureID]StampedGesture
	Projects      map[ProjectID]*Project
	Previews      map[ProjectID]Plan
	Results       map[ProjectID]*PlanResult
	Actions       map[ProjectID]ActionGroups
}

var _ PlanningUI = (*Mirror)(nil)

func NewMirror() *Mirror {
	return &Mirror{
		Master:   map[GestureID]StampedGesture{},
		Projects: map[ProjectID]*Project{},
		Previews: map[ProjectID]Plan{},
		Results:  map[ProjectID]*PlanResult{},
		Actions:  map[ProjectID]ActionGroups{},
	}
}

func (m *Mirror) OnPlansUpdate(master HistoryUpdate, projects map[ProjectID]ProjectUpdate) {
	m.applyMaster(master)
	for id, update := range projects {
		m.applyProject(id, update)
	}
}

func (m *Mirror) applyMaster(update HistoryUpdate) {
	switch update.Kind {
	case UpdateChangedCompletely:
		m.Master = update.History.stamped()
	case UpdateDelta:
		for _, id := range update.GesturesToDrop {
			delete(m.Master, id)
		}
		for id, stamped := range update.NewGestures {
			m.Master[id] = stamped
		}
	case UpdateUnchanged:
	default:
		return
	}
	m.MasterVersion = update.Version
}

func (m *Mirror) applyProject(id ProjectID, update ProjectUpdate) {
	switch update.Kind {
	case UpdateChangedCompletely:
		m.Projects[id] = update.Project.Clone()
	case UpdateDelta:
		project, ok := m.Projects[id]
		if !ok || update.Ongoing == nil {
			return
		}
		project.Ongoing = update.Ongoing.Clone()
		project.OngoingVersion = update.OngoingVersion
	case UpdateRemoved:
		delete(m.Projects, id)
		delete(m.Previews, id)
		delete(m.Results, id)
		delete(m.Actions, id)
	}
}

func (m *Mirror) OnProjectPreviewUpdate(project ProjectID, plan Plan, result PlanResultUpdate, actions ActionGroups) {
	m.Previews[project] = plan
	m.Actions[project] = actions
	switch result.Kind {
	case UpdateChangedCompletely:
		m.Results[project] = result.Result.Clone()
	case UpdateDelta:
		current, ok := m.Results[project]
		if !ok {
			current = NewPlanResult()
			m.Results[project] = current
		}
		for _, id := range result.PrototypesToDrop {
			delete(current.Prototypes, id)
		}
		for _, prototype := range result.NewPrototypes {
			current.Prototypes[prototype.ID] = prototype
		}
	}
}

func (m *Mirror) KnownMaster() KnownHistoryState {
	known := KnownHistoryState{Version: m.MasterVersion, Gestures: make(map[GestureID]uint64, len(m.Master))}
	for id, stamped := range m.Master {
		known.Gestures[id] = stamped.Stamp
	}
	return known
}

func (m *Mirror) KnownProjects() map[ProjectID]KnownProjectState {
	known := make(map[ProjectID]KnownProjectState, len(m.Projects))
	for id, project := range m.Projects {
		known[id] = project.KnownState()
	}
	return known
}

func (m *Mirror) KnownResult(project ProjectID) KnownPlanResultState {
	result, ok := m.Results[project]
	if !ok {
		return KnownPlanResultState{}
	}
	return result.KnownState()
}

// MasterPlan is the resolved master state as this observer knows it.
func (m *Mirror) MasterPlan() Plan {
	plan := NewPlan()
	for id, stamped := range m.Master {
		plan.Gestures[id] = stamped.Gesture
	}
	return plan
}
