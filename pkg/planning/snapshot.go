package planning

// Snapshot is the durable part of a PlanManager. Observer caches are not included.
type Snapshot struct {
	Master   *PlanHistory           `json:"master"`
	Projects map[ProjectID]*Project `json:"projects"`
}

func (m *PlanManager) Snapshot() Snapshot {
	snapshot := Snapshot{
		Master:   m.master.Clone(),
		Projects: make(map[ProjectID]*Project, len(m.projects)),
	}
	for id, project := range m.projects {
		snapshot.Projects[id] = project.Clone()
	}
	return snapshot
}

// Restore replaces all state with snapshot and drops every observer cache. A project
// position outside its steps is clamped.
func (m *PlanManager) Restore(snapshot Snapshot) {
	m.master = NewPlanHistory()
	if snapshot.Master != nil {
		m.master = snapshot.Master.Clone()
	}
	m.projects = make(map[ProjectID]*Project, len(snapshot.Projects))
	for id, project := range snapshot.Projects {
		restored := project.Clone()
		if err := restored.Validate(); err != nil {
			m.logger.Warn("clamping restored project", "project", id, "err", err)
			restored.Position = max(0, min(restored.Position, len(restored.Steps)))
		}
		m.projects[id] = restored
	}
	m.uiStates = make(map[MachineID]*uiState)
	m.recalculateMaster()
	m.logger.Info("restored plans", "master_version", m.master.Version, "projects", len(m.projects))
}
