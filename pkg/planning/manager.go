package planning

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrUnknownProject = errors.New("unknown project")

// PlanningUI receives the pushes of the query protocol. Implementations are called
// from inside an actor turn and must not block.
type PlanningUI interface {
	OnPlansUpdate(master HistoryUpdate, projects map[ProjectID]ProjectUpdate)
	OnProjectPreviewUpdate(project ProjectID, plan Plan, result PlanResultUpdate, actions ActionGroups)
}

// ResultCalculator derives a PlanResult from a resolved plan.
type ResultCalculator func(plan Plan) (*PlanResult, error)

// uiState is one observer's preview cache. A nil preview means nothing is cached;
// a cached preview with a nil result means the computation failed for this cache
// generation.
type uiState struct {
	currentProject ProjectID
	gestureOngoing bool
	preview        *Plan
	resultPreview  *PlanResult
	actionPreview  *ActionGroups
}

func (s *uiState) clear() {
	s.preview = nil
	s.resultPreview = nil
	s.actionPreview = nil
}

// PlanManager owns the master history, every project and the per-observer preview
// caches. It is not safe for concurrent use; drive it through an Actor.
type PlanManager struct {
	logger       *slog.Logger
	calculate    ResultCalculator
	master       *PlanHistory
	masterResult *PlanResult
	projects     map[ProjectID]*Project
	uiStates     map[MachineID]*uiState
}

type Option func(*PlanManager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *PlanManager) {
		m.logger = logger
	}
}

func WithResultCalculator(calculate ResultCalculator) Option {
	return func(m *PlanManager) {
		m.calculate = calculate
	}
}

func NewPlanManager(opts ...Option) *PlanManager {
	m := &PlanManager{
		logger:    slog.Default(),
		calculate: CalculateResult,
		master:    NewPlanHistory(),
		projects:  make(map[ProjectID]*Project),
		uiStates:  make(map[MachineID]*uiState),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "planning")
	m.recalculateMaster()
	return m
}

func (m *PlanManager) recalculateMaster() {
	result, err := m.calculate(m.master.ResolveWithOngoing())
	if err != nil {
		m.logger.Error("master plan has no valid result", "err", err)
		result = NewPlanResult()
	}
	m.masterResult = result
}

func (m *PlanManager) Master() *PlanHistory {
	return m.master
}

func (m *PlanManager) MasterResult() *PlanResult {
	return m.masterResult
}

func (m *PlanManager) Project(id ProjectID) (*Project, bool) {
	project, ok := m.projects[id]
	return project, ok
}

func (m *PlanManager) ProjectIDs() []ProjectID {
	ids := make([]ProjectID, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	return ids
}

func (m *PlanManager) NewProject() ProjectID {
	id := NewProjectID()
	m.projects[id] = NewProject()
	m.logger.Info("created project", "project", id)
	return id
}

// RemoveProject drops a project. Observers learn about it as a Removed update the
// next time they query with a digest naming it.
func (m *PlanManager) RemoveProject(id ProjectID) bool {
	if _, ok := m.projects[id]; !ok {
		return false
	}
	delete(m.projects, id)
	m.clearPreviews(id)
	m.logger.Info("removed project", "project", id)
	return true
}

// ImplementProject commits a project's changes to master as one step and removes the
// project. Every preview is invalidated because all projects resolve against master.
func (m *PlanManager) ImplementProject(id ProjectID) error {
	project, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("failed to implement project %s: %w", id, ErrUnknownProject)
	}
	merged := project.ApplyToWithOngoing(m.master)
	result, err := m.calculate(merged)
	if err != nil {
		return fmt.Errorf("failed to implement project %s: %w", id, err)
	}
	delta := merged.DeltaFrom(m.master.ResolveWithOngoing())
	m.master.CommitStep(delta)
	m.masterResult = result
	delete(m.projects, id)
	m.clearAllPreviews()
	m.logger.Info("implemented project", "project", id, "gestures", delta.Len(), "master_version", m.master.Version)
	return nil
}

// SwitchTo focuses an observer on a project, discarding its previous cache.
func (m *PlanManager) SwitchTo(machine MachineID, project ProjectID) {
	m.uiStates[machine] = &uiState{currentProject: project}
}

func (m *PlanManager) uiStateFor(machine MachineID, project ProjectID) *uiState {
	state, ok := m.uiStates[machine]
	if !ok || state.currentProject != project {
		m.SwitchTo(machine, project)
		state = m.uiStates[machine]
	}
	return state
}

func (m *PlanManager) CurrentProject(machine MachineID) (ProjectID, bool) {
	state, ok := m.uiStates[machine]
	if !ok {
		return ProjectID{}, false
	}
	return state.currentProject, true
}

func (m *PlanManager) GestureOngoing(machine MachineID) bool {
	state, ok := m.uiStates[machine]
	return ok && state.gestureOngoing
}

func (m *PlanManager) clearPreviews(project ProjectID) {
	for _, state := range m.uiStates {
		if state.currentProject == project {
			state.clear()
		}
	}
}

func (m *PlanManager) clearAllPreviews() {
	for _, state := range m.uiStates {
		state.clear()
	}
}

// ensurePreview focuses the observer on project and fills its cache if empty. It
// reports false only when the project does not exist.
func (m *PlanManager) ensurePreview(machine MachineID, projectID ProjectID) (*uiState, bool) {
	project, ok := m.projects[projectID]
	if !ok {
		return nil, false
	}
	state := m.uiStateFor(machine, projectID)
	if state.preview != nil {
		recordPreview(previewCached, 0)
		return state, true
	}

	started := time.Now()
	plan := project.ApplyToWithOngoing(m.master)
	state.preview = &plan

	result, err := m.calculate(plan)
	if err != nil {
		var areaErr *AreaError
		if errors.As(err, &areaErr) && errors.Is(err, ErrLeftOver) {
			m.logger.Error("preview plan error", "project", projectID, "machine", machine, "leftover", areaErr.Detail)
			recordPreview(previewLeftOver, time.Since(started))
		} else {
			m.logger.Error("preview plan error", "project", projectID, "machine", machine, "err", err)
			recordPreview(previewFailed, time.Since(started))
		}
		return state, true
	}

	actions := m.masterResult.ActionsTo(result)
	state.resultPreview = result
	state.actionPreview = &actions
	recordPreview(previewSuccess, time.Since(started))
	return state, true
}

// GetAllPlans pushes the master update and one update per live project to ui.
// Projects named in knownProjects that no longer exist are reported as Removed.
func (m *PlanManager) GetAllPlans(ui PlanningUI, knownMaster KnownHistoryState, knownProjects map[ProjectID]KnownProjectState) {
	masterUpdate := m.master.UpdateFor(knownMaster)
	projectUpdates := make(map[ProjectID]ProjectUpdate, len(m.projects))
	for id, project := range m.projects {
		if known, ok := knownProjects[id]; ok {
			projectUpdates[id] = project.UpdateFor(known)
		} else {
			projectUpdates[id] = ProjectUpdate{Kind: UpdateChangedCompletely, Project: project.Clone()}
		}
	}
	for id := range knownProjects {
		if _, live := m.projects[id]; !live {
			projectUpdates[id] = ProjectUpdate{Kind: UpdateRemoved}
		}
	}
	recordUpdate(updatePlans)
	ui.OnPlansUpdate(masterUpdate, projectUpdates)
}

// GetProjectPreviewUpdate pushes the observer's preview of project relative to
// knownResult. Nothing is pushed while the preview computation fails.
func (m *PlanManager) GetProjectPreviewUpdate(ui PlanningUI, machine MachineID, projectID ProjectID, knownResult KnownPlanResultState) {
	state, ok := m.ensurePreview(machine, projectID)
	if !ok {
		m.logger.Debug("preview requested for unknown project", "project", projectID, "machine", machine)
		return
	}
	if state.resultPreview == nil || state.actionPreview == nil {
		return
	}
	recordUpdate(updatePreview)
	ui.OnProjectPreviewUpdate(
		projectID,
		state.preview.Clone(),
		state.resultPreview.UpdateFor(knownResult),
		cloneActions(*state.actionPreview),
	)
}

func cloneActions(groups ActionGroups) ActionGroups {
	out := make(ActionGroups, len(groups))
	for i, group := range groups {
		out[i] = append([]Action(nil), group...)
	}
	return out
}
