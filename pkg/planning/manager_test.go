package planning

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_CachedUntilEdited(t *testing.T) {
	m, calls := countingManager()
	project := m.NewProject()
	id := drawRoad(m, project, "m1", pt(0, 0), pt(10, 0))
	ui := &recordingUI{}

	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})
	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})
	require.Len(t, ui.previews, 2)
	assert.Equal(t, 1, *calls)

	m.MoveControlPoint(project, id, 1, pt(10, 5), false)
	assert.Nil(t, m.uiStates["m1"].preview)

	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})
	assert.Equal(t, 2, *calls)
	last := ui.previews[len(ui.previews)-1]
	g, _ := last.plan.Get(id)
	assert.Equal(t, pt(10, 5), g.Points[1], "previews include the ongoing step")
}

func TestPreview_EditInvalidatesEveryObserverOfProject(t *testing.T) {
	m, calls := countingManager()
	project := m.NewProject()
	other := m.NewProject()
	id := drawRoad(m, project, "m1", pt(0, 0), pt(10, 0))
	ui := &recordingUI{}

	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})
	m.GetProjectPreviewUpdate(ui, "m2", project, KnownPlanResultState{})
	m.GetProjectPreviewUpdate(ui, "m3", other, KnownPlanResultState{})
	assert.Equal(t, 3, *calls)

	m.AddControlPoint(project, id, pt(20, 0), true, true)
	assert.Nil(t, m.uiStates["m1"].preview)
	assert.Nil(t, m.uiStates["m2"].preview)
	assert.NotNil(t, m.uiStates["m3"].preview)
}

func TestPreview_FailureEmitsNothing(t *testing.T) {
	m, calls := countingManager()
	project := m.NewProject()
	zone := NewGestureID()
	m.StartNewGesture(project, "m1", zone, NewZoneIntent(LandUseResidential), pt(0, 0))
	for _, p := range []struct{ x, y float64 }{{10, 10}, {10, 0}, {0, 10}} {
		m.AddControlPoint(project, zone, pt(p.x, p.y), true, true)
	}
	ui := &recordingUI{}
	leftovers := testutil.ToFloat64(previewsTotal.WithLabelValues(previewLeftOver))

	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})
	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})

	assert.Empty(t, ui.previews)
	assert.Equal(t, 1, *calls, "a failed preview is not retried until the next edit")
	state := m.uiStates["m1"]
	assert.NotNil(t, state.preview)
	assert.Nil(t, state.resultPreview)
	assert.Nil(t, state.actionPreview)
	assert.Equal(t, leftovers+1, testutil.ToFloat64(previewsTotal.WithLabelValues(previewLeftOver)))
}

func TestPreview_SwitchingProjectsResetsCache(t *testing.T) {
	m, calls := countingManager()
	a, b := m.NewProject(), m.NewProject()
	ui := &recordingUI{}

	m.GetProjectPreviewUpdate(ui, "m1", a, KnownPlanResultState{})
	m.GetProjectPreviewUpdate(ui, "m1", b, KnownPlanResultState{})
	m.GetProjectPreviewUpdate(ui, "m1", a, KnownPlanResultState{})
	assert.Equal(t, 3, *calls)

	current, _ := m.CurrentProject("m1")
	assert.Equal(t, a, current)
}

func TestPreview_UnknownProject(t *testing.T) {
	m, calls := countingManager()
	ui := &recordingUI{}
	m.GetProjectPreviewUpdate(ui, "m1", NewProjectID(), KnownPlanResultState{})
	assert.Empty(t, ui.previews)
	assert.Equal(t, 0, *calls)
}

func TestPreview_ActionsRelativeToMaster(t *testing.T) {
	m := newTestManager()
	base := m.NewProject()
	drawRoad(m, base, "m1", pt(5, -5), pt(5, 5))
	require.NoError(t, m.ImplementProject(base))

	project := m.NewProject()
	drawRoad(m, project, "m1", pt(0, 0), pt(10, 0))
	ui := &recordingUI{}
	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})

	require.Len(t, ui.previews, 1)
	push := ui.previews[0]
	assert.Equal(t, UpdateChangedCompletely, push.result.Kind)
	assert.Len(t, push.result.Result.Prototypes, 3, "two roads and their intersection")
	assert.Equal(t, 2, push.actions.Count(ActionConstruct))
	assert.Equal(t, 2, push.actions.Len())
}

func TestGetAllPlans_ReportsRemovedProjects(t *testing.T) {
	m := newTestManager()
	keep, gone := m.NewProject(), m.NewProject()
	mirror := NewMirror()
	m.GetAllPlans(mirror, mirror.KnownMaster(), mirror.KnownProjects())
	require.Len(t, mirror.Projects, 2)

	require.True(t, m.RemoveProject(gone))
	assert.False(t, m.RemoveProject(gone))

	ui := &recordingUI{}
	m.GetAllPlans(ui, mirror.KnownMaster(), mirror.KnownProjects())
	require.Len(t, ui.plans, 1)
	updates := ui.plans[0].projects
	assert.Equal(t, UpdateUnchanged, updates[keep].Kind)
	assert.Equal(t, UpdateRemoved, updates[gone].Kind)
	assert.Equal(t, UpdateUnchanged, ui.plans[0].master.Kind)
}

func TestImplementProject(t *testing.T) {
	m := newTestManager()
	project := m.NewProject()
	id := drawRoad(m, project, "m1", pt(0, 0), pt(10, 0))
	ui := &recordingUI{}
	m.GetProjectPreviewUpdate(ui, "m2", project, KnownPlanResultState{})

	require.NoError(t, m.ImplementProject(project))

	_, ok := m.Project(project)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), m.Master().Version)
	_, ok = m.Master().Resolve().Get(id)
	assert.True(t, ok)
	assert.Len(t, m.MasterResult().Prototypes, 1)
	assert.Nil(t, m.uiStates["m2"].preview)

	assert.ErrorIs(t, m.ImplementProject(project), ErrUnknownProject)
}

func TestImplementProject_RefusesInvalidResult(t *testing.T) {
	m := newTestManager()
	project := m.NewProject()
	zone := NewGestureID()
	m.StartNewGesture(project, "m1", zone, NewZoneIntent(LandUseIndustrial), pt(0, 0))
	m.AddControlPoint(project, zone, pt(10, 0), true, true)
	m.AddControlPoint(project, zone, pt(20, 0), true, true)

	err := m.ImplementProject(project)
	assert.ErrorIs(t, err, ErrDegenerateArea)
	_, ok := m.Project(project)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), m.Master().Version)
}

func TestProjectsFloatWithMaster(t *testing.T) {
	m := newTestManager()
	project := m.NewProject()
	drawRoad(m, project, "m1", pt(0, 0), pt(10, 0))
	ui := &recordingUI{}
	m.GetProjectPreviewUpdate(ui, "m1", project, KnownPlanResultState{})
	require.Len(t, ui.previews, 1)
	assert.Len(t, ui.previews[0].result.Result.Prototypes, 1)

	other := m.NewProject()
	drawRoad(m, other, "m2", pt(5, -5), pt(5, 5))
	require.NoError(t, m.ImplementProject(other))

	m.GetProjectPreviewUpdate(ui, "m1", project, ui.previews[0].result.Result.KnownState())
	require.Len(t, ui.previews, 2)
	delta := ui.previews[1].result
	require.Equal(t, UpdateDelta, delta.Kind)
	assert.Len(t, delta.NewPrototypes, 2)
	assert.Empty(t, delta.PrototypesToDrop)
}
