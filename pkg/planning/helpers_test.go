package planning

import (
	"io"
	"log/slog"

	"github.com/astromechza/plansync/pkg/geom"
)

func pt(x, y float64) geom.Point {
	return geom.Point{X: x, Y: y}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingManager returns a manager whose result calculations are counted, with the
// count reset after the initial master calculation.
func countingManager() (*PlanManager, *int) {
	calls := 0
	m := NewPlanManager(
		WithLogger(quietLogger()),
		WithResultCalculator(func(plan Plan) (*PlanResult, error) {
			calls++
			return CalculateResult(plan)
		}),
	)
	calls = 0
	return m, &calls
}

type plansPush struct {
	master   HistoryUpdate
	projects map[ProjectID]ProjectUpdate
}

type previewPush struct {
	project ProjectID
	plan    Plan
	result  PlanResultUpdate
	actions ActionGroups
}

type recordingUI struct {
	plans    []plansPush
	previews []previewPush
}

func (r *recordingUI) OnPlansUpdate(master HistoryUpdate, projects map[ProjectID]ProjectUpdate) {
	r.plans = append(r.plans, plansPush{master: master, projects: projects})
}

func (r *recordingUI) OnProjectPreviewUpdate(project ProjectID, plan Plan, result PlanResultUpdate, actions ActionGroups) {
	r.previews = append(r.previews, previewPush{project: project, plan: plan, result: result, actions: actions})
}

// drawRoad starts a road in project and commits one point per entry of rest.
func drawRoad(m *PlanManager, project ProjectID, machine MachineID, start geom.Point, rest ...geom.Point) GestureID {
	id := NewGestureID()
	m.StartNewGesture(project, machine, id, NewRoadIntent(1, 1), start)
	for _, p := range rest {
		m.AddControlPoint(project, id, p, true, true)
	}
	m.FinishGesture(machine)
	return id
}
