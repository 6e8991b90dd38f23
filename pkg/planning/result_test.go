package planning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/plansync/pkg/geom"
)

func zonePlan(id GestureID, points ...geom.Point) Plan {
	return singleGesturePlan(id, NewGesture(points, NewZoneIntent(LandUseResidential)))
}

func countKind(r *PlanResult, kind PrototypeKind) int {
	n := 0
	for _, p := range r.Prototypes {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

func TestCalculateResult_CrossingRoads(t *testing.T) {
	a, b := NewGestureID(), NewGestureID()
	plan := roadPlan(a, pt(0, 0), pt(10, 0)).Merged(roadPlan(b, pt(5, -5), pt(5, 5)))

	result, err := CalculateResult(plan)
	require.NoError(t, err)
	assert.Equal(t, 2, countKind(result, PrototypeRoad))
	require.Equal(t, 1, countKind(result, PrototypeIntersection))

	for _, p := range result.Prototypes {
		if p.Kind == PrototypeIntersection {
			assert.Equal(t, pt(5, 0), p.Center)
			assert.ElementsMatch(t, []GestureID{a, b}, p.Origin)
		}
	}
}

func TestCalculateResult_SkipsUnfinishedGestures(t *testing.T) {
	plan := roadPlan(NewGestureID(), pt(0, 0)).Merged(zonePlan(NewGestureID(), pt(0, 0), pt(1, 1)))
	result, err := CalculateResult(plan)
	require.NoError(t, err)
	assert.Empty(t, result.Prototypes)
}

func TestCalculateResult_Lot(t *testing.T) {
	result, err := CalculateResult(zonePlan(NewGestureID(), pt(0, 0), pt(10, 0), pt(10, 10), pt(0, 10)))
	require.NoError(t, err)
	require.Equal(t, 1, countKind(result, PrototypeLot))
	for _, p := range result.Prototypes {
		assert.InDelta(t, 100.0, p.Area, 1e-9)
		assert.Equal(t, LandUseResidential, p.LandUse)
	}
}

func TestCalculateResult_LeftOver(t *testing.T) {
	zone := NewGestureID()
	_, err := CalculateResult(zonePlan(zone, pt(0, 0), pt(10, 10), pt(10, 0), pt(0, 10)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeftOver))

	var areaErr *AreaError
	require.True(t, errors.As(err, &areaErr))
	assert.Equal(t, zone, areaErr.Gesture)
	assert.Contains(t, areaErr.Detail, "(5.00, 5.00)")
}

func TestCalculateResult_DegenerateArea(t *testing.T) {
	_, err := CalculateResult(zonePlan(NewGestureID(), pt(0, 0), pt(10, 0), pt(20, 0)))
	assert.ErrorIs(t, err, ErrDegenerateArea)
}

func TestCalculateResult_StableIDs(t *testing.T) {
	plan := roadPlan(NewGestureID(), pt(0, 0), pt(10, 0)).Merged(roadPlan(NewGestureID(), pt(5, -5), pt(5, 5)))
	first, err := CalculateResult(plan)
	require.NoError(t, err)
	second, err := CalculateResult(plan.Clone())
	require.NoError(t, err)
	assert.Equal(t, first.SortedIDs(), second.SortedIDs())
}

func TestPlanResult_UpdateFor(t *testing.T) {
	a, b := NewGestureID(), NewGestureID()
	before, err := CalculateResult(roadPlan(a, pt(0, 0), pt(10, 0)))
	require.NoError(t, err)

	full := before.UpdateFor(KnownPlanResultState{})
	require.Equal(t, UpdateChangedCompletely, full.Kind)
	assert.Len(t, full.Result.Prototypes, 1)

	known := before.KnownState()
	assert.Equal(t, UpdateUnchanged, before.UpdateFor(known).Kind)

	after, err := CalculateResult(roadPlan(b, pt(0, 5), pt(10, 5)))
	require.NoError(t, err)
	delta := after.UpdateFor(known)
	require.Equal(t, UpdateDelta, delta.Kind)
	assert.Equal(t, known.Prototypes, delta.PrototypesToDrop)
	require.Len(t, delta.NewPrototypes, 1)
	assert.Equal(t, []GestureID{b}, delta.NewPrototypes[0].Origin)
}
