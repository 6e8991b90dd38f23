package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/automerge/automerge-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/plansync/pkg/geom"
	"github.com/astromechza/plansync/pkg/planning"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleManager(t *testing.T) *planning.PlanManager {
	t.Helper()
	m := planning.NewPlanManager(planning.WithLogger(quietLogger()))
	implemented := m.NewProject()
	road := planning.NewGestureID()
	m.StartNewGesture(implemented, "m1", road, planning.NewRoadIntent(1, 1), geom.Point{X: 0, Y: 0})
	m.AddControlPoint(implemented, road, geom.Point{X: 10, Y: 0}, true, true)
	require.NoError(t, m.ImplementProject(implemented))

	open := m.NewProject()
	zone := planning.NewGestureID()
	m.StartNewGesture(open, "m1", zone, planning.NewZoneIntent(planning.LandUseAgricultural), geom.Point{X: 0, Y: 5})
	m.AddControlPoint(open, zone, geom.Point{X: 10, Y: 5}, true, true)
	m.AddControlPoint(open, zone, geom.Point{X: 10, Y: 15}, true, false)
	return m
}

func TestSnapshotDocRoundTrip(t *testing.T) {
	m := sampleManager(t)
	doc := automerge.New()

	committed, err := EncodeSnapshot(doc, m.Snapshot())
	require.NoError(t, err)
	assert.True(t, committed)

	committed, err = EncodeSnapshot(doc, m.Snapshot())
	require.NoError(t, err)
	assert.False(t, committed, "an unchanged snapshot is not committed again")

	loaded, err := automerge.Load(doc.Save())
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(loaded)
	require.NoError(t, err)

	restored := planning.NewPlanManager(planning.WithLogger(quietLogger()))
	restored.Restore(decoded)
	assert.True(t, m.Master().ResolveWithOngoing().Equal(restored.Master().ResolveWithOngoing()))
	assert.ElementsMatch(t, m.ProjectIDs(), restored.ProjectIDs())
	for _, id := range m.ProjectIDs() {
		want, _ := m.Project(id)
		got, _ := restored.Project(id)
		assert.Equal(t, want.KnownState(), got.KnownState())
		assert.True(t, want.ApplyToWithOngoing(m.Master()).Equal(got.ApplyToWithOngoing(restored.Master())))
	}

	version, err := MasterVersion(loaded)
	require.NoError(t, err)
	assert.Equal(t, m.Master().Version, version)
}

func TestDecodeEmptyDoc(t *testing.T) {
	snapshot, err := DecodeSnapshot(automerge.New())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snapshot.Master.Version)
	assert.Empty(t, snapshot.Projects)
}

func TestDecodeUnknownFormat(t *testing.T) {
	doc := automerge.New()
	require.NoError(t, doc.Path(formatKey).Set(int64(99)))
	_, err := DecodeSnapshot(doc)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "plans.sqlite3"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Init(ctx, "default"))
	require.NoError(t, s.Init(ctx, "default"))
	ids, err := s.StoreIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, ids)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrStoreNotFound)

	doc, err := s.Load(ctx, "default")
	require.NoError(t, err)
	_, err = EncodeSnapshot(doc, sampleManager(t).Snapshot())
	require.NoError(t, err)

	updated, err := s.Save(ctx, "default", doc)
	require.NoError(t, err)
	assert.True(t, updated)
	updated, err = s.Save(ctx, "default", doc)
	require.NoError(t, err)
	assert.False(t, updated)

	reloaded, err := s.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, doc.Heads(), reloaded.Heads())
	snapshot, err := DecodeSnapshot(reloaded)
	require.NoError(t, err)
	assert.Len(t, snapshot.Projects, 1)
}

func TestDecodeRejectsProjectPositionOutsideSteps(t *testing.T) {
	snapshot := sampleManager(t).Snapshot()
	for _, project := range snapshot.Projects {
		project.Position = len(project.Steps) + 3
	}
	doc := automerge.New()
	_, err := EncodeSnapshot(doc, snapshot)
	require.NoError(t, err)

	_, err = DecodeSnapshot(doc)
	assert.ErrorIs(t, err, planning.ErrInvalidProject)
}
