package uisync

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/plansync/pkg/geom"
	"github.com/astromechza/plansync/pkg/planning"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) (*planning.Actor, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	actor := planning.NewActor(planning.NewPlanManager(planning.WithLogger(quietLogger())), 16)
	go func() {
		_ = actor.Run(ctx)
	}()

	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = NewSession("tester", conn, actor, 64, quietLogger()).Run(r.Context())
	}))
	t.Cleanup(srv.Close)
	return actor, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startClient(t *testing.T, url string) (*Client, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	c, err := Dial(ctx, url, quietLogger())
	require.NoError(t, err)
	go func() {
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() { _ = c.Close() })
	return c, ctx
}

func TestSession_EditAndQuery(t *testing.T) {
	actor, url := startServer(t)
	c, ctx := startClient(t, url)

	project, err := c.NewProject(ctx)
	require.NoError(t, err)

	gesture := planning.NewGestureID()
	intent := planning.NewRoadIntent(1, 1)
	_, err = c.Do(ctx, Request{Op: OpStartNewGesture, Project: project, Gesture: gesture, Intent: &intent, Point: geom.Point{X: 0, Y: 0}})
	require.NoError(t, err)
	_, err = c.Do(ctx, Request{Op: OpAddControlPoint, Project: project, Gesture: gesture, Point: geom.Point{X: 10, Y: 0}, AddToEnd: true, Commit: true})
	require.NoError(t, err)
	_, err = c.Do(ctx, Request{Op: OpFinishGesture})
	require.NoError(t, err)

	require.NoError(t, c.QueryPlans(ctx))
	require.NoError(t, c.QueryPreview(ctx, project))

	var serverPlan planning.Plan
	require.NoError(t, actor.Call(ctx, func(m *planning.PlanManager) {
		p, _ := m.Project(project)
		serverPlan = p.ApplyToWithOngoing(m.Master())
	}))

	c.Mirror(func(mirror *planning.Mirror) {
		require.Contains(t, mirror.Projects, project)
		assert.Len(t, mirror.Projects[project].Steps, 2)
		assert.True(t, serverPlan.Equal(mirror.Previews[project]))
		require.Contains(t, mirror.Results, project)
		assert.Len(t, mirror.Results[project].Prototypes, 1)
		assert.Equal(t, 1, mirror.Actions[project].Count(planning.ActionConstruct))
	})

	_, err = c.Do(ctx, Request{Op: OpImplementProject, Project: project})
	require.NoError(t, err)
	require.NoError(t, c.QueryPlans(ctx))
	c.Mirror(func(mirror *planning.Mirror) {
		assert.NotContains(t, mirror.Projects, project)
		assert.Equal(t, uint64(1), mirror.MasterVersion)
		assert.Equal(t, 1, mirror.MasterPlan().Len())
	})
}

func TestSession_Errors(t *testing.T) {
	_, url := startServer(t)
	c, ctx := startClient(t, url)

	_, err := c.Do(ctx, Request{Op: OpStartNewGesture, Project: planning.NewProjectID(), Gesture: planning.NewGestureID()})
	assert.ErrorIs(t, err, ErrRequestFailed)

	_, err = c.Do(ctx, Request{Op: "teleport"})
	assert.ErrorIs(t, err, ErrRequestFailed)

	_, err = c.Do(ctx, Request{Op: OpImplementProject, Project: planning.NewProjectID()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown project")

	msg, err := c.Do(ctx, Request{Op: OpRemoveProject, Project: planning.NewProjectID()})
	require.NoError(t, err)
	assert.False(t, msg.OK)
}

func TestSession_OutboxNeverBlocks(t *testing.T) {
	s := NewSession("m1", nil, nil, 1, quietLogger())
	s.OnPlansUpdate(planning.HistoryUpdate{Kind: planning.UpdateUnchanged}, nil)
	s.OnPlansUpdate(planning.HistoryUpdate{Kind: planning.UpdateUnchanged}, nil)
	assert.Len(t, s.outbox, 1)
}

func TestSession_RepliesSurviveFullOutbox(t *testing.T) {
	s := NewSession("m1", nil, nil, 1, quietLogger())
	s.OnPlansUpdate(planning.HistoryUpdate{Kind: planning.UpdateUnchanged}, nil)
	s.OnPlansUpdate(planning.HistoryUpdate{Kind: planning.UpdateUnchanged}, nil)
	s.enqueue(Message{Kind: MessageReply, RequestID: 7, OK: true})
	s.enqueue(Message{Kind: MessageError, RequestID: 8, Error: "nope"})

	queued := s.takeOutbox()
	require.Len(t, queued, 3)
	assert.Equal(t, MessagePlansUpdate, queued[0].Kind)
	assert.Equal(t, uint64(7), queued[1].RequestID)
	assert.Equal(t, uint64(8), queued[2].RequestID)

	s.OnPlansUpdate(planning.HistoryUpdate{Kind: planning.UpdateUnchanged}, nil)
	assert.Len(t, s.takeOutbox(), 1, "draining frees room for pushes")
}
