package uisync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/astromechza/plansync/pkg/planning"
)

var errMissingIntent = errors.New("missing intent")

// Session serves one observer machine over a websocket. It implements
// planning.PlanningUI so the manager can push updates to it from the actor.
type Session struct {
	machine planning.MachineID
	conn    *websocket.Conn
	actor   *planning.Actor
	logger  *slog.Logger

	// outbox holds messages in send order. At most outboxSize of them are pushes;
	// replies are always queued.
	lock       sync.Mutex
	outbox     []Message
	pushes     int
	outboxSize int
	ready      chan struct{}
}

var _ planning.PlanningUI = (*Session)(nil)

func NewSession(machine planning.MachineID, conn *websocket.Conn, actor *planning.Actor, outboxSize int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		machine: machine,
		conn:    conn,
		actor:      actor,
		logger:     logger.With("machine", machine),
		outboxSize: outboxSize,
		ready:      make(chan struct{}, 1),
	}
}

// enqueue never blocks: it runs inside actor turns. Pushes beyond the outbox size are
// dropped and recovered by the observer's next query since its digests did not
// advance. Replies are never dropped so a waiting request always completes.
func (s *Session) enqueue(msg Message) {
	s.lock.Lock()
	if msg.Kind == MessagePlansUpdate || msg.Kind == MessagePreviewUpdate {
		if s.pushes >= s.outboxSize {
			s.lock.Unlock()
			droppedTotal.Inc()
			s.logger.Warn("outbox full, dropping message", "kind", msg.Kind)
			return
		}
		s.pushes++
	}
	s.outbox = append(s.outbox, msg)
	s.lock.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Session) takeOutbox() []Message {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := s.outbox
	s.outbox = nil
	s.pushes = 0
	return out
}

func (s *Session) OnPlansUpdate(master planning.HistoryUpdate, projects map[planning.ProjectID]planning.ProjectUpdate) {
	s.enqueue(Message{Kind: MessagePlansUpdate, Master: &master, Projects: projects})
}

func (s *Session) OnProjectPreviewUpdate(project planning.ProjectID, plan planning.Plan, result planning.PlanResultUpdate, actions planning.ActionGroups) {
	s.enqueue(Message{Kind: MessagePreviewUpdate, Project: &project, Plan: &plan, Result: &result, Actions: actions})
}

// Run reads requests and writes messages until the connection fails or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	sessionsOpen.Inc()
	defer sessionsOpen.Dec()
	s.logger.Info("session started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		defer s.conn.Close()
		for {
			if err := s.readAndDispatch(ctx); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to serve requests: %w", err)
			}
		}
	})

	g.Go(func() error {
		defer s.conn.Close()
		for {
			select {
			case <-s.ready:
				for _, msg := range s.takeOutbox() {
					if err := s.conn.WriteJSON(msg); err != nil {
						return fmt.Errorf("failed to write message: %w", err)
					}
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	err := g.Wait()
	s.logger.Info("session finished", "err", err)
	return err
}

func (s *Session) readAndDispatch(ctx context.Context) error {
	mt, p, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	if mt != websocket.TextMessage {
		return nil
	}
	var req Request
	if err := json.Unmarshal(p, &req); err != nil {
		s.enqueue(Message{Kind: MessageError, Error: fmt.Sprintf("failed to decode request: %s", err)})
		return nil
	}
	requestsTotal.WithLabelValues(string(req.Op)).Inc()
	if err := s.actor.Send(ctx, func(m *planning.PlanManager) {
		s.enqueue(s.handle(m, req))
	}); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", req.Op, err)
	}
	return nil
}

// handle applies req to the manager and returns the reply. Pushes caused by queries
// are enqueued before the reply.
func (s *Session) handle(m *planning.PlanManager, req Request) Message {
	reply := Message{Kind: MessageReply, RequestID: req.ID, OK: true}
	fail := func(err error) Message {
		return Message{Kind: MessageError, RequestID: req.ID, Error: err.Error()}
	}

	switch req.Op {
	case OpQueryPlans:
		known := planning.KnownHistoryState{}
		if req.KnownMaster != nil {
			known = *req.KnownMaster
		}
		m.GetAllPlans(s, known, req.KnownProjects)
	case OpQueryPreview:
		known := planning.KnownPlanResultState{}
		if req.KnownResult != nil {
			known = *req.KnownResult
		}
		m.GetProjectPreviewUpdate(s, s.machine, req.Project, known)
	case OpNewProject:
		id := m.NewProject()
		reply.Project = &id
	case OpRemoveProject:
		reply.OK = m.RemoveProject(req.Project)
	case OpImplementProject:
		if err := m.ImplementProject(req.Project); err != nil {
			return fail(err)
		}
	case OpSwitchTo:
		m.SwitchTo(s.machine, req.Project)
	case OpStartNewGesture:
		if req.Intent == nil {
			return fail(fmt.Errorf("failed to start gesture: %w", errMissingIntent))
		}
		m.StartNewGesture(req.Project, s.machine, req.Gesture, *req.Intent, req.Point)
	case OpFinishGesture:
		m.FinishGesture(s.machine)
	case OpAddControlPoint:
		m.AddControlPoint(req.Project, req.Gesture, req.Point, req.AddToEnd, req.Commit)
	case OpInsertControlPoint:
		m.InsertControlPoint(req.Project, req.Gesture, req.Point, req.Commit)
	case OpMoveControlPoint:
		m.MoveControlPoint(req.Project, req.Gesture, req.Index, req.Point, req.Finished)
	case OpSplitGesture:
		second, ok := m.SplitGesture(req.Project, req.Gesture, req.Point, req.Commit)
		reply.OK = ok
		if ok {
			reply.Gesture = &second
		}
	case OpSetIntent:
		if req.Intent == nil {
			return fail(fmt.Errorf("failed to set intent: %w", errMissingIntent))
		}
		m.SetIntent(req.Project, req.Gesture, *req.Intent, req.Finished)
	case OpUndo:
		m.Undo(req.Project)
	case OpRedo:
		m.Redo(req.Project)
	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
	return reply
}
