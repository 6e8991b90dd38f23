package planning

import (
	"context"
	"errors"
)

var ErrActorStopped = errors.New("planning actor stopped")

// Actor serialises every call against one PlanManager. Messages run one at a time
// on the goroutine executing Run, so the manager and its caches need no locking.
type Actor struct {
	manager *PlanManager
	inbox   chan func(*PlanManager)
	done    chan struct{}
}

func NewActor(manager *PlanManager, backlog int) *Actor {
	return &Actor{
		manager: manager,
		inbox:   make(chan func(*PlanManager), backlog),
		done:    make(chan struct{}),
	}
}

// Run handles messages until ctx is cancelled.
func (a *Actor) Run(ctx context.Context) error {
	defer close(a.done)
	for {
		select {
		case msg := <-a.inbox:
			msg(a.manager)
		case <-ctx.Done():
			return nil
		}
	}
}

// Send enqueues fn without waiting for it to run.
func (a *Actor) Send(ctx context.Context, fn func(*PlanManager)) error {
	select {
	case <-a.done:
		return ErrActorStopped
	default:
	}
	select {
	case a.inbox <- fn:
		return nil
	case <-a.done:
		return ErrActorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the actor and waits until it has finished.
func (a *Actor) Call(ctx context.Context, fn func(*PlanManager)) error {
	finished := make(chan struct{})
	if err := a.Send(ctx, func(m *PlanManager) {
		defer close(finished)
		fn(m)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-a.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrActorStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
