package uisync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/astromechza/plansync/pkg/planning"
)

var ErrRequestFailed = errors.New("request failed")

// Client is the observer side of a Session. Pushed updates are applied to a
// planning.Mirror, and query requests are built from the mirror's digests.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeLock sync.Mutex
	nextID    atomic.Uint64

	lock    sync.Mutex
	mirror  *planning.Mirror
	pending map[uint64]chan Message
	closed  chan struct{}
}

func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &Client{
		conn:    conn,
		logger:  logger,
		mirror:  planning.NewMirror(),
		pending: map[uint64]chan Message{},
		closed:  make(chan struct{}),
	}, nil
}

func (c *Client) Close() error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Run receives messages until the connection closes. It must be running for Do to
// see replies.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.closed)
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		c.receive(msg)
	}
}

func (c *Client) receive(msg Message) {
	c.lock.Lock()
	defer c.lock.Unlock()
	switch msg.Kind {
	case MessagePlansUpdate:
		if msg.Master != nil {
			c.mirror.OnPlansUpdate(*msg.Master, msg.Projects)
		}
	case MessagePreviewUpdate:
		if msg.Project != nil && msg.Plan != nil && msg.Result != nil {
			c.mirror.OnProjectPreviewUpdate(*msg.Project, *msg.Plan, *msg.Result, msg.Actions)
		}
	case MessageReply, MessageError:
		if waiter, ok := c.pending[msg.RequestID]; ok {
			delete(c.pending, msg.RequestID)
			waiter <- msg
		} else if msg.Kind == MessageError {
			c.logger.Error("server error", "err", msg.Error)
		}
	}
}

// Do sends req and waits for its reply.
func (c *Client) Do(ctx context.Context, req Request) (Message, error) {
	req.ID = c.nextID.Add(1)
	waiter := make(chan Message, 1)
	c.lock.Lock()
	c.pending[req.ID] = waiter
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		delete(c.pending, req.ID)
		c.lock.Unlock()
	}()

	raw, err := json.Marshal(req)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s: %w", req.Op, err)
	}
	c.writeLock.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, raw)
	c.writeLock.Unlock()
	if err != nil {
		return Message{}, fmt.Errorf("failed to write %s: %w", req.Op, err)
	}

	select {
	case msg := <-waiter:
		if msg.Kind == MessageError {
			return msg, fmt.Errorf("%s: %w: %s", req.Op, ErrRequestFailed, msg.Error)
		}
		return msg, nil
	case <-c.closed:
		return Message{}, fmt.Errorf("failed to wait for %s: connection closed", req.Op)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// QueryPlans brings the mirror's master and projects up to date.
func (c *Client) QueryPlans(ctx context.Context) error {
	c.lock.Lock()
	known := c.mirror.KnownMaster()
	projects := c.mirror.KnownProjects()
	c.lock.Unlock()
	_, err := c.Do(ctx, Request{Op: OpQueryPlans, KnownMaster: &known, KnownProjects: projects})
	return err
}

// QueryPreview brings the mirror's preview of project up to date.
func (c *Client) QueryPreview(ctx context.Context, project planning.ProjectID) error {
	c.lock.Lock()
	known := c.mirror.KnownResult(project)
	c.lock.Unlock()
	_, err := c.Do(ctx, Request{Op: OpQueryPreview, Project: project, KnownResult: &known})
	return err
}

func (c *Client) NewProject(ctx context.Context) (planning.ProjectID, error) {
	msg, err := c.Do(ctx, Request{Op: OpNewProject})
	if err != nil {
		return planning.ProjectID{}, err
	}
	if msg.Project == nil {
		return planning.ProjectID{}, fmt.Errorf("new_project: %w: no project id in reply", ErrRequestFailed)
	}
	return *msg.Project, nil
}

// Mirror runs fn with exclusive access to the client's mirror.
func (c *Client) Mirror(fn func(mirror *planning.Mirror)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	fn(c.mirror)
}
