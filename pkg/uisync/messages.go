// Package uisync carries the planning query protocol and editor operations over a
// websocket, one session per observer machine.
package uisync

import (
	"github.com/astromechza/plansync/pkg/geom"
	"github.com/astromechza/plansync/pkg/planning"
)

type Op string

const (
	OpQueryPlans         Op = "query_plans"
	OpQueryPreview       Op = "query_preview"
	OpNewProject         Op = "new_project"
	OpRemoveProject      Op = "remove_project"
	OpImplementProject   Op = "implement_project"
	OpSwitchTo           Op = "switch_to"
	OpStartNewGesture    Op = "start_new_gesture"
	OpFinishGesture      Op = "finish_gesture"
	OpAddControlPoint    Op = "add_control_point"
	OpInsertControlPoint Op = "insert_control_point"
	OpMoveControlPoint   Op = "move_control_point"
	OpSplitGesture       Op = "split_gesture"
	OpSetIntent          Op = "set_intent"
	OpUndo               Op = "undo"
	OpRedo               Op = "redo"
)

// Request is sent by the observer. Only the fields used by Op are read.
type Request struct {
	ID       uint64                  `json:"id,omitempty"`
	Op       Op                      `json:"op"`
	Project  planning.ProjectID      `json:"project"`
	Gesture  planning.GestureID      `json:"gesture"`
	Intent   *planning.GestureIntent `json:"intent,omitempty"`
	Point    geom.Point              `json:"point"`
	Index    int                     `json:"index,omitempty"`
	AddToEnd bool                    `json:"add_to_end,omitempty"`
	Commit   bool                    `json:"commit,omitempty"`
	Finished bool                    `json:"finished,omitempty"`

	KnownMaster   *planning.KnownHistoryState                      `json:"known_master,omitempty"`
	KnownProjects map[planning.ProjectID]planning.KnownProjectState `json:"known_projects,omitempty"`
	KnownResult   *planning.KnownPlanResultState                   `json:"known_result,omitempty"`
}

type MessageKind string

const (
	MessagePlansUpdate   MessageKind = "plans_update"
	MessagePreviewUpdate MessageKind = "preview_update"
	MessageReply         MessageKind = "reply"
	MessageError         MessageKind = "error"
)

// Message is sent by the server. Replies to a request carry its ID and are sent
// after every push the request caused.
type Message struct {
	Kind      MessageKind `json:"kind"`
	RequestID uint64      `json:"request_id,omitempty"`

	Master   *planning.HistoryUpdate                      `json:"master,omitempty"`
	Projects map[planning.ProjectID]planning.ProjectUpdate `json:"projects,omitempty"`

	Project *planning.ProjectID        `json:"project,omitempty"`
	Plan    *planning.Plan             `json:"plan,omitempty"`
	Result  *planning.PlanResultUpdate `json:"result,omitempty"`
	Actions planning.ActionGroups      `json:"actions,omitempty"`

	Gesture *planning.GestureID `json:"gesture,omitempty"`
	OK      bool                `json:"ok,omitempty"`
	Error   string              `json:"error,omitempty"`
}
