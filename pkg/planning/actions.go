package planning

type ActionKind string

const (
	ActionConstruct ActionKind = "construct"
	ActionMorph     ActionKind = "morph"
	ActionDestruct  ActionKind = "destruct"
)

// Action is one construction step. For a morph, Prototype is replaced by Into.
type Action struct {
	Kind      ActionKind  `json:"kind"`
	Prototype PrototypeID `json:"prototype"`
	Into      PrototypeID `json:"into,omitempty"`
}

// ActionGroups are executed group by group: every action of a group must finish
// before the next group starts.
type ActionGroups [][]Action

func (g ActionGroups) Len() int {
	n := 0
	for _, group := range g {
		n += len(group)
	}
	return n
}

func (g ActionGroups) Count(kind ActionKind) int {
	n := 0
	for _, group := range g {
		for _, action := range group {
			if action.Kind == kind {
				n++
			}
		}
	}
	return n
}

// ActionsTo returns the minimal actions that turn r into other. Prototypes present
// in both are left alone; a removed and an added prototype of the same kind and
// origin become one morph.
func (r *PlanResult) ActionsTo(other *PlanResult) ActionGroups {
	var removed, added []PrototypeID
	for _, id := range r.SortedIDs() {
		if _, ok := other.Prototypes[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range other.SortedIDs() {
		if _, ok := r.Prototypes[id]; !ok {
			added = append(added, id)
		}
	}

	var destructs, morphs, constructs []Action
	morphed := make(map[PrototypeID]bool)
	for _, id := range added {
		target := other.Prototypes[id]
		matched := false
		for _, oldID := range removed {
			if morphed[oldID] || !target.morphableFrom(r.Prototypes[oldID]) {
				continue
			}
			morphed[oldID] = true
			morphs = append(morphs, Action{Kind: ActionMorph, Prototype: oldID, Into: id})
			matched = true
			break
		}
		if !matched {
			constructs = append(constructs, Action{Kind: ActionConstruct, Prototype: id})
		}
	}
	for _, id := range removed {
		if !morphed[id] {
			destructs = append(destructs, Action{Kind: ActionDestruct, Prototype: id})
		}
	}

	groups := ActionGroups{}
	for _, group := range [][]Action{destructs, morphs, constructs} {
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}
