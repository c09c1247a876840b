package gate

import (
	"forwardlab/internal/lesson"
	"forwardlab/internal/model"
)

type Status string

const (
	StatusLocked    Status = "locked"
	StatusPending   Status = "unlocked-pending"
	StatusCompleted Status = "completed"
)

// State is the set of completed steps; every other status is derived from it.
type State struct {
	completed map[model.StepID]bool
}

// InitialState marks every source step completed.
func InitialState(g *lesson.Graph) State {
	s := State{completed: make(map[model.StepID]bool)}
	for _, step := range g.Steps() {
		if step.Kind == model.StepKindSource {
			s.completed[step.ID] = true
		}
	}
	return s
}

func (s State) IsCompleted(id model.StepID) bool {
	return s.completed[id]
}

func (s State) with(id model.StepID) State {
	next := State{completed: make(map[model.StepID]bool, len(s.completed)+1)}
	for k, v := range s.completed {
		next.completed[k] = v
	}
	next.completed[id] = true
	return next
}

type StepStatus struct {
	ID       model.StepID `json:"id"`
	Status   Status       `json:"status"`
	Editable bool         `json:"editable"`
}

// Snapshot is a read-only view of a State against its graph.
type Snapshot struct {
	Completed []model.StepID `json:"completed"`
	Steps     []StepStatus   `json:"steps"`
	// Active is the last completed step in lesson order and Progress its index.
	Active   model.StepID `json:"active"`
	Progress int          `json:"progress"`
	Finished bool         `json:"finished"`
}

// StatusOf applies the gating rule to one step.
func StatusOf(g *lesson.Graph, s State, id model.StepID) Status {
	if s.IsCompleted(id) {
		return StatusCompleted
	}
	requires := g.Requires(id)
	if requires != "" && s.IsCompleted(requires) {
		return StatusPending
	}
	return StatusLocked
}

// Derive computes every step's status from the completed set.
func Derive(g *lesson.Graph, s State) Snapshot {
	order := g.Order()
	snap := Snapshot{
		Completed: make([]model.StepID, 0, len(order)),
		Steps:     make([]StepStatus, 0, len(order)),
		Progress:  -1,
		Finished:  len(order) > 0,
	}
	for i, id := range order {
		status := StatusOf(g, s, id)
		snap.Steps = append(snap.Steps, StepStatus{
			ID:       id,
			Status:   status,
			Editable: status == StatusPending,
		})
		if status == StatusCompleted {
			snap.Completed = append(snap.Completed, id)
			snap.Active = id
			snap.Progress = i
		} else {
			snap.Finished = false
		}
	}
	return snap
}

// Editable returns the ids a learner may currently submit.
func (s Snapshot) Editable() []model.StepID {
	var out []model.StepID
	for _, step := range s.Steps {
		if step.Editable {
			out = append(out, step.ID)
		}
	}
	return out
}

func (s Snapshot) StatusOf(id model.StepID) (Status, bool) {
	for _, step := range s.Steps {
		if step.ID == id {
			return step.Status, true
		}
	}
	return "", false
}
