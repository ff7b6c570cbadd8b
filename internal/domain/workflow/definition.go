package workflow

import (
	"context"
	"fmt"
	"sort"
)

// Transition is one edge of a workflow definition
type Transition struct {
	Action    Action `json:"action"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Roles     []Role `json:"roles,omitempty"`
	OwnerOnly bool   `json:"owner_only,omitempty"`
	Guarded   bool   `json:"guarded,omitempty"`

	roleSet map[Role]bool
	guard   GuardFunc
}

// Subject carries the record facts edge resolution depends on
type Subject struct {
	OwnerID   string
	ManagerID string
	Payload   map[string]interface{}
}

type editRule struct {
	roles     map[Role]bool
	ownerOnly bool
}

// Definition is the immutable description of one workflow: its states, edges and policies.
// All methods are pure.
type Definition struct {
	wfType       Type
	initial      State
	statuses     map[Status]bool
	stages       map[Stage]bool
	terminal     map[State]bool
	transitions  map[State]map[Action][]Transition
	creators     map[Role]bool
	ownerCreates bool
	singleActive bool
	reopenable   map[State]bool
	editable     map[State][]editRule
	protected    map[string]bool
	seeded       map[string]bool
}

// Type returns the workflow type
func (d *Definition) Type() Type {
	return d.wfType
}

// Initial returns the state new records start in
func (d *Definition) Initial() State {
	return d.initial
}

// IsKnown returns true if the state only uses declared statuses and stages
func (d *Definition) IsKnown(state State) bool {
	if !d.statuses[state.Status] {
		return false
	}
	if state.Stage == StageNone {
		return len(d.stages) == 0
	}
	return d.stages[state.Stage]
}

// IsTerminal returns true if the state locks the record
func (d *Definition) IsTerminal(state State) bool {
	return d.terminal[state]
}

// PermittedActions returns the actions actor may take from state, sorted by name.
// Guards are not evaluated.
func (d *Definition) PermittedActions(state State, actor Actor, subject Subject) []Action {
	if d.terminal[state] {
		return []Action{}
	}

	seen := make(map[Action]bool)
	for action, edges := range d.transitions[state] {
		for _, t := range edges {
			if t.allows(actor, subject) {
				seen[action] = true
				break
			}
		}
	}

	actions := make([]Action, 0, len(seen))
	for action := range seen {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Resolve finds the edge actor may take for action from state.
// It returns ErrIllegalTransition when no edge exists, ErrUnauthorizedActor when
// edges exist but none admits the actor, and ErrValidation when the guard rejects.
func (d *Definition) Resolve(ctx context.Context, state State, action Action, actor Actor, subject Subject) (Transition, error) {
	edges := d.transitions[state][action]
	if len(edges) == 0 || d.terminal[state] {
		return Transition{}, fmt.Errorf("%w: %s cannot %s from %s", ErrIllegalTransition, d.wfType, action, state)
	}

	for _, t := range edges {
		if !t.allows(actor, subject) {
			continue
		}
		if t.guard != nil {
			if err := t.guard(ctx, subject.Payload); err != nil {
				return Transition{}, fmt.Errorf("%w: %s %s: %v", ErrValidation, d.wfType, action, err)
			}
		}
		return t, nil
	}

	return Transition{}, fmt.Errorf("%w: %s %s may not %s from %s", ErrUnauthorizedActor, actor.Role, actor.UserID, action, state)
}

// CheckCreate verifies that actor may create a record for subjectID
func (d *Definition) CheckCreate(actor Actor, subjectID string) error {
	if len(d.creators) > 0 && !d.creators[actor.Role] {
		return fmt.Errorf("%w: %s may not create %s", ErrUnauthorizedActor, actor.Role, d.wfType)
	}
	if d.ownerCreates && actor.UserID != subjectID {
		return fmt.Errorf("%w: %s records are created by their subject", ErrUnauthorizedActor, d.wfType)
	}
	return nil
}

// SingleActive reports whether a subject may hold only one open record at a time
func (d *Definition) SingleActive() bool {
	return d.singleActive
}

// Occupies reports whether a record in state blocks a new record for the same subject
func (d *Definition) Occupies(state State) bool {
	return d.singleActive && !d.reopenable[state]
}

// CanEdit reports whether actor may change the payload in state.
// Owner-only rules admit the subject; every other rule follows the reviewer checks of transitions.
func (d *Definition) CanEdit(state State, actor Actor, subject Subject) bool {
	if d.terminal[state] {
		return false
	}
	for _, rule := range d.editable[state] {
		if len(rule.roles) > 0 && !rule.roles[actor.Role] {
			continue
		}
		if rule.ownerOnly {
			if actor.UserID == subject.OwnerID {
				return true
			}
			continue
		}
		if reviews(actor, subject) {
			return true
		}
	}
	return false
}

// CheckFields rejects client patches that touch system-managed fields
func (d *Definition) CheckFields(patch map[string]interface{}) error {
	for key := range patch {
		if d.protected[key] {
			return fmt.Errorf("%w: field %q is managed by the system", ErrValidation, key)
		}
	}
	return nil
}

// CheckCreateFields is CheckFields for the payload of a new record, which may seed some protected fields
func (d *Definition) CheckCreateFields(payload map[string]interface{}) error {
	for key := range payload {
		if d.protected[key] && !d.seeded[key] {
			return fmt.Errorf("%w: field %q is managed by the system", ErrValidation, key)
		}
	}
	return nil
}

// Transitions returns every edge, ordered by source state then action
func (d *Definition) Transitions() []Transition {
	var all []Transition
	for _, byAction := range d.transitions {
		for _, edges := range byAction {
			all = append(all, edges...)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].From != all[j].From {
			return all[i].From.String() < all[j].From.String()
		}
		if all[i].Action != all[j].Action {
			return all[i].Action < all[j].Action
		}
		return all[i].To.String() < all[j].To.String()
	})
	return all
}

// Description is the serialisable view of a definition
type Description struct {
	Type        Type         `json:"type"`
	Initial     State        `json:"initial"`
	Terminal    []State      `json:"terminal"`
	Transitions []Transition `json:"transitions"`
}

// Describe returns the serialisable view of the definition
func (d *Definition) Describe() Description {
	terminal := make([]State, 0, len(d.terminal))
	for s := range d.terminal {
		terminal = append(terminal, s)
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].String() < terminal[j].String() })

	return Description{
		Type:        d.wfType,
		Initial:     d.initial,
		Terminal:    terminal,
		Transitions: d.Transitions(),
	}
}

// allows checks role, ownership and reviewer assignment. Reviewers never act on their own record.
func (t Transition) allows(actor Actor, subject Subject) bool {
	if len(t.roleSet) > 0 && !t.roleSet[actor.Role] {
		return false
	}
	if t.OwnerOnly {
		return actor.UserID == subject.OwnerID
	}
	return reviews(actor, subject)
}

// reviews reports whether actor may act on the subject's record as a reviewer:
// never on their own record, and as a manager only when assigned
func reviews(actor Actor, subject Subject) bool {
	if actor.UserID == subject.OwnerID {
		return false
	}
	if actor.Role == RoleManager && subject.ManagerID != "" && actor.UserID != subject.ManagerID {
		return false
	}
	return true
}
