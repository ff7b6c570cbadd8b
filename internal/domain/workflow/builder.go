package workflow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition may proceed for the given record payload.
// A non-nil error rejects the transition as a validation failure.
type GuardFunc func(ctx context.Context, payload map[string]interface{}) error

// DefinitionBuilder builds an immutable workflow definition
type DefinitionBuilder interface {
	// Statuses declares the closed set of statuses
	Statuses(statuses ...Status) DefinitionBuilder

	// Stages declares the closed set of stages for staged workflows
	Stages(stages ...Stage) DefinitionBuilder

	// Initial sets the state new records start in
	Initial(state State) DefinitionBuilder

	// Terminal marks states that lock the record
	Terminal(states ...State) DefinitionBuilder

	// CreatedBy limits which roles may create records. No roles means any role.
	CreatedBy(roles ...Role) DefinitionBuilder

	// OwnerCreates requires the creator to be the record subject
	OwnerCreates() DefinitionBuilder

	// SingleActive allows one record per subject unless the prior one sits in a reopen state
	SingleActive(reopenFrom ...State) DefinitionBuilder

	// EditableIn permits payload edits in state for the given roles
	EditableIn(state State, ownerOnly bool, roles ...Role) DefinitionBuilder

	// Protect marks payload fields that only the system may write
	Protect(fields ...string) DefinitionBuilder

	// SeededOnCreate lets clients supply protected fields when creating a record
	SeededOnCreate(fields ...string) DefinitionBuilder

	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build returns the finished definition
	Build() *Definition
}

// StateConfiguration configures outgoing edges of one state
type StateConfiguration interface {
	// Permit allows roles to take action from the state to the target
	Permit(action Action, to State, roles ...Role) StateConfiguration

	// PermitIf is Permit with a guard evaluated against the payload
	PermitIf(action Action, to State, guard GuardFunc, roles ...Role) StateConfiguration

	// PermitOwner allows only the record subject to take the action
	PermitOwner(action Action, to State, roles ...Role) StateConfiguration

	// PermitOwnerIf is PermitOwner with a guard evaluated against the payload
	PermitOwnerIf(action Action, to State, guard GuardFunc, roles ...Role) StateConfiguration
}

type stateConfig struct {
	builder *definitionBuilder
	from    State
}

type definitionBuilder struct {
	def *Definition
}

// NewBuilder creates a definition builder for a workflow type
func NewBuilder(wfType Type) DefinitionBuilder {
	return &definitionBuilder{
		def: &Definition{
			wfType:      wfType,
			statuses:    make(map[Status]bool),
			stages:      make(map[Stage]bool),
			terminal:    make(map[State]bool),
			transitions: make(map[State]map[Action][]Transition),
			creators:    make(map[Role]bool),
			reopenable:  make(map[State]bool),
			editable:    make(map[State][]editRule),
			protected:   make(map[string]bool),
			seeded:      make(map[string]bool),
		},
	}
}

func (b *definitionBuilder) Statuses(statuses ...Status) DefinitionBuilder {
	for _, s := range statuses {
		b.def.statuses[s] = true
	}
	return b
}

func (b *definitionBuilder) Stages(stages ...Stage) DefinitionBuilder {
	for _, s := range stages {
		b.def.stages[s] = true
	}
	return b
}

func (b *definitionBuilder) Initial(state State) DefinitionBuilder {
	b.mustKnow(state)
	b.def.initial = state
	return b
}

func (b *definitionBuilder) Terminal(states ...State) DefinitionBuilder {
	for _, s := range states {
		b.mustKnow(s)
		b.def.terminal[s] = true
	}
	return b
}

func (b *definitionBuilder) CreatedBy(roles ...Role) DefinitionBuilder {
	for _, r := range roles {
		b.def.creators[r] = true
	}
	return b
}

func (b *definitionBuilder) OwnerCreates() DefinitionBuilder {
	b.def.ownerCreates = true
	return b
}

func (b *definitionBuilder) SingleActive(reopenFrom ...State) DefinitionBuilder {
	b.def.singleActive = true
	for _, s := range reopenFrom {
		b.mustKnow(s)
		b.def.reopenable[s] = true
	}
	return b
}

func (b *definitionBuilder) EditableIn(state State, ownerOnly bool, roles ...Role) DefinitionBuilder {
	b.mustKnow(state)
	b.def.editable[state] = append(b.def.editable[state], editRule{
		roles:     roleSet(roles),
		ownerOnly: ownerOnly,
	})
	return b
}

func (b *definitionBuilder) Protect(fields ...string) DefinitionBuilder {
	for _, f := range fields {
		b.def.protected[f] = true
	}
	return b
}

func (b *definitionBuilder) SeededOnCreate(fields ...string) DefinitionBuilder {
	for _, f := range fields {
		if !b.def.protected[f] {
			panic(fmt.Sprintf("workflow %s: seeded field %q is not protected", b.def.wfType, f))
		}
		b.def.seeded[f] = true
	}
	return b
}

// Configure returns a state configuration for the given state
func (b *definitionBuilder) Configure(state State) StateConfiguration {
	b.mustKnow(state)
	if _, exists := b.def.transitions[state]; !exists {
		b.def.transitions[state] = make(map[Action][]Transition)
	}
	return &stateConfig{builder: b, from: state}
}

// Build validates the definition and returns it. The builder must not be reused.
func (b *definitionBuilder) Build() *Definition {
	d := b.def
	if d.initial.Status == "" {
		panic(fmt.Sprintf("workflow %s: initial state not set", d.wfType))
	}
	for state := range d.terminal {
		if len(d.transitions[state]) > 0 {
			panic(fmt.Sprintf("workflow %s: terminal state %s has outgoing edges", d.wfType, state))
		}
	}
	b.def = nil
	return d
}

// mustKnow panics when a state uses an undeclared status or stage
func (b *definitionBuilder) mustKnow(state State) {
	if !b.def.IsKnown(state) {
		panic(fmt.Sprintf("workflow %s: invalid state: %s", b.def.wfType, state))
	}
}

// Permit allows roles to take action from the state to the target
func (c *stateConfig) Permit(action Action, to State, roles ...Role) StateConfiguration {
	return c.add(Transition{Action: action, To: to, Roles: roles})
}

// PermitIf allows roles to take action if the guard passes
func (c *stateConfig) PermitIf(action Action, to State, guard GuardFunc, roles ...Role) StateConfiguration {
	return c.add(Transition{Action: action, To: to, Roles: roles, Guarded: guard != nil, guard: guard})
}

// PermitOwner allows only the subject of the record to take the action
func (c *stateConfig) PermitOwner(action Action, to State, roles ...Role) StateConfiguration {
	return c.add(Transition{Action: action, To: to, Roles: roles, OwnerOnly: true})
}

// PermitOwnerIf allows only the subject to take the action if the guard passes
func (c *stateConfig) PermitOwnerIf(action Action, to State, guard GuardFunc, roles ...Role) StateConfiguration {
	return c.add(Transition{Action: action, To: to, Roles: roles, OwnerOnly: true, Guarded: guard != nil, guard: guard})
}

func (c *stateConfig) add(t Transition) StateConfiguration {
	c.builder.mustKnow(t.To)
	if action := t.Action; action == "" || action == ActionUpdate {
		panic(fmt.Sprintf("workflow %s: invalid action %q", c.builder.def.wfType, action))
	}
	t.From = c.from
	t.roleSet = roleSet(t.Roles)
	edges := c.builder.def.transitions[c.from]
	edges[t.Action] = append(edges[t.Action], t)
	return c
}

func roleSet(roles []Role) map[Role]bool {
	set := make(map[Role]bool, len(roles))
	for _, r := range roles {
		if !r.IsValid() {
			panic(fmt.Sprintf("invalid role: %s", r))
		}
		set[r] = true
	}
	return set
}
