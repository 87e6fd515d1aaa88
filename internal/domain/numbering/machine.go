package numbering

import (
	"context"

	"github.com/looplab/fsm"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
)

// Transition events. Event names are part of the metadata API surface.
const (
	EventSubmit   = "submit"   // DRAFT -> PENDING, allocates an official number
	EventComplete = "complete" // PENDING -> COMPLETED
	EventCancel   = "cancel"   // PENDING -> CANCELED
	EventRevert   = "revert"   // PENDING -> DRAFT, releases the number
)

// Action is the numbering side effect a transition requires.
type Action string

const (
	// ActionNone - the transition does not touch the number.
	ActionNone Action = "NONE"
	// ActionAllocate - the document must receive an official bare number.
	ActionAllocate Action = "ALLOCATE"
	// ActionRelease - the document's bare number returns to the pool and the
	// document falls back to a draft placeholder.
	ActionRelease Action = "RELEASE"
)

// Plan is a validated transition: the event that performs it and the
// numbering action it entails.
type Plan struct {
	Kind   entity.Kind
	Event  string
	From   entity.Status
	To     entity.Status
	Action Action
}

// Machine validates status transitions per document kind. Each kind owns its
// transition table; today the three tables are identical, but kinds that need
// divergent rules later (e.g. quotes without CANCELED) only touch their table.
type Machine struct {
	tables  map[entity.Kind][]fsm.EventDesc
	actions map[string]Action
}

// NewMachine builds the per-kind transition tables.
func NewMachine() *Machine {
	m := &Machine{
		tables: make(map[entity.Kind][]fsm.EventDesc, len(entity.Kinds())),
		actions: map[string]Action{
			EventSubmit:   ActionAllocate,
			EventComplete: ActionNone,
			EventCancel:   ActionNone,
			EventRevert:   ActionRelease,
		},
	}
	for _, kind := range entity.Kinds() {
		m.tables[kind] = []fsm.EventDesc{
			{Name: EventSubmit, Src: []string{string(entity.StatusDraft)}, Dst: string(entity.StatusPending)},
			{Name: EventComplete, Src: []string{string(entity.StatusPending)}, Dst: string(entity.StatusCompleted)},
			{Name: EventCancel, Src: []string{string(entity.StatusPending)}, Dst: string(entity.StatusCanceled)},
			{Name: EventRevert, Src: []string{string(entity.StatusPending)}, Dst: string(entity.StatusDraft)},
		}
	}
	return m
}

// Plan validates that kind allows from->to and returns the matching plan.
// The transition is replayed through an FSM instance so the table stays the
// single source of truth; anything the FSM refuses is INVALID_STATUS_TRANSITION.
func (m *Machine) Plan(ctx context.Context, kind entity.Kind, from, to entity.Status) (Plan, error) {
	table, ok := m.tables[kind]
	if !ok {
		return Plan{}, apperror.NewValidation("unknown document kind").
			WithDetail("kind", string(kind))
	}

	event := ""
	for _, desc := range table {
		if desc.Dst != string(to) {
			continue
		}
		for _, src := range desc.Src {
			if src == string(from) {
				event = desc.Name
				break
			}
		}
		if event != "" {
			break
		}
	}
	if event == "" {
		return Plan{}, apperror.NewInvalidTransition(string(from), string(to)).
			WithDetail("kind", string(kind))
	}

	machine := fsm.NewFSM(string(from), fsm.Events(table), nil)
	if err := machine.Event(ctx, event); err != nil {
		return Plan{}, apperror.NewInvalidTransition(string(from), string(to)).
			WithDetail("kind", string(kind)).
			WithCause(err)
	}

	return Plan{
		Kind:   kind,
		Event:  event,
		From:   from,
		To:     entity.Status(machine.Current()),
		Action: m.actions[event],
	}, nil
}

// AllowedTargets returns the statuses reachable from the given status for a
// kind, in table order. Empty for terminal statuses.
func (m *Machine) AllowedTargets(kind entity.Kind, from entity.Status) []entity.Status {
	var targets []entity.Status
	for _, desc := range m.tables[kind] {
		for _, src := range desc.Src {
			if src == string(from) {
				targets = append(targets, entity.Status(desc.Dst))
				break
			}
		}
	}
	return targets
}

// TransitionDescriptor describes one edge of a kind's transition table for
// the metadata endpoint.
type TransitionDescriptor struct {
	Event  string        `json:"event"`
	From   entity.Status `json:"from"`
	To     entity.Status `json:"to"`
	Action Action        `json:"action"`
}

// Describe returns the full transition table of a kind.
func (m *Machine) Describe(kind entity.Kind) []TransitionDescriptor {
	table := m.tables[kind]
	out := make([]TransitionDescriptor, 0, len(table))
	for _, desc := range table {
		for _, src := range desc.Src {
			out = append(out, TransitionDescriptor{
				Event:  desc.Name,
				From:   entity.Status(src),
				To:     entity.Status(desc.Dst),
				Action: m.actions[desc.Name],
			})
		}
	}
	return out
}
