package numbering

import (
	"context"
	"testing"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
)

func TestMachinePlan_AllowedEdges(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()

	edges := []struct {
		from, to entity.Status
		event    string
		action   Action
	}{
		{entity.StatusDraft, entity.StatusPending, EventSubmit, ActionAllocate},
		{entity.StatusPending, entity.StatusCompleted, EventComplete, ActionNone},
		{entity.StatusPending, entity.StatusCanceled, EventCancel, ActionNone},
		{entity.StatusPending, entity.StatusDraft, EventRevert, ActionRelease},
	}

	for _, kind := range entity.Kinds() {
		for _, e := range edges {
			t.Run(string(kind)+"/"+string(e.from)+"->"+string(e.to), func(t *testing.T) {
				plan, err := m.Plan(ctx, kind, e.from, e.to)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if plan.Event != e.event {
					t.Errorf("event = %q, want %q", plan.Event, e.event)
				}
				if plan.Action != e.action {
					t.Errorf("action = %q, want %q", plan.Action, e.action)
				}
				if plan.To != e.to {
					t.Errorf("to = %q, want %q", plan.To, e.to)
				}
			})
		}
	}
}

func TestMachinePlan_RejectsEverythingElse(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()

	allowed := map[[2]entity.Status]bool{
		{entity.StatusDraft, entity.StatusPending}:     true,
		{entity.StatusPending, entity.StatusCompleted}: true,
		{entity.StatusPending, entity.StatusCanceled}:  true,
		{entity.StatusPending, entity.StatusDraft}:     true,
	}

	for _, kind := range entity.Kinds() {
		for _, from := range entity.Statuses() {
			for _, to := range entity.Statuses() {
				if allowed[[2]entity.Status{from, to}] {
					continue
				}
				t.Run(string(kind)+"/"+string(from)+"->"+string(to), func(t *testing.T) {
					_, err := m.Plan(ctx, kind, from, to)
					if err == nil {
						t.Fatal("expected error, got nil")
					}
					if !apperror.IsCode(err, apperror.CodeInvalidTransition) {
						t.Errorf("error code = %v, want %s", err, apperror.CodeInvalidTransition)
					}
				})
			}
		}
	}
}

func TestMachinePlan_UnknownKind(t *testing.T) {
	m := NewMachine()

	_, err := m.Plan(context.Background(), entity.Kind("PURCHASE_ORDER"), entity.StatusDraft, entity.StatusPending)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("error code = %v, want %s", err, apperror.CodeValidation)
	}
}

func TestMachine_AllowedTargets(t *testing.T) {
	m := NewMachine()

	tests := []struct {
		from entity.Status
		want []entity.Status
	}{
		{entity.StatusDraft, []entity.Status{entity.StatusPending}},
		{entity.StatusPending, []entity.Status{entity.StatusCompleted, entity.StatusCanceled, entity.StatusDraft}},
		{entity.StatusCompleted, nil},
		{entity.StatusCanceled, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got := m.AllowedTargets(entity.KindQuote, tt.from)
			if len(got) != len(tt.want) {
				t.Fatalf("targets = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("targets[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMachine_Describe(t *testing.T) {
	m := NewMachine()

	for _, kind := range entity.Kinds() {
		desc := m.Describe(kind)
		if len(desc) != 4 {
			t.Errorf("%s: table has %d edges, want 4", kind, len(desc))
		}
		terminal := map[entity.Status]bool{
			entity.StatusCompleted: true,
			entity.StatusCanceled:  true,
		}
		for _, d := range desc {
			if terminal[d.From] {
				t.Errorf("%s: terminal status %s has outgoing edge %s", kind, d.From, d.Event)
			}
		}
	}
}
