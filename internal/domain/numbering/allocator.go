package numbering

import (
	"context"
	"fmt"
	"strings"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
)

// Strategy selects how official numbers are produced for a scope.
type Strategy string

const (
	// StrategyScan derives the next number by scanning documents (max+1).
	// Numbers released back to the pool are reused.
	StrategyScan Strategy = "scan"

	// StrategyCounter burns a dedicated per-scope counter row with a single
	// atomic increment. Released numbers are never reused; gaps from
	// reverted documents are permanent, but allocation never rescans.
	StrategyCounter Strategy = "counter"
)

// ParseStrategy reads a strategy name from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyScan, "":
		return StrategyScan, nil
	case StrategyCounter:
		return StrategyCounter, nil
	}
	return "", fmt.Errorf("unknown numbering strategy %q (want scan or counter)", s)
}

// Allocator produces candidate official numbers for (workspace, kind) scopes.
// A candidate is not reserved: the caller must still win the unique index on
// write, retrying with a fresh candidate on conflict.
type Allocator interface {
	// Next returns the candidate bare number to attempt.
	Next(ctx context.Context, workspaceID id.ID, kind entity.Kind) (string, error)

	// Preview returns the number Next would most likely hand out, without
	// consuming anything. Serves the preview endpoint and draft bases.
	Preview(ctx context.Context, workspaceID id.ID, kind entity.Kind) (string, error)

	// Strategy identifies the implementation.
	Strategy() Strategy
}

// NewAllocator builds the allocator for the configured strategy.
func NewAllocator(strategy Strategy, repo Repository) (Allocator, error) {
	switch strategy {
	case StrategyScan:
		return &scanAllocator{scanner: NewScanner(repo)}, nil
	case StrategyCounter:
		return &counterAllocator{repo: repo, scanner: NewScanner(repo)}, nil
	}
	return nil, fmt.Errorf("unknown numbering strategy %q", strategy)
}

// scanAllocator is stateless: every call rescans. Next and Preview coincide.
type scanAllocator struct {
	scanner *Scanner
}

func (a *scanAllocator) Next(ctx context.Context, workspaceID id.ID, kind entity.Kind) (string, error) {
	next, err := a.scanner.NextOfficial(ctx, workspaceID, kind)
	if err != nil {
		return "", err
	}
	return number.Format(next), nil
}

func (a *scanAllocator) Preview(ctx context.Context, workspaceID id.ID, kind entity.Kind) (string, error) {
	return a.Next(ctx, workspaceID, kind)
}

func (a *scanAllocator) Strategy() Strategy { return StrategyScan }

// counterAllocator consumes a sys_sequences row per scope. The counter may
// trail documents that entered the scope outside it (bootstrap manual
// numbers, scopes migrated from the scan strategy): such islands surface as
// a unique-index conflict when the counter sweeps past them, and the
// caller's retry burns one increment per island. The counter never steps
// backwards, so each island is crossed exactly once.
type counterAllocator struct {
	repo    Repository
	scanner *Scanner
}

// ScopeKey renders the sys_sequences key for a scope.
func ScopeKey(workspaceID id.ID, kind entity.Kind) string {
	return workspaceID.String() + ":" + string(kind)
}

func (a *counterAllocator) Next(ctx context.Context, workspaceID id.ID, kind entity.Kind) (string, error) {
	v, err := a.repo.AtomicIncrement(ctx, ScopeKey(workspaceID, kind))
	if err != nil {
		return "", err
	}
	if v > number.MaxValue {
		return "", apperror.NewAllocationFailed(workspaceID.String(), string(kind), 0).
			WithDetail("reason", "sequence exhausted").
			WithDetail("max", number.MaxValue)
	}
	return number.Format(v), nil
}

// Preview reads the counter without consuming. A scope whose counter row
// does not exist yet previews what the first increment would return.
func (a *counterAllocator) Preview(ctx context.Context, workspaceID id.ID, kind entity.Kind) (string, error) {
	v, err := a.repo.Peek(ctx, ScopeKey(workspaceID, kind))
	if err != nil {
		return "", err
	}
	if v >= number.MaxValue {
		return "", apperror.NewAllocationFailed(workspaceID.String(), string(kind), 0).
			WithDetail("reason", "sequence exhausted").
			WithDetail("max", number.MaxValue)
	}
	return number.Format(v + 1), nil
}

func (a *counterAllocator) Strategy() Strategy { return StrategyCounter }
