package security

import (
	"context"
	"time"

	"numerus/internal/core/apperror"
)

// TransitionPolicy defines period-close rules for status transitions.
// Different tenants may have different policies (strict vs flexible).
// The policy gates transitions and reverts by the document's business date:
// a document dated inside a closed period may not change status, and a
// PENDING document in a closed period may not release its number back.
type TransitionPolicy interface {
	// CanTransition checks if a document with the given date may change status
	CanTransition(ctx context.Context, docDate time.Time) error

	// CanModify checks if a document with the given date may be edited
	CanModify(ctx context.Context, docDate time.Time) error

	// CanRevert checks if PENDING->DRAFT (which frees the number) is allowed
	CanRevert(ctx context.Context, docDate time.Time) error

	// GetClosedPeriod returns the date until which period is closed
	GetClosedPeriod(ctx context.Context) time.Time
}

// StrictPolicy forbids any changes to closed period.
// Used for regulatory compliance.
type StrictPolicy struct {
	closedUntil time.Time
}

// NewStrictPolicy creates policy that forbids changes before closedUntil.
func NewStrictPolicy(closedUntil time.Time) *StrictPolicy {
	return &StrictPolicy{closedUntil: closedUntil}
}

func (p *StrictPolicy) CanTransition(ctx context.Context, docDate time.Time) error {
	if docDate.Before(p.closedUntil) {
		return apperror.NewPeriodClosed(p.closedUntil.Format("2006-01"))
	}
	return nil
}

func (p *StrictPolicy) CanModify(ctx context.Context, docDate time.Time) error {
	return p.CanTransition(ctx, docDate)
}

func (p *StrictPolicy) CanRevert(ctx context.Context, docDate time.Time) error {
	return p.CanTransition(ctx, docDate)
}

func (p *StrictPolicy) GetClosedPeriod(ctx context.Context) time.Time {
	return p.closedUntil
}

// FlexiblePolicy allows backdated changes with warnings.
// Suitable for development and small businesses.
type FlexiblePolicy struct {
	warningThreshold time.Duration // Warn if older than this
	closedUntil      time.Time     // Hard limit
}

// NewFlexiblePolicy creates policy with soft warnings.
func NewFlexiblePolicy(warningThreshold time.Duration, closedUntil time.Time) *FlexiblePolicy {
	return &FlexiblePolicy{
		warningThreshold: warningThreshold,
		closedUntil:      closedUntil,
	}
}

func (p *FlexiblePolicy) CanTransition(ctx context.Context, docDate time.Time) error {
	if !p.closedUntil.IsZero() && docDate.Before(p.closedUntil) {
		return apperror.NewPeriodClosed(p.closedUntil.Format("2006-01"))
	}
	// Soft warning would be logged or returned as warning, not error
	return nil
}

func (p *FlexiblePolicy) CanModify(ctx context.Context, docDate time.Time) error {
	return p.CanTransition(ctx, docDate)
}

func (p *FlexiblePolicy) CanRevert(ctx context.Context, docDate time.Time) error {
	return p.CanTransition(ctx, docDate)
}

func (p *FlexiblePolicy) GetClosedPeriod(ctx context.Context) time.Time {
	return p.closedUntil
}

// IsBackdatedWarning checks if operation deserves a warning.
func (p *FlexiblePolicy) IsBackdatedWarning(docDate time.Time) bool {
	if p.warningThreshold == 0 {
		return false
	}
	return time.Since(docDate) > p.warningThreshold
}

// OpenPolicy allows all operations (for development/testing).
type OpenPolicy struct{}

func (OpenPolicy) CanTransition(ctx context.Context, docDate time.Time) error { return nil }
func (OpenPolicy) CanModify(ctx context.Context, docDate time.Time) error     { return nil }
func (OpenPolicy) CanRevert(ctx context.Context, docDate time.Time) error     { return nil }
func (OpenPolicy) GetClosedPeriod(ctx context.Context) time.Time              { return time.Time{} }
