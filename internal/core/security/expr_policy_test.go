package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/apperror"
)

func TestNewExprPolicy_CompileError(t *testing.T) {
	_, err := NewExprPolicy("doc_date >=", time.Time{})
	require.Error(t, err)

	_, err = NewExprPolicy("unknown_var == 1", time.Time{})
	require.Error(t, err)
}

func TestExprPolicy_AllowAll(t *testing.T) {
	p, err := NewExprPolicy("true", time.Time{})
	require.NoError(t, err)

	ctx := context.Background()
	docDate := time.Now().Add(-100 * 24 * time.Hour)

	assert.NoError(t, p.CanTransition(ctx, docDate))
	assert.NoError(t, p.CanModify(ctx, docDate))
	assert.NoError(t, p.CanRevert(ctx, docDate))
}

func TestExprPolicy_ClosedPeriod(t *testing.T) {
	closedUntil := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewExprPolicy("doc_date >= closed_until", closedUntil)
	require.NoError(t, err)

	ctx := context.Background()

	err = p.CanTransition(ctx, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePeriodClosed))

	assert.NoError(t, p.CanTransition(ctx, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)))
}

func TestExprPolicy_PerOperation(t *testing.T) {
	// Reverts stay locked in the closed period, edits pass through.
	closedUntil := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewExprPolicy(`doc_date >= closed_until || op == "modify"`, closedUntil)
	require.NoError(t, err)

	ctx := context.Background()
	oldDate := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, p.CanModify(ctx, oldDate))
	assert.Error(t, p.CanRevert(ctx, oldDate))
	assert.Error(t, p.CanTransition(ctx, oldDate))
}

func TestExprPolicy_NonBoolResult(t *testing.T) {
	p, err := NewExprPolicy("1 + 2", time.Time{})
	require.NoError(t, err)

	err = p.CanTransition(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))
}

func TestExprPolicy_DeniedWithoutBoundary(t *testing.T) {
	// No closed_until configured: denial reads as a validation failure, not
	// a period-closed one.
	p, err := NewExprPolicy("false", time.Time{})
	require.NoError(t, err)

	err = p.CanTransition(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestExprPolicy_GetClosedPeriod(t *testing.T) {
	closedUntil := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewExprPolicy("true", closedUntil)
	require.NoError(t, err)

	assert.Equal(t, closedUntil, p.GetClosedPeriod(context.Background()))
	assert.True(t, (&ExprPolicy{}).GetClosedPeriod(context.Background()).IsZero())
}
