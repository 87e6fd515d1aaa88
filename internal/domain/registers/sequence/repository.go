// Package sequence provides the sequence accumulation register: the
// append-only journal of numbering movements per (workspace, kind) scope.
// Every allocation, release, swap and repair leaves a line here, written in
// the same transaction as the document mutation it describes.
package sequence

import (
	"context"
	"time"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
)

// MovementFilter selects journal lines.
type MovementFilter struct {
	WorkspaceID *id.ID
	Kind        *entity.Kind
	DocumentID  *id.ID
	Events      []entity.SequenceEventType
	From        *time.Time
	To          *time.Time

	Limit  int
	Offset int
}

// TurnoverFilter selects the scope and period for turnover aggregation.
type TurnoverFilter struct {
	WorkspaceID id.ID
	Kind        *entity.Kind
	From        time.Time
	To          time.Time

	// Bucket is the aggregation granularity: "day" or "month".
	Bucket string
}

// TurnoverBucket is one aggregation row: numbering activity per period.
type TurnoverBucket struct {
	Period    time.Time `db:"period" json:"period"`
	Allocated int64     `db:"allocated" json:"allocated"`
	Released  int64     `db:"released" json:"released"`
	Swapped   int64     `db:"swapped" json:"swapped"`
	Repaired  int64     `db:"repaired" json:"repaired"`
}

// Repository defines operations for the sequence register.
type Repository interface {
	// Append inserts one journal line. Joins the caller's transaction.
	Append(ctx context.Context, event entity.SequenceEvent) error

	// Movements retrieves journal lines, newest first.
	Movements(ctx context.Context, filter MovementFilter) ([]entity.SequenceEvent, error)

	// Balances derives per-kind sequence state for one workspace: current
	// max bare number, official/draft document counts, released count.
	Balances(ctx context.Context, workspaceID id.ID) ([]entity.SequenceBalance, error)

	// Turnovers aggregates journal activity per period bucket.
	Turnovers(ctx context.Context, filter TurnoverFilter) ([]TurnoverBucket, error)
}
