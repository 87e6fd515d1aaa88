package numbering

import (
	"context"
	"time"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
)

// Issuer hands out draft placeholders. A placeholder previews the bare
// number the draft would likely receive ("000042-DRAFT") without consuming
// it; when that exact string is already held, the timestamp form keeps
// placeholders unique without touching the sequence.
type Issuer struct {
	repo  Repository
	alloc Allocator
	now   func() time.Time
}

// NewIssuer creates an issuer. The allocator supplies preview bases for
// drafts created without a manual number.
func NewIssuer(repo Repository, alloc Allocator) *Issuer {
	return &Issuer{repo: repo, alloc: alloc, now: time.Now}
}

// IssueDraft returns the placeholder for a new draft. A manual number, when
// supplied, becomes the placeholder base after shape validation; otherwise
// the base previews the allocator's next number.
func (i *Issuer) IssueDraft(ctx context.Context, workspaceID id.ID, kind entity.Kind, manual string) (string, error) {
	var base int64
	if manual != "" {
		v, err := number.Parse(manual)
		if err != nil {
			return "", apperror.NewValidation("manual number must be 1 to 6 digits").
				WithDetail("number", manual)
		}
		base = v
	} else {
		preview, err := i.alloc.Preview(ctx, workspaceID, kind)
		if err != nil {
			return "", err
		}
		v, err := number.Parse(preview)
		if err != nil {
			return "", apperror.NewInconsistentState("allocator", preview, "preview returned a non-bare number")
		}
		base = v
	}
	return i.PlaceholderFor(ctx, workspaceID, kind, base)
}

// PlaceholderFor returns a free placeholder string based on the given bare
// value: the preferred "-DRAFT" form, or the timestamp form when taken.
func (i *Issuer) PlaceholderFor(ctx context.Context, workspaceID id.ID, kind entity.Kind, base int64) (string, error) {
	candidate := number.Placeholder(base)
	taken, err := i.repo.NumberExists(ctx, workspaceID, kind, candidate)
	if err != nil {
		return "", err
	}
	if taken {
		candidate = number.TimestampPlaceholder(base, i.now())
	}
	return candidate, nil
}
