// Package conversion tracks document derivations: quote to invoice and
// invoice to credit note. A recorded link freezes the source document against
// further status transitions; amendments continue on the derived document.
package conversion

import (
	"time"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
)

// RelationConvertedTo is the only relation currently stored in document_links.
const RelationConvertedTo = "converted_to"

// Link is one derivation record. A source document converts at most once;
// the unique constraint on source_id enforces it.
type Link struct {
	LinkID    id.ID     `db:"link_id" json:"linkId"`
	SourceID  id.ID     `db:"source_id" json:"sourceId"`
	DerivedID id.ID     `db:"derived_id" json:"derivedId"`
	Relation  string    `db:"relation" json:"relation"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewLink creates a conversion link with generated LinkID.
func NewLink(sourceID, derivedID id.ID, createdBy string) Link {
	return Link{
		LinkID:    id.New(),
		SourceID:  sourceID,
		DerivedID: derivedID,
		Relation:  RelationConvertedTo,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}
}

// targets maps a source kind to the kind it converts into.
var targets = map[entity.Kind]entity.Kind{
	entity.KindQuote:   entity.KindInvoice,
	entity.KindInvoice: entity.KindCreditNote,
}

// TargetFor returns the kind documents of k may convert into.
// Credit notes are terminal: nothing derives from them.
func TargetFor(k entity.Kind) (entity.Kind, bool) {
	t, ok := targets[k]
	return t, ok
}
