package reports

import (
	"context"
)

// Repository defines report data access interface.
type Repository interface {
	// Document journal
	GetDocumentJournal(ctx context.Context, filter DocumentJournalFilter) (*DocumentJournal, error)
	GetKindSummary(ctx context.Context, filter DocumentJournalFilter) ([]KindSummary, error)

	// Numbering gaps
	GetNumberingGaps(ctx context.Context, filter NumberingGapsFilter) (*NumberingGapsReport, error)
}
