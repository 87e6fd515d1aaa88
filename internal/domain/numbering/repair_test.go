package numbering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
)

func newRepairer(t *testing.T, f *engineFixture) *Repairer {
	t.Helper()
	r, err := NewRepairer(Config{
		Repository: f.store,
		Documents:  f.store,
		Events:     f.store,
		Outbox:     f.outbox,
		Strategy:   StrategyScan,
		TxManager:  fakeTxManager{},
	})
	require.NoError(t, err)
	return r
}

func TestSweep_RestoresDraftHolderFromJournal(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	r := newRepairer(t, f)
	ctx := context.Background()

	// A draft caught mid-swap: the journal remembers what it held.
	temp := number.NewTempToken()
	docID := f.seed(entity.KindInvoice, temp, entity.StatusDraft)
	require.NoError(t, f.store.Record(ctx, entity.NewSequenceEvent(
		f.ws, entity.KindInvoice, docID,
		entity.SequenceEventSwapStarted, temp, "000007-DRAFT", "tester",
	)))

	report, err := r.Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, 0, report.Failed)

	doc := f.store.get(t, docID)
	assert.True(t, number.IsPlaceholder(doc.Number), "got %q", doc.Number)
	base, ok := number.Base(doc.Number)
	require.True(t, ok)
	assert.Equal(t, int64(7), base, "repair restores the pre-swap base")
	assert.Contains(t, f.store.eventTypes(), entity.SequenceEventRepaired)
	assert.Len(t, f.outbox.byType(TopicNumberRepaired), 1)
}

func TestSweep_ReallocatesStuckOfficial(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	r := newRepairer(t, f)
	ctx := context.Background()

	f.seed(entity.KindInvoice, "000001", entity.StatusPending)
	docID := f.seed(entity.KindInvoice, number.NewTempToken(), entity.StatusPending)

	report, err := r.Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)

	doc := f.store.get(t, docID)
	assert.Equal(t, "000002", doc.Number, "stuck official gets a fresh bare number")
	f.store.assertNoTempAtRest(t)
}

func TestSweep_DraftWithoutJournalFallsBackToPreview(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	r := newRepairer(t, f)
	ctx := context.Background()

	f.seed(entity.KindQuote, "000004", entity.StatusCompleted)
	docID := f.seed(entity.KindQuote, number.NewTempToken(), entity.StatusDraft)

	report, err := r.Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)

	doc := f.store.get(t, docID)
	assert.True(t, number.IsPlaceholder(doc.Number), "got %q", doc.Number)
	base, ok := number.Base(doc.Number)
	require.True(t, ok)
	assert.Equal(t, int64(5), base, "no journal line: base previews the next number")
}

func TestSweep_Idempotent(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	r := newRepairer(t, f)
	ctx := context.Background()

	f.seed(entity.KindInvoice, number.NewTempToken(), entity.StatusDraft)

	first, err := r.Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Repaired)

	second, err := r.Sweep(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Found, "second pass finds nothing to repair")
}

func TestSweep_WorkspaceFilter(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	r := newRepairer(t, f)
	ctx := context.Background()

	inside := f.seed(entity.KindInvoice, number.NewTempToken(), entity.StatusDraft)

	other := entity.NewDocument(id.New(), entity.KindInvoice)
	other.Number = number.NewTempToken()
	outside := f.store.add(other)

	report, err := r.Sweep(ctx, &f.ws)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)

	assert.False(t, number.IsTemp(f.store.get(t, inside).Number))
	assert.True(t, number.IsTemp(f.store.get(t, outside).Number),
		"documents outside the filtered workspace stay untouched")
}
