package numbering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
	"numerus/internal/core/security"
)

// --- fakes ---

// txStateKey carries per-transaction cleanup through the fake tx manager.
type txStateKey struct{}

type txState struct {
	cleanup []func()
}

// fakeTxManager runs the function directly; scope locks acquired inside the
// "transaction" are released when it ends, mirroring advisory xact locks.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txStateKey{}) != nil {
		return fn(ctx)
	}
	st := &txState{}
	ctx = context.WithValue(ctx, txStateKey{}, st)
	err := fn(ctx)
	for i := len(st.cleanup) - 1; i >= 0; i-- {
		st.cleanup[i]()
	}
	return err
}

// fakeStore is an in-memory double for Repository, DocumentStore,
// EventRecorder and ConversionTracker with the real schema's semantics:
// one live document per (workspace, kind, number).
type fakeStore struct {
	mu       sync.Mutex
	docs     map[id.ID]*entity.Document
	counters map[string]int64
	events   []entity.SequenceEvent
	locks    map[id.ID]id.ID
	scopeMu  map[string]*sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     make(map[id.ID]*entity.Document),
		counters: make(map[string]int64),
		locks:    make(map[id.ID]id.ID),
		scopeMu:  make(map[string]*sync.Mutex),
	}
}

func (f *fakeStore) add(doc entity.Document) id.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := doc
	f.docs[d.ID] = &d
	return d.ID
}

func (f *fakeStore) get(t *testing.T, docID id.ID) entity.Document {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	require.True(t, ok, "document %s not in store", docID)
	return *d
}

func (f *fakeStore) inScope(doc *entity.Document, ws id.ID, kind entity.Kind) bool {
	return doc.WorkspaceID == ws && doc.Kind == kind
}

func (f *fakeStore) FindNumbers(_ context.Context, ws id.ID, kind entity.Kind, shape number.Shape) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.docs {
		if !f.inScope(d, ws, kind) {
			continue
		}
		switch shape {
		case number.ShapeBare:
			if d.Status != entity.StatusDraft && number.IsBare(d.Number) {
				out = append(out, d.Number)
			}
		case number.ShapePlaceholder:
			if d.Status == entity.StatusDraft && number.IsPlaceholder(d.Number) {
				out = append(out, d.Number)
			}
		case number.ShapeTemp:
			if number.IsTemp(d.Number) {
				out = append(out, d.Number)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) NumberExists(_ context.Context, ws id.ID, kind entity.Kind, num string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if f.inScope(d, ws, kind) && d.Number == num {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasOfficialDocuments(_ context.Context, ws id.ID, kind entity.Kind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if f.inScope(d, ws, kind) && d.Status != entity.StatusDraft {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindHolder(_ context.Context, ws id.ID, kind entity.Kind, bare string, excludeID id.ID) (*Holder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var placeholder *Holder
	for _, d := range f.docs {
		if !f.inScope(d, ws, kind) || d.ID == excludeID {
			continue
		}
		if d.Number == bare {
			return &Holder{DocumentID: d.ID, Number: d.Number, Status: d.Status}, nil
		}
		if d.Number == bare+number.DraftSuffix {
			placeholder = &Holder{DocumentID: d.ID, Number: d.Number, Status: d.Status}
		}
	}
	return placeholder, nil
}

func (f *fakeStore) WriteNumber(_ context.Context, docID id.ID, num string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok {
		return apperror.NewNotFound("document", docID.String())
	}
	for _, other := range f.docs {
		if other.ID != docID && f.inScope(other, doc.WorkspaceID, doc.Kind) && other.Number == num {
			return apperror.NewDuplicate("document", "number", num)
		}
	}
	doc.Number = num
	return nil
}

func (f *fakeStore) AtomicIncrement(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeStore) Peek(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[key], nil
}

func (f *fakeStore) LockScope(ctx context.Context, ws id.ID, kind entity.Kind) error {
	st, ok := ctx.Value(txStateKey{}).(*txState)
	if !ok {
		return errors.New("LockScope called outside a transaction")
	}
	key := ws.String() + ":" + string(kind)
	f.mu.Lock()
	m := f.scopeMu[key]
	if m == nil {
		m = &sync.Mutex{}
		f.scopeMu[key] = m
	}
	f.mu.Unlock()
	m.Lock()
	st.cleanup = append(st.cleanup, m.Unlock)
	return nil
}

func (f *fakeStore) FindTempNumbers(_ context.Context, ws *id.ID) ([]TempNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TempNumber
	for _, d := range f.docs {
		if !number.IsTemp(d.Number) {
			continue
		}
		if ws != nil && d.WorkspaceID != *ws {
			continue
		}
		out = append(out, TempNumber{
			DocumentID:  d.ID,
			WorkspaceID: d.WorkspaceID,
			Kind:        d.Kind,
			Number:      d.Number,
			Status:      d.Status,
		})
	}
	return out, nil
}

func (f *fakeStore) FindSwapOrigin(_ context.Context, docID id.ID, temp string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		ev := f.events[i]
		if ev.Event == entity.SequenceEventSwapStarted && ev.DocumentID == docID && ev.Number == temp {
			return ev.PreviousNumber, nil
		}
	}
	return "", nil
}

func (f *fakeStore) GetByID(_ context.Context, docID id.ID) (*entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return f.GetByID(ctx, docID)
}

func (f *fakeStore) SetStatus(_ context.Context, docID id.ID, status entity.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	if !ok {
		return apperror.NewNotFound("document", docID.String())
	}
	d.Status = status
	d.Version++
	return nil
}

func (f *fakeStore) Record(_ context.Context, ev entity.SequenceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) LockedBy(_ context.Context, docID id.ID) (id.ID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	by, ok := f.locks[docID]
	return by, ok, nil
}

func (f *fakeStore) eventTypes() []entity.SequenceEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.SequenceEventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Event)
	}
	return out
}

// assertNoTempAtRest fails if any live document holds a TEMP value.
func (f *fakeStore) assertNoTempAtRest(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		assert.False(t, number.IsTemp(d.Number),
			"document %s rests with temp number %s", d.ID, d.Number)
	}
}

type publishedEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, aggregateType string, aggregateID id.ID, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{aggregateType, aggregateID, eventType, payload})
	return nil
}

func (p *fakePublisher) byType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// --- fixture ---

type engineFixture struct {
	store  *fakeStore
	outbox *fakePublisher
	svc    *Service
	ws     id.ID
}

func newEngine(t *testing.T, strategy Strategy, policy security.TransitionPolicy) *engineFixture {
	t.Helper()
	store := newFakeStore()
	outbox := &fakePublisher{}
	svc, err := NewService(Config{
		Repository:  store,
		Documents:   store,
		Events:      store,
		Conversions: store,
		Outbox:      outbox,
		Policy:      policy,
		Strategy:    strategy,
		TxManager:   fakeTxManager{},
	})
	require.NoError(t, err)
	return &engineFixture{store: store, outbox: outbox, svc: svc, ws: id.New()}
}

func (f *engineFixture) seed(kind entity.Kind, num string, status entity.Status) id.ID {
	doc := entity.NewDocument(f.ws, kind)
	doc.Number = num
	doc.Status = status
	return f.store.add(doc)
}

func (f *engineFixture) draft(kind entity.Kind, num string) id.ID {
	return f.seed(kind, num, entity.StatusDraft)
}

// --- allocation ---

func TestTransition_AllocatesFirstNumber(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()
	docID := f.draft(entity.KindInvoice, "000001-DRAFT")

	res, err := f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, "000001", res.Number)
	assert.Equal(t, "000001-DRAFT", res.PreviousNumber)
	assert.Equal(t, entity.StatusPending, res.Status)
	assert.Equal(t, EventSubmit, res.Event)

	doc := f.store.get(t, docID)
	assert.Equal(t, "000001", doc.Number)
	assert.Equal(t, entity.StatusPending, doc.Status)
	assert.Equal(t, []entity.SequenceEventType{entity.SequenceEventAllocated}, f.store.eventTypes())

	allocated := f.outbox.byType(TopicNumberAllocated)
	require.Len(t, allocated, 1)
	changed := f.outbox.byType(TopicStatusChanged)
	require.Len(t, changed, 1)
}

func TestTransition_SequenceIncrements(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		docID := f.draft(entity.KindQuote, fmt.Sprintf("%06d-DRAFT", i))
		res, err := f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, number.Format(int64(i)), res.Number)
	}
}

func TestTransition_KindsSequenceIndependently(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	quote := f.draft(entity.KindQuote, "000001-DRAFT")
	invoice := f.draft(entity.KindInvoice, "000001-DRAFT")

	qres, err := f.svc.Transition(ctx, quote, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	ires, err := f.svc.Transition(ctx, invoice, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, "000001", qres.Number)
	assert.Equal(t, "000001", ires.Number)
}

func TestDraftsDoNotConsumeSequence(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	// Three drafts issued through the facade, none transitioned.
	for i := 0; i < 3; i++ {
		alloc, err := f.svc.Allocate(ctx, AllocationRequest{
			WorkspaceID:  f.ws,
			Kind:         entity.KindInvoice,
			TargetStatus: entity.StatusDraft,
		})
		require.NoError(t, err)
		require.True(t, number.IsPlaceholder(alloc.Number), "draft got %q", alloc.Number)
		f.draft(entity.KindInvoice, alloc.Number)
	}

	docID := f.draft(entity.KindInvoice, "000009-DRAFT")
	res, err := f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000001", res.Number, "drafts must not consume the sequence")
}

func TestAllocate_DraftPlaceholders(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	t.Run("manual base", func(t *testing.T) {
		alloc, err := f.svc.Allocate(ctx, AllocationRequest{
			WorkspaceID:  f.ws,
			Kind:         entity.KindQuote,
			ManualNumber: "5",
			TargetStatus: entity.StatusDraft,
		})
		require.NoError(t, err)
		assert.Equal(t, "000005-DRAFT", alloc.Number)
		assert.True(t, alloc.Manual)
	})

	t.Run("previews next official", func(t *testing.T) {
		f.seed(entity.KindQuote, "000007", entity.StatusPending)
		alloc, err := f.svc.Allocate(ctx, AllocationRequest{
			WorkspaceID:  f.ws,
			Kind:         entity.KindQuote,
			TargetStatus: entity.StatusDraft,
		})
		require.NoError(t, err)
		assert.Equal(t, "000008-DRAFT", alloc.Number)
	})

	t.Run("falls back to timestamp form when taken", func(t *testing.T) {
		f.draft(entity.KindQuote, "000008-DRAFT")
		alloc, err := f.svc.Allocate(ctx, AllocationRequest{
			WorkspaceID:  f.ws,
			Kind:         entity.KindQuote,
			TargetStatus: entity.StatusDraft,
		})
		require.NoError(t, err)
		assert.NotEqual(t, "000008-DRAFT", alloc.Number)
		assert.True(t, number.IsPlaceholder(alloc.Number), "got %q", alloc.Number)
		base, ok := number.Base(alloc.Number)
		require.True(t, ok)
		assert.Equal(t, int64(8), base)
	})

	t.Run("rejects malformed manual number", func(t *testing.T) {
		_, err := f.svc.Allocate(ctx, AllocationRequest{
			WorkspaceID:  f.ws,
			Kind:         entity.KindQuote,
			ManualNumber: "12a",
			TargetStatus: entity.StatusDraft,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	})
}

func TestAllocate_OfficialRequiresDocument(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)

	_, err := f.svc.Allocate(context.Background(), AllocationRequest{
		WorkspaceID:  f.ws,
		Kind:         entity.KindInvoice,
		TargetStatus: entity.StatusPending,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestAllocate_OfficialRunsTransition(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	docID := f.draft(entity.KindInvoice, "000001-DRAFT")

	alloc, err := f.svc.Allocate(context.Background(), AllocationRequest{
		WorkspaceID:   f.ws,
		Kind:          entity.KindInvoice,
		Prefix:        "2026-08-",
		CurrentStatus: entity.StatusDraft,
		TargetStatus:  entity.StatusPending,
		DocumentID:    docID,
	})
	require.NoError(t, err)
	assert.Equal(t, "000001", alloc.Number)
	assert.Equal(t, "2026-08-", alloc.Prefix)

	doc := f.store.get(t, docID)
	assert.Equal(t, entity.StatusPending, doc.Status)
}

// --- swap ---

func TestSwap_PlaceholderHolderKeepsBase(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		f.seed(entity.KindInvoice, number.Format(int64(i)), entity.StatusPending)
	}
	holderID := f.draft(entity.KindInvoice, "000007-DRAFT")
	transID := f.draft(entity.KindInvoice, "000007-1724600000123")

	res, err := f.svc.Transition(ctx, transID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000007", res.Number)
	assert.True(t, res.Swapped)

	holder := f.store.get(t, holderID)
	assert.True(t, number.IsPlaceholder(holder.Number), "holder got %q", holder.Number)
	base, ok := number.Base(holder.Number)
	require.True(t, ok)
	assert.Equal(t, int64(7), base)
	assert.Equal(t, entity.StatusDraft, holder.Status)

	f.store.assertNoTempAtRest(t)
	assert.Equal(t, []entity.SequenceEventType{
		entity.SequenceEventSwapStarted,
		entity.SequenceEventSwapCompleted,
		entity.SequenceEventAllocated,
	}, f.store.eventTypes())
}

func TestSwap_BareDraftHolderMovedToPlaceholder(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	f.seed(entity.KindInvoice, "000001", entity.StatusPending)
	f.seed(entity.KindInvoice, "000002", entity.StatusPending)
	// Imported draft squatting on a bare value the scanner will hand out.
	holderID := f.draft(entity.KindInvoice, "000003")
	transID := f.draft(entity.KindInvoice, "000003-DRAFT")

	res, err := f.svc.Transition(ctx, transID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000003", res.Number)
	assert.True(t, res.Swapped)

	holder := f.store.get(t, holderID)
	assert.Equal(t, "000003-DRAFT", holder.Number,
		"holder takes the placeholder freed by the transitioner")
	f.store.assertNoTempAtRest(t)
}

func TestManualNumber_OfficialHolderIsDuplicate(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	f.seed(entity.KindInvoice, "000001", entity.StatusPending)
	docID := f.draft(entity.KindInvoice, "000002-DRAFT")

	_, err := f.svc.TransitionWithNumber(ctx, docID, entity.StatusDraft, entity.StatusPending, "1")
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicateNumber(err), "got %v", err)

	doc := f.store.get(t, docID)
	assert.Equal(t, entity.StatusDraft, doc.Status, "failed transition must not change status")
	assert.Equal(t, "000002-DRAFT", doc.Number, "failed transition must not change number")
}

func TestManualNumber_BootstrapRule(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted into an empty scope", func(t *testing.T) {
		f := newEngine(t, StrategyScan, nil)
		docID := f.draft(entity.KindCreditNote, "000001-DRAFT")

		res, err := f.svc.TransitionWithNumber(ctx, docID, entity.StatusDraft, entity.StatusPending, "100")
		require.NoError(t, err)
		assert.Equal(t, "000100", res.Number)
		assert.Contains(t, f.store.eventTypes(), entity.SequenceEventManualAccepted)

		// The sequence continues after the bootstrap value.
		nextID := f.draft(entity.KindCreditNote, "000101-DRAFT")
		next, err := f.svc.Transition(ctx, nextID, entity.StatusDraft, entity.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, "000101", next.Number)
	})

	t.Run("rejected once the scope has officials", func(t *testing.T) {
		f := newEngine(t, StrategyScan, nil)
		f.seed(entity.KindCreditNote, "000001", entity.StatusPending)
		docID := f.draft(entity.KindCreditNote, "000002-DRAFT")

		_, err := f.svc.TransitionWithNumber(ctx, docID, entity.StatusDraft, entity.StatusPending, "42")
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
	})

	t.Run("collision wins over the bootstrap rule", func(t *testing.T) {
		f := newEngine(t, StrategyScan, nil)
		f.seed(entity.KindCreditNote, "000042", entity.StatusCompleted)
		docID := f.draft(entity.KindCreditNote, "000001-DRAFT")

		_, err := f.svc.TransitionWithNumber(ctx, docID, entity.StatusDraft, entity.StatusPending, "42")
		require.Error(t, err)
		assert.True(t, apperror.IsDuplicateNumber(err), "got %v", err)
	})

	t.Run("draft holder of the manual number is swapped aside", func(t *testing.T) {
		f := newEngine(t, StrategyScan, nil)
		holderID := f.draft(entity.KindCreditNote, "000017")
		docID := f.draft(entity.KindCreditNote, "000001-DRAFT")

		res, err := f.svc.TransitionWithNumber(ctx, docID, entity.StatusDraft, entity.StatusPending, "17")
		require.NoError(t, err)
		assert.Equal(t, "000017", res.Number)
		assert.True(t, res.Swapped)

		holder := f.store.get(t, holderID)
		assert.True(t, number.IsPlaceholder(holder.Number), "holder got %q", holder.Number)
	})
}

// --- release ---

func TestTransition_RevertReleasesNumber(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	docID := f.draft(entity.KindInvoice, "000001-DRAFT")
	_, err := f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)

	res, err := f.svc.Transition(ctx, docID, entity.StatusPending, entity.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, EventRevert, res.Event)
	assert.True(t, number.IsPlaceholder(res.Number), "got %q", res.Number)
	base, ok := number.Base(res.Number)
	require.True(t, ok)
	assert.Equal(t, int64(1), base, "release keeps the document's base")

	doc := f.store.get(t, docID)
	assert.Equal(t, entity.StatusDraft, doc.Status)
	assert.Contains(t, f.store.eventTypes(), entity.SequenceEventReleased)

	// The freed number is handed out again (swapping the reverted draft off
	// its placeholder preview).
	otherID := f.draft(entity.KindInvoice, "000009-DRAFT")
	next, err := f.svc.Transition(ctx, otherID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000001", next.Number)
	f.store.assertNoTempAtRest(t)
}

func TestReleaseOnDelete(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	pendingID := f.seed(entity.KindQuote, "000004", entity.StatusPending)
	draftID := f.draft(entity.KindQuote, "000005-DRAFT")

	pending := f.store.get(t, pendingID)
	require.NoError(t, f.svc.ReleaseOnDelete(ctx, &pending))
	assert.Equal(t, []entity.SequenceEventType{entity.SequenceEventReleased}, f.store.eventTypes())

	draft := f.store.get(t, draftID)
	require.NoError(t, f.svc.ReleaseOnDelete(ctx, &draft))
	assert.Len(t, f.store.eventTypes(), 1, "draft deletion releases nothing")
}

// --- transition guards ---

func TestTransition_RejectsTableViolations(t *testing.T) {
	allowed := map[[2]entity.Status]bool{
		{entity.StatusDraft, entity.StatusPending}:     true,
		{entity.StatusPending, entity.StatusCompleted}: true,
		{entity.StatusPending, entity.StatusCanceled}:  true,
		{entity.StatusPending, entity.StatusDraft}:     true,
	}

	ctx := context.Background()
	n := int64(0)
	for _, from := range entity.Statuses() {
		for _, to := range entity.Statuses() {
			if allowed[[2]entity.Status{from, to}] {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newEngine(t, StrategyScan, nil)
				n++
				num := number.Format(n)
				if from == entity.StatusDraft {
					num += number.DraftSuffix
				}
				docID := f.seed(entity.KindQuote, num, from)

				_, err := f.svc.Transition(ctx, docID, from, to)
				require.Error(t, err)
				assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition), "got %v", err)

				doc := f.store.get(t, docID)
				assert.Equal(t, from, doc.Status)
				assert.Equal(t, num, doc.Number)
			})
		}
	}
}

func TestTransition_StatusMismatchIsConcurrentModification(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	docID := f.seed(entity.KindInvoice, "000001", entity.StatusPending)

	_, err := f.svc.Transition(context.Background(), docID, entity.StatusDraft, entity.StatusPending)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err), "got %v", err)
}

func TestTransition_ConversionLockFreezesDocument(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	docID := f.seed(entity.KindQuote, "000001", entity.StatusPending)
	invoiceID := id.New()
	f.store.locks[docID] = invoiceID

	_, err := f.svc.Transition(context.Background(), docID, entity.StatusPending, entity.StatusCompleted)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition), "got %v", err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, invoiceID.String(), appErr.Details["locked_by"])
}

func TestTransition_PeriodClosedPolicy(t *testing.T) {
	closedUntil := time.Now().UTC().Add(24 * time.Hour)
	f := newEngine(t, StrategyScan, security.NewStrictPolicy(closedUntil))
	ctx := context.Background()

	docID := f.draft(entity.KindInvoice, "000001-DRAFT")
	_, err := f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePeriodClosed), "got %v", err)

	doc := f.store.get(t, docID)
	assert.Equal(t, entity.StatusDraft, doc.Status)
}

func TestTransition_UnknownDocument(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)

	_, err := f.svc.Transition(context.Background(), id.New(), entity.StatusDraft, entity.StatusPending)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

// --- concurrency ---

func TestConcurrentTransitions_UniqueNumbers(t *testing.T) {
	f := newEngine(t, StrategyScan, nil)
	ctx := context.Background()

	const n = 20
	ids := make([]id.ID, n)
	for i := range ids {
		ids[i] = f.draft(entity.KindInvoice, fmt.Sprintf("%06d-%d", i+1, 1724600000000+i))
	}

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Transition(ctx, ids[i], entity.StatusDraft, entity.StatusPending)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res.Number
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "transition %d", i)
	}

	sort.Strings(results)
	for i, got := range results {
		assert.Equal(t, number.Format(int64(i+1)), got)
	}
	f.store.assertNoTempAtRest(t)
}

// --- strategies ---

func TestCounterStrategy_NeverReusesNumbers(t *testing.T) {
	f := newEngine(t, StrategyCounter, nil)
	ctx := context.Background()

	docID := f.draft(entity.KindInvoice, "000001-DRAFT")
	res, err := f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000001", res.Number)

	_, err = f.svc.Transition(ctx, docID, entity.StatusPending, entity.StatusDraft)
	require.NoError(t, err)

	otherID := f.draft(entity.KindInvoice, "000009-DRAFT")
	next, err := f.svc.Transition(ctx, otherID, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000002", next.Number, "counter strategy must not reuse released numbers")
}

func TestCounterStrategy_SkipsManualIsland(t *testing.T) {
	f := newEngine(t, StrategyCounter, nil)
	ctx := context.Background()

	// Bootstrap a manual number above the counter.
	bootID := f.draft(entity.KindInvoice, "000002-DRAFT")
	res, err := f.svc.TransitionWithNumber(ctx, bootID, entity.StatusDraft, entity.StatusPending, "2")
	require.NoError(t, err)
	require.Equal(t, "000002", res.Number)

	first := f.draft(entity.KindInvoice, "000008-DRAFT")
	r1, err := f.svc.Transition(ctx, first, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000001", r1.Number)

	// The counter now points at the manual island; the conflict retry
	// steps over it.
	second := f.draft(entity.KindInvoice, "000009-DRAFT")
	r2, err := f.svc.Transition(ctx, second, entity.StatusDraft, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "000003", r2.Number)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()

	t.Run("scan previews max plus one without consuming", func(t *testing.T) {
		f := newEngine(t, StrategyScan, nil)
		f.seed(entity.KindQuote, "000003", entity.StatusCompleted)

		p1, err := f.svc.Preview(ctx, f.ws, entity.KindQuote)
		require.NoError(t, err)
		assert.Equal(t, "000004", p1.Number)
		assert.Equal(t, StrategyScan, p1.Strategy)

		p2, err := f.svc.Preview(ctx, f.ws, entity.KindQuote)
		require.NoError(t, err)
		assert.Equal(t, "000004", p2.Number)
	})

	t.Run("counter previews without consuming", func(t *testing.T) {
		f := newEngine(t, StrategyCounter, nil)

		p1, err := f.svc.Preview(ctx, f.ws, entity.KindQuote)
		require.NoError(t, err)
		assert.Equal(t, "000001", p1.Number)

		docID := f.draft(entity.KindQuote, "000001-DRAFT")
		_, err = f.svc.Transition(ctx, docID, entity.StatusDraft, entity.StatusPending)
		require.NoError(t, err)

		p2, err := f.svc.Preview(ctx, f.ws, entity.KindQuote)
		require.NoError(t, err)
		assert.Equal(t, "000002", p2.Number)
	})
}
