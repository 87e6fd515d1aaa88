package document

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
	"numerus/internal/core/security"
	"numerus/internal/core/types"
	"numerus/internal/domain"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/workspace"
)

// --- fakes ---

type runInline struct{}

func (runInline) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memBackend is an in-memory documents table. It backs the document
// repository and the numbering engine ports at once, the same split the
// Postgres repos make over the single real table.
type memBackend struct {
	mu       sync.Mutex
	docs     map[id.ID]*entity.Document
	counters map[string]int64
	events   []entity.SequenceEvent
}

func newMemBackend() *memBackend {
	return &memBackend{
		docs:     make(map[id.ID]*entity.Document),
		counters: make(map[string]int64),
	}
}

func (m *memBackend) live(d *entity.Document, ws id.ID, kind entity.Kind) bool {
	return !d.DeletionMark && d.WorkspaceID == ws && d.Kind == kind
}

func (m *memBackend) Create(_ context.Context, doc *entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if m.live(d, doc.WorkspaceID, doc.Kind) && d.Number == doc.Number {
			return apperror.NewDuplicate("document", "number", doc.Number)
		}
	}
	cp := *doc
	m.docs[cp.ID] = &cp
	return nil
}

func (m *memBackend) GetByID(_ context.Context, docID id.ID) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	cp := *d
	return &cp, nil
}

func (m *memBackend) GetByNumber(_ context.Context, ws id.ID, kind entity.Kind, num string) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if m.live(d, ws, kind) && d.Number == num {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("document", num)
}

// Update mirrors the real repo's column filter: identity, sequencing and
// lifecycle columns never come from the payload.
func (m *memBackend) Update(_ context.Context, doc *entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[doc.ID]
	if !ok || d.Version != doc.Version {
		return apperror.NewConcurrentModification("document", doc.ID)
	}
	d.Prefix = doc.Prefix
	d.Date = doc.Date
	d.Total = doc.Total
	d.Currency = doc.Currency
	d.Comment = doc.Comment
	d.UpdatedBy = doc.UpdatedBy
	d.Version++
	return nil
}

func (m *memBackend) Delete(_ context.Context, docID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return apperror.NewNotFound("document", docID.String())
	}
	d.DeletionMark = true
	d.Version++
	return nil
}

func (m *memBackend) GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return m.GetByID(ctx, docID)
}

func (m *memBackend) SetStatus(_ context.Context, docID id.ID, status entity.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	if !ok {
		return apperror.NewNotFound("document", docID.String())
	}
	d.Status = status
	d.Version++
	return nil
}

func (m *memBackend) List(_ context.Context, filter ListFilter) (domain.ListResult[*entity.Document], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := domain.ListResult[*entity.Document]{Limit: filter.Limit, Offset: filter.Offset}
	for _, d := range m.docs {
		if d.DeletionMark && !filter.IncludeDeleted {
			continue
		}
		if filter.WorkspaceID != nil && d.WorkspaceID != *filter.WorkspaceID {
			continue
		}
		if filter.Kind != nil && d.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		cp := *d
		result.Items = append(result.Items, &cp)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (m *memBackend) FindNumbers(_ context.Context, ws id.ID, kind entity.Kind, shape number.Shape) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, d := range m.docs {
		if !m.live(d, ws, kind) {
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

func (m *memBackend) NumberExists(_ context.Context, ws id.ID, kind entity.Kind, num string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if m.live(d, ws, kind) && d.Number == num {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBackend) HasOfficialDocuments(_ context.Context, ws id.ID, kind entity.Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if m.live(d, ws, kind) && d.Status != entity.StatusDraft {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBackend) FindHolder(_ context.Context, ws id.ID, kind entity.Kind, bare string, excludeID id.ID) (*numbering.Holder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var placeholder *numbering.Holder
	for _, d := range m.docs {
		if !m.live(d, ws, kind) || d.ID == excludeID {
			continue
		}
		if d.Number == bare {
			return &numbering.Holder{DocumentID: d.ID, Number: d.Number, Status: d.Status}, nil
		}
		if d.Number == bare+number.DraftSuffix {
			placeholder = &numbering.Holder{DocumentID: d.ID, Number: d.Number, Status: d.Status}
		}
	}
	return placeholder, nil
}

func (m *memBackend) WriteNumber(_ context.Context, docID id.ID, num string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok {
		return apperror.NewNotFound("document", docID.String())
	}
	for _, other := range m.docs {
		if other.ID != docID && m.live(other, doc.WorkspaceID, doc.Kind) && other.Number == num {
			return apperror.NewDuplicate("document", "number", num)
		}
	}
	doc.Number = num
	return nil
}

func (m *memBackend) AtomicIncrement(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memBackend) Peek(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *memBackend) LockScope(context.Context, id.ID, entity.Kind) error {
	return nil
}

func (m *memBackend) FindTempNumbers(_ context.Context, ws *id.ID) ([]numbering.TempNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []numbering.TempNumber
	for _, d := range m.docs {
		if d.DeletionMark || !number.IsTemp(d.Number) {
			continue
		}
		if ws != nil && d.WorkspaceID != *ws {
			continue
		}
		out = append(out, numbering.TempNumber{
			DocumentID:  d.ID,
			WorkspaceID: d.WorkspaceID,
			Kind:        d.Kind,
			Number:      d.Number,
			Status:      d.Status,
		})
	}
	return out, nil
}

func (m *memBackend) FindSwapOrigin(_ context.Context, docID id.ID, temp string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if ev.Event == entity.SequenceEventSwapStarted && ev.DocumentID == docID && ev.Number == temp {
			return ev.PreviousNumber, nil
		}
	}
	return "", nil
}

func (m *memBackend) Record(_ context.Context, ev entity.SequenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memBackend) eventTypes() []entity.SequenceEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.SequenceEventType, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Event)
	}
	return out
}

// fakeLinks doubles the conversion log for the service and the engine's
// lock queries, with the real table's one-conversion-per-source constraint.
type fakeLinks struct {
	mu    sync.Mutex
	links map[id.ID]id.ID
}

func (l *fakeLinks) Record(_ context.Context, sourceID, derivedID id.ID) (conversion.Link, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.links[sourceID]; ok {
		return conversion.Link{}, apperror.NewDuplicate("document_link", "source_id", sourceID.String())
	}
	l.links[sourceID] = derivedID
	return conversion.NewLink(sourceID, derivedID, ""), nil
}

func (l *fakeLinks) LockedBy(_ context.Context, docID id.ID) (id.ID, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	derived, ok := l.links[docID]
	return derived, ok, nil
}

type fakeWorkspaces struct {
	ws map[id.ID]*workspace.Workspace
}

func (f *fakeWorkspaces) RequireLive(_ context.Context, workspaceID id.ID) (*workspace.Workspace, error) {
	w, ok := f.ws[workspaceID]
	if !ok {
		return nil, apperror.NewNotFound("workspace", workspaceID.String())
	}
	return w, nil
}

// --- fixture ---

type serviceFixture struct {
	backend *memBackend
	links   *fakeLinks
	flags   *security.InMemoryFlags
	ws      *workspace.Workspace
	svc     *Service
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	backend := newMemBackend()
	links := &fakeLinks{links: make(map[id.ID]id.ID)}
	flags := security.NewInMemoryFlags()
	flags.SetFlag(security.FlagManualNumbers, true)
	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd")

	engine, err := numbering.NewService(numbering.Config{
		Repository:  backend,
		Documents:   backend,
		Events:      backend,
		Conversions: links,
		TxManager:   runInline{},
	})
	require.NoError(t, err)

	svc := NewService(Config{
		Repo:        backend,
		Engine:      engine,
		Workspaces:  &fakeWorkspaces{ws: map[id.ID]*workspace.Workspace{ws.ID: ws}},
		Conversions: links,
		Flags:       flags,
		TxManager:   runInline{},
	})
	return &serviceFixture{backend: backend, links: links, flags: flags, ws: ws, svc: svc}
}

func (f *serviceFixture) create(t *testing.T, kind entity.Kind) *entity.Document {
	t.Helper()
	doc := entity.NewDocument(f.ws.ID, kind)
	doc.Total = types.NewMoney(100)
	doc.Currency = "EUR"
	require.NoError(t, f.svc.Create(context.Background(), &doc, ""))
	return &doc
}

// official creates a document and submits it, returning the stored state.
func (f *serviceFixture) official(t *testing.T, kind entity.Kind) *entity.Document {
	t.Helper()
	doc := f.create(t, kind)
	_, err := f.svc.Transition(context.Background(), doc.ID, "", entity.StatusPending, "")
	require.NoError(t, err)
	fresh, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	return fresh
}

// --- create ---

func TestCreate_BornDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := entity.NewDocument(f.ws.ID, entity.KindQuote)
	doc.Status = entity.StatusCompleted // callers do not pick the status
	doc.Total = types.NewMoney(1250)
	doc.Currency = "EUR"
	require.NoError(t, f.svc.Create(ctx, &doc, ""))

	assert.Equal(t, entity.StatusDraft, doc.Status)
	assert.True(t, number.IsPlaceholder(doc.Number), "got %q", doc.Number)

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Number, stored.Number)
	assert.Empty(t, f.backend.eventTypes(), "drafts leave no journal entries")
}

func TestCreate_UnknownWorkspace(t *testing.T) {
	f := newFixture(t)

	doc := entity.NewDocument(id.New(), entity.KindQuote)
	err := f.svc.Create(context.Background(), &doc, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
}

func TestCreate_RejectsBadCurrency(t *testing.T) {
	f := newFixture(t)

	doc := entity.NewDocument(f.ws.ID, entity.KindQuote)
	doc.Currency = "EURO"
	err := f.svc.Create(context.Background(), &doc, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
}

func TestCreate_ManualNumberGate(t *testing.T) {
	ctx := context.Background()

	t.Run("manual base honored", func(t *testing.T) {
		f := newFixture(t)
		doc := entity.NewDocument(f.ws.ID, entity.KindInvoice)
		require.NoError(t, f.svc.Create(ctx, &doc, "7"))
		assert.Equal(t, "000007"+number.DraftSuffix, doc.Number)
	})

	t.Run("tenant flag off", func(t *testing.T) {
		f := newFixture(t)
		f.flags.SetFlag(security.FlagManualNumbers, false)
		doc := entity.NewDocument(f.ws.ID, entity.KindInvoice)
		err := f.svc.Create(ctx, &doc, "7")
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
	})

	t.Run("workspace setting off", func(t *testing.T) {
		f := newFixture(t)
		f.ws.AllowManualNumbers = false
		doc := entity.NewDocument(f.ws.ID, entity.KindInvoice)
		err := f.svc.Create(ctx, &doc, "7")
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
	})

	t.Run("gate only guards manual input", func(t *testing.T) {
		f := newFixture(t)
		f.flags.SetFlag(security.FlagManualNumbers, false)
		f.ws.AllowManualNumbers = false
		doc := entity.NewDocument(f.ws.ID, entity.KindInvoice)
		require.NoError(t, f.svc.Create(ctx, &doc, ""))
	})
}

// --- read ---

func TestGetByNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.official(t, entity.KindInvoice)
	require.Equal(t, "000001", doc.Number)

	found, err := f.svc.GetByNumber(ctx, f.ws.ID, entity.KindInvoice, "000001")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	// Kind is part of the scope: the same number means nothing for quotes.
	_, err = f.svc.GetByNumber(ctx, f.ws.ID, entity.KindQuote, "000001")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

// --- update ---

func TestUpdate_ImmutableColumnsStay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.official(t, entity.KindInvoice)

	payload := *doc
	payload.Comment = "net 30"
	payload.Total = types.NewMoney(480.50)
	payload.Number = "999999"
	payload.Status = entity.StatusCompleted
	payload.Kind = entity.KindQuote
	payload.WorkspaceID = id.New()

	require.NoError(t, f.svc.Update(ctx, &payload))

	// The returned entity reflects what is actually stored.
	assert.Equal(t, doc.Number, payload.Number)
	assert.Equal(t, entity.StatusPending, payload.Status)

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Number, stored.Number)
	assert.Equal(t, entity.StatusPending, stored.Status)
	assert.Equal(t, entity.KindInvoice, stored.Kind)
	assert.Equal(t, f.ws.ID, stored.WorkspaceID)
	assert.Equal(t, "net 30", stored.Comment)
	assert.True(t, stored.Total.Equal(types.NewMoney(480.50)))
}

func TestUpdate_TerminalFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.official(t, entity.KindInvoice)
	_, err := f.svc.Transition(ctx, doc.ID, entity.StatusPending, entity.StatusCompleted, "")
	require.NoError(t, err)

	doc.Comment = "too late"
	err = f.svc.Update(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule), "got %v", err)
}

func TestUpdate_StaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, entity.KindQuote)
	stale := *doc

	doc.Comment = "first writer"
	require.NoError(t, f.svc.Update(ctx, doc))

	stale.Comment = "second writer"
	err := f.svc.Update(ctx, &stale)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err), "got %v", err)
}

// --- delete ---

func TestDelete_Draft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, entity.KindQuote)
	require.NoError(t, f.svc.Delete(ctx, doc.ID))

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.DeletionMark)
	assert.Empty(t, f.backend.eventTypes(), "draft deletion touches no sequence")
}

func TestDelete_PendingReleasesNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.official(t, entity.KindInvoice)
	require.Equal(t, "000001", doc.Number)

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	assert.Contains(t, f.backend.eventTypes(), entity.SequenceEventReleased)

	// The freed number is scanned out again.
	next := f.official(t, entity.KindInvoice)
	assert.Equal(t, "000001", next.Number)
}

func TestDelete_TerminalRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.official(t, entity.KindInvoice)
	_, err := f.svc.Transition(ctx, doc.ID, "", entity.StatusCompleted, "")
	require.NoError(t, err)

	err = f.svc.Delete(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule), "got %v", err)

	stored, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, stored.DeletionMark)
}

// --- transition ---

func TestTransition_EmptyFromUsesCurrentStatus(t *testing.T) {
	f := newFixture(t)

	doc := f.create(t, entity.KindQuote)
	res, err := f.svc.Transition(context.Background(), doc.ID, "", entity.StatusPending, "")
	require.NoError(t, err)
	assert.Equal(t, "000001", res.Number)
	assert.Equal(t, entity.StatusPending, res.Status)
}

func TestTransition_ManualNumberGate(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstraps an empty scope", func(t *testing.T) {
		f := newFixture(t)
		doc := f.create(t, entity.KindCreditNote)
		res, err := f.svc.Transition(ctx, doc.ID, "", entity.StatusPending, "500")
		require.NoError(t, err)
		assert.Equal(t, "000500", res.Number)
	})

	t.Run("workspace setting off", func(t *testing.T) {
		f := newFixture(t)
		doc := f.create(t, entity.KindCreditNote)
		f.ws.AllowManualNumbers = false

		_, err := f.svc.Transition(ctx, doc.ID, "", entity.StatusPending, "500")
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)

		stored, err := f.svc.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusDraft, stored.Status)
	})
}

// --- convert ---

func TestConvert_QuoteToInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quote := entity.NewDocument(f.ws.ID, entity.KindQuote)
	quote.Prefix = "2026-08-"
	quote.Total = types.NewMoney(9900)
	quote.Currency = "USD"
	quote.Comment = "annual license"
	require.NoError(t, f.svc.Create(ctx, &quote, ""))
	_, err := f.svc.Transition(ctx, quote.ID, "", entity.StatusPending, "")
	require.NoError(t, err)

	invoice, err := f.svc.Convert(ctx, quote.ID, entity.KindInvoice)
	require.NoError(t, err)

	assert.Equal(t, entity.KindInvoice, invoice.Kind)
	assert.Equal(t, entity.StatusDraft, invoice.Status)
	assert.Equal(t, "000001"+number.DraftSuffix, invoice.Number,
		"invoice sequence starts fresh, independent of the quote's")
	assert.Equal(t, f.ws.ID, invoice.WorkspaceID)
	assert.Equal(t, "2026-08-", invoice.Prefix)
	assert.True(t, invoice.Total.Equal(types.NewMoney(9900)))
	assert.Equal(t, "USD", invoice.Currency)
	assert.Equal(t, "annual license", invoice.Comment)

	derivedID, locked, err := f.links.LockedBy(ctx, quote.ID)
	require.NoError(t, err)
	require.True(t, locked)
	assert.Equal(t, invoice.ID, derivedID)

	// The link freezes the source against further transitions.
	_, err = f.svc.Transition(ctx, quote.ID, "", entity.StatusCompleted, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition), "got %v", err)
}

func TestConvert_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("only the mapped target", func(t *testing.T) {
		f := newFixture(t)
		quote := f.official(t, entity.KindQuote)

		_, err := f.svc.Convert(ctx, quote.ID, entity.KindCreditNote)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
	})

	t.Run("credit notes derive nothing", func(t *testing.T) {
		f := newFixture(t)
		cn := f.official(t, entity.KindCreditNote)

		_, err := f.svc.Convert(ctx, cn.ID, entity.KindQuote)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
	})

	t.Run("drafts cannot convert", func(t *testing.T) {
		f := newFixture(t)
		quote := f.create(t, entity.KindQuote)

		_, err := f.svc.Convert(ctx, quote.ID, entity.KindInvoice)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
	})

	t.Run("second conversion conflicts", func(t *testing.T) {
		f := newFixture(t)
		quote := f.official(t, entity.KindQuote)

		_, err := f.svc.Convert(ctx, quote.ID, entity.KindInvoice)
		require.NoError(t, err)

		_, err = f.svc.Convert(ctx, quote.ID, entity.KindInvoice)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeConflict), "got %v", err)
	})

	t.Run("deleted source is gone", func(t *testing.T) {
		f := newFixture(t)
		quote := f.official(t, entity.KindQuote)
		require.NoError(t, f.svc.Delete(ctx, quote.ID))

		_, err := f.svc.Convert(ctx, quote.ID, entity.KindInvoice)
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err), "got %v", err)
	})
}
