package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/core/tenant"
	"numerus/internal/domain"
)

// runInline executes the transactional closure directly; these tests have
// no database underneath.
type runInline struct{}

func (runInline) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	byID     map[id.ID]*Workspace
	withDocs map[id.ID]bool
}

func newFakeRepo(ws ...*Workspace) *fakeRepo {
	r := &fakeRepo{
		byID:     make(map[id.ID]*Workspace),
		withDocs: make(map[id.ID]bool),
	}
	for _, w := range ws {
		r.byID[w.ID] = w
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, ws *Workspace) error {
	for _, existing := range r.byID {
		if !existing.DeletionMark && existing.Code == ws.Code && ws.Code != "" {
			return apperror.NewDuplicate("workspace", "code", ws.Code)
		}
	}
	r.byID[ws.ID] = ws
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, workspaceID id.ID) (*Workspace, error) {
	ws, ok := r.byID[workspaceID]
	if !ok {
		return nil, apperror.NewNotFound("workspaces", workspaceID.String())
	}
	copied := *ws
	return &copied, nil
}

func (r *fakeRepo) GetByCode(_ context.Context, code string) (*Workspace, error) {
	for _, ws := range r.byID {
		if !ws.DeletionMark && ws.Code == code {
			copied := *ws
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("workspaces", code)
}

func (r *fakeRepo) Update(_ context.Context, ws *Workspace) error {
	stored, ok := r.byID[ws.ID]
	if !ok {
		return apperror.NewNotFound("workspaces", ws.ID.String())
	}
	if stored.Version != ws.Version {
		return apperror.NewConcurrentModification("workspace", ws.ID)
	}
	ws.Version++
	copied := *ws
	r.byID[ws.ID] = &copied
	return nil
}

func (r *fakeRepo) SetDeletionMark(_ context.Context, workspaceID id.ID, marked bool) error {
	ws, ok := r.byID[workspaceID]
	if !ok {
		return apperror.NewNotFound("workspaces", workspaceID.String())
	}
	ws.DeletionMark = marked
	ws.Version++
	return nil
}

func (r *fakeRepo) List(_ context.Context, _ domain.ListFilter) (domain.ListResult[*Workspace], error) {
	result := domain.ListResult[*Workspace]{}
	for _, ws := range r.byID {
		copied := *ws
		result.Items = append(result.Items, &copied)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

// Exists mirrors the repository's live-only semantics: a deletion-marked
// workspace does not exist for parent checks.
func (r *fakeRepo) Exists(_ context.Context, workspaceID id.ID) (bool, error) {
	ws, ok := r.byID[workspaceID]
	return ok && !ws.DeletionMark, nil
}

func (r *fakeRepo) GetTree(_ context.Context, _ *id.ID) ([]*Workspace, error) {
	return nil, nil
}

func (r *fakeRepo) HasLiveDocuments(_ context.Context, workspaceID id.ID) (bool, error) {
	return r.withDocs[workspaceID], nil
}

func testCtx() context.Context {
	return tenant.WithTxManager(context.Background(), runInline{})
}

func TestCreate_RequiresCompanyName(t *testing.T) {
	svc := NewService(newFakeRepo())

	ws := NewWorkspace("MAIN", "Main Office", "")
	err := svc.Create(testCtx(), ws)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreate_DuplicateCode(t *testing.T) {
	repo := newFakeRepo(NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd"))
	svc := NewService(repo)

	err := svc.Create(testCtx(), NewWorkspace("MAIN", "Second Main", "Acme Trading Ltd"))

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicate))
}

func TestCreate_UnderLiveParent(t *testing.T) {
	head := NewWorkspace("HQ", "Head Office", "Acme Trading Ltd")
	head.IsFolder = true
	svc := NewService(newFakeRepo(head))

	branch := NewWorkspace("NORTH", "North Branch", "Acme Trading Ltd")
	headID := head.ID.String()
	branch.ParentID = &headID

	require.NoError(t, svc.Create(testCtx(), branch))
}

func TestCreate_ParentMustExist(t *testing.T) {
	svc := NewService(newFakeRepo())

	branch := NewWorkspace("NORTH", "North Branch", "Acme Trading Ltd")
	unknown := id.New().String()
	branch.ParentID = &unknown

	err := svc.Create(testCtx(), branch)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "parent workspace not found")
}

func TestCreate_RetiredParentRejected(t *testing.T) {
	head := NewWorkspace("HQ", "Head Office", "Acme Trading Ltd")
	head.DeletionMark = true
	svc := NewService(newFakeRepo(head))

	branch := NewWorkspace("NORTH", "North Branch", "Acme Trading Ltd")
	headID := head.ID.String()
	branch.ParentID = &headID

	err := svc.Create(testCtx(), branch)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreate_MalformedParentRejected(t *testing.T) {
	svc := NewService(newFakeRepo())

	branch := NewWorkspace("NORTH", "North Branch", "Acme Trading Ltd")
	bad := "not-a-uuid"
	branch.ParentID = &bad

	err := svc.Create(testCtx(), branch)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestUpdate_SelfParentRejected(t *testing.T) {
	ws := NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd")
	repo := newFakeRepo(ws)
	svc := NewService(repo)

	self := ws.ID.String()
	ws.ParentID = &self

	err := svc.Update(testCtx(), ws)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "own parent")
}

func TestGetByID_NotFoundNamesWorkspace(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.GetByID(testCtx(), id.New())

	require.Error(t, err)
	require.True(t, apperror.IsNotFound(err))
	// The repo reports its table name; the service renames it for callers.
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "workspace", appErr.Details["entity"])
}

func TestDelete_RefusedWhileDocumentsRemain(t *testing.T) {
	ws := NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd")
	repo := newFakeRepo(ws)
	repo.withDocs[ws.ID] = true
	svc := NewService(repo)

	err := svc.Delete(testCtx(), ws.ID)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
	assert.False(t, repo.byID[ws.ID].DeletionMark, "workspace must stay live")
}

func TestDelete_MarksEmptyWorkspace(t *testing.T) {
	ws := NewWorkspace("NORTH", "North Branch", "Acme Trading Ltd")
	repo := newFakeRepo(ws)
	svc := NewService(repo)

	err := svc.Delete(testCtx(), ws.ID)

	require.NoError(t, err)
	assert.True(t, repo.byID[ws.ID].DeletionMark)
}

func TestSetDeletionMark_UnmarkSkipsGuard(t *testing.T) {
	ws := NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd")
	ws.DeletionMark = true
	repo := newFakeRepo(ws)
	// Documents exist, but clearing the mark brings the scope back rather
	// than retiring it.
	repo.withDocs[ws.ID] = true
	svc := NewService(repo)

	err := svc.SetDeletionMark(testCtx(), ws.ID, false)

	require.NoError(t, err)
	assert.False(t, repo.byID[ws.ID].DeletionMark)
}

func TestRequireLive(t *testing.T) {
	live := NewWorkspace("MAIN", "Main Office", "Acme Trading Ltd")
	retired := NewWorkspace("OLD", "Closed Branch", "Acme Trading Ltd")
	retired.DeletionMark = true
	svc := NewService(newFakeRepo(live, retired))

	got, err := svc.RequireLive(testCtx(), live.ID)
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	_, err = svc.RequireLive(testCtx(), retired.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
