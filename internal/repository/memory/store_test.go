package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest() *model.ApprovalRequest {
	return &model.ApprovalRequest{
		Type:        model.RequestTypeBugFix,
		Title:       "fix login redirect",
		Status:      model.StatusPending,
		RequesterID: uuid.New(),
		CreatedAt:   time.Now(),
		Assignments: []model.ApproverAssignment{
			{ApproverID: uuid.New(), Level: 2, TimeoutHours: 4, Status: model.AssignmentPending},
			{ApproverID: uuid.New(), Level: 1, TimeoutHours: 4, Status: model.AssignmentPending},
		},
	}
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := New().Approvals()
	req := newRequest()
	require.NoError(t, repo.Create(ctx, req))

	first, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Assignments[0].Level)

	first.Status = model.StatusInReview
	require.NoError(t, repo.Update(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Status = model.StatusRejected
	err = repo.Update(ctx, second, 1)
	assert.ErrorIs(t, err, workflow.ErrConflict)

	stored, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, stored.Status)
}

func TestFindByIDReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := New().Approvals()
	req := newRequest()
	require.NoError(t, repo.Create(ctx, req))

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	got.Assignments[0].Status = model.AssignmentApproved

	again, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentPending, again.Assignments[0].Status)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := New()
	req := newRequest()
	require.NoError(t, store.Approvals().Create(ctx, req))

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := store.Approvals().FindByID(txCtx, req.ID)
		require.NoError(t, err)
		r.Status = model.StatusApproved
		require.NoError(t, store.Approvals().Update(txCtx, r, r.Version))
		require.NoError(t, store.Audit().Log(txCtx, &model.AuditLog{Action: model.ActionApproveRequest}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.Approvals().FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)

	_, total, err := store.Audit().List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	repo := New().Approvals()
	a, b := newRequest(), newRequest()
	b.Type = model.RequestTypeReleaseApproval
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	all, total, err := repo.List(ctx, repository.RequestFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, b.ID, all[0].ID)

	byType, _, err := repo.List(ctx, repository.RequestFilter{Type: model.RequestTypeBugFix, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, a.ID, byType[0].ID)

	approver := a.Assignments[0].ApproverID
	byApprover, _, err := repo.List(ctx, repository.RequestFilter{ApproverID: &approver, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byApprover, 1)

	page2, _, err := repo.List(ctx, repository.RequestFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, a.ID, page2[0].ID)
}

func TestCommentsAreOrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	repo := New().Comments()
	reqID := uuid.New()
	base := time.Now()

	require.NoError(t, repo.Create(ctx, &model.Comment{RequestID: reqID, Content: "second", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, repo.Create(ctx, &model.Comment{RequestID: reqID, Content: "first", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &model.Comment{RequestID: reqID, Content: "internal", IsInternal: true, CreatedAt: base.Add(2 * time.Second)}))
	require.NoError(t, repo.Create(ctx, &model.Comment{RequestID: uuid.New(), Content: "other"}))

	public, err := repo.ListByRequest(ctx, reqID, false)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "first", public[0].Content)
	assert.Equal(t, "second", public[1].Content)

	all, err := repo.ListByRequest(ctx, reqID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
